package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/nullboard/roomd/internal/v1/logging"
	"github.com/nullboard/roomd/internal/v1/metrics"
	"go.uber.org/zap"
)

// Sink is the single process-wide durable-write consumer (Component B). All
// room actors share one Sink so that write transactions are batched across
// rooms instead of paying one transaction's overhead per room per flush.
//
// Failure policy is log-and-continue: a batch whose transaction fails to
// commit is dropped and logged. In-memory room state is authoritative, so a
// lost batch is a gap in the chat history table, never a correctness issue
// for the live room.
type Sink struct {
	store    *Store
	commands chan WriteCommand
	batch    int
	interval time.Duration
	done     chan struct{}
}

// NewSink builds a Sink over store, batching up to batchSize commands or
// flushing every interval, whichever comes first.
func NewSink(store *Store, batchSize int, interval time.Duration) *Sink {
	return &Sink{
		store:    store,
		commands: make(chan WriteCommand, batchSize*4),
		batch:    batchSize,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Enqueue appends cmd to the write stream. Never blocks the caller: when the
// channel's buffer is full the command is dropped and counted under
// MailboxDropsTotal{reason="write_sink_full"}. Room actors call this from
// their event loop.
func (s *Sink) Enqueue(cmd WriteCommand) {
	select {
	case s.commands <- cmd:
	default:
		metrics.MailboxDropsTotal.WithLabelValues("write_sink_full").Inc()
	}
}

// Run drains the command channel until ctx is cancelled, flushing each
// accumulated batch. Intended to run in its own goroutine for the lifetime
// of the process.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pending := make([]WriteCommand, 0, s.batch)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := s.flush(ctx, pending); err != nil {
			metrics.WriteSinkFailuresTotal.Inc()
			logging.Error(ctx, "write sink batch failed, dropping", zap.Error(err))
		}
		metrics.WriteSinkBatchSize.Observe(float64(len(pending)))
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled here; the final flush must not
			// inherit that cancellation or BeginTx would refuse to start.
			flush(context.WithoutCancel(ctx))
			return
		case cmd := <-s.commands:
			pending = append(pending, cmd)
			if len(pending) >= s.batch {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

// Wait blocks until Run has returned (ctx cancelled and final flush done).
func (s *Sink) Wait() {
	<-s.done
}

func (s *Sink) flush(ctx context.Context, batch []WriteCommand) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, cmd := range batch {
		if err := applyCommand(tx, cmd); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func applyCommand(tx *sql.Tx, cmd WriteCommand) error {
	switch cmd.Kind {
	case KindUserJoined:
		c := cmd.UserJoined
		_, err := tx.Exec(
			`INSERT INTO room_sessions (room_id, user_id, nickname, joined_at) VALUES (?, ?, ?, ?)`,
			string(cmd.RoomID), string(c.UserID), string(c.Nickname), c.JoinedAt,
		)
		return err
	case KindUserLeft:
		c := cmd.UserLeft
		duration := c.LeftAt.Sub(c.JoinedAt).Seconds()
		_, err := tx.Exec(
			`UPDATE room_sessions SET left_at = ?, duration_seconds = ? WHERE room_id = ? AND user_id = ? AND left_at IS NULL`,
			c.LeftAt, duration, string(cmd.RoomID), string(c.UserID),
		)
		return err
	case KindChatMessage:
		c := cmd.ChatMessage
		_, err := tx.Exec(
			`INSERT INTO chat_history (chat_id, room_id, user_id, nickname, content, sent_at) VALUES (?, ?, ?, ?, ?, ?)`,
			string(c.ChatID), string(cmd.RoomID), string(c.UserID), string(c.Nickname), c.Content, c.SentAt,
		)
		return err
	case KindBanUser:
		c := cmd.BanUser
		_, err := tx.Exec(
			`INSERT INTO room_bans (room_id, user_id, banned_at) VALUES (?, ?, ?) ON CONFLICT(room_id, user_id) DO NOTHING`,
			string(cmd.RoomID), string(c.UserID), c.BannedAt,
		)
		return err
	case KindUnbanUser:
		c := cmd.UnbanUser
		_, err := tx.Exec(
			`DELETE FROM room_bans WHERE room_id = ? AND user_id = ?`,
			string(cmd.RoomID), string(c.UserID),
		)
		return err
	default:
		return nil
	}
}
