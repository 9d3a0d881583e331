package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nullboard/roomd/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_FlushesOnBatchSize(t *testing.T) {
	s := openTestStore(t)
	sink := NewSink(s, 3, time.Hour) // interval far longer than the test, batch size should trigger the flush

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		sink.Enqueue(WriteCommand{
			Kind:   KindUserJoined,
			RoomID: types.RoomIDType("room-1"),
			UserJoined: &UserJoinedCommand{
				UserID:   types.UserIDType("user-1"),
				Nickname: types.NicknameType("alice"),
				JoinedAt: time.Now(),
			},
		})
	}

	require.Eventually(t, func() bool {
		var count int
		row := s.db.QueryRow(`SELECT COUNT(*) FROM room_sessions WHERE room_id = ?`, "room-1")
		row.Scan(&count)
		return count == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestSink_FlushesOnTicker(t *testing.T) {
	s := openTestStore(t)
	sink := NewSink(s, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Enqueue(WriteCommand{
		Kind:   KindChatMessage,
		RoomID: types.RoomIDType("room-1"),
		ChatMessage: &ChatMessageCommand{
			ChatID:   types.ChatIDType("chat-1"),
			UserID:   types.UserIDType("user-1"),
			Nickname: types.NicknameType("alice"),
			Content:  "hello",
			SentAt:   time.Now(),
		},
	})

	require.Eventually(t, func() bool {
		var count int
		row := s.db.QueryRow(`SELECT COUNT(*) FROM chat_history WHERE room_id = ?`, "room-1")
		row.Scan(&count)
		return count == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestSink_FlushesRemainderOnShutdown(t *testing.T) {
	s := openTestStore(t)
	sink := NewSink(s, 100, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Enqueue(WriteCommand{
		Kind:   KindBanUser,
		RoomID: types.RoomIDType("room-1"),
		BanUser: &BanUserCommand{
			UserID:   types.UserIDType("user-2"),
			BannedAt: time.Now(),
		},
	})

	// Give the loop a moment to pick the command off the channel before we
	// cancel, otherwise the cancellation and the enqueue could race on
	// which case the select observes first.
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done

	bans, err := s.LoadBans(context.Background(), types.RoomIDType("room-1"))
	require.NoError(t, err)
	_, banned := bans[types.UserIDType("user-2")]
	assert.True(t, banned)
}

func TestSink_UserLeftComputesDuration(t *testing.T) {
	s := openTestStore(t)
	sink := NewSink(s, 2, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	joinedAt := time.Now().Add(-90 * time.Second)
	leftAt := time.Now()

	sink.Enqueue(WriteCommand{
		Kind:   KindUserJoined,
		RoomID: types.RoomIDType("room-1"),
		UserJoined: &UserJoinedCommand{
			UserID:   types.UserIDType("user-4"),
			Nickname: types.NicknameType("carol"),
			JoinedAt: joinedAt,
		},
	})
	sink.Enqueue(WriteCommand{
		Kind:   KindUserLeft,
		RoomID: types.RoomIDType("room-1"),
		UserLeft: &UserLeftCommand{
			UserID:   types.UserIDType("user-4"),
			JoinedAt: joinedAt,
			LeftAt:   leftAt,
		},
	})

	require.Eventually(t, func() bool {
		var leftAtVal sql.NullTime
		var duration sql.NullFloat64
		row := s.db.QueryRow(
			`SELECT left_at, duration_seconds FROM room_sessions WHERE room_id = ? AND user_id = ?`,
			"room-1", "user-4",
		)
		if err := row.Scan(&leftAtVal, &duration); err != nil {
			return false
		}
		return leftAtVal.Valid && duration.Valid
	}, time.Second, 10*time.Millisecond)

	var duration float64
	row := s.db.QueryRow(
		`SELECT duration_seconds FROM room_sessions WHERE room_id = ? AND user_id = ?`,
		"room-1", "user-4",
	)
	require.NoError(t, row.Scan(&duration))
	assert.InDelta(t, 90, duration, 1)

	cancel()
	<-done
}

func TestSink_UnbanRemovesRow(t *testing.T) {
	s := openTestStore(t)
	sink := NewSink(s, 2, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sink.Run(ctx)
		close(done)
	}()

	sink.Enqueue(WriteCommand{
		Kind:    KindBanUser,
		RoomID:  types.RoomIDType("room-1"),
		BanUser: &BanUserCommand{UserID: types.UserIDType("user-3"), BannedAt: time.Now()},
	})
	sink.Enqueue(WriteCommand{
		Kind:      KindUnbanUser,
		RoomID:    types.RoomIDType("room-1"),
		UnbanUser: &UnbanUserCommand{UserID: types.UserIDType("user-3")},
	})

	require.Eventually(t, func() bool {
		bans, err := s.LoadBans(context.Background(), types.RoomIDType("room-1"))
		if err != nil {
			return false
		}
		_, banned := bans[types.UserIDType("user-3")]
		return !banned
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
