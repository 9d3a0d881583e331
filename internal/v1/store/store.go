// Package store implements the durable-write sink (Component B) and the
// relational persistence layer backing it: a SQLite database reachable
// through database/sql via the mattn/go-sqlite3 driver, following the same
// sql.Open/Exec/Query/transaction idiom used elsewhere in this codebase's
// reference material for embedded relational storage.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nullboard/roomd/internal/v1/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id    TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	closed_at  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_admins (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS chat_history (
	chat_id    TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	nickname   TEXT NOT NULL,
	content    TEXT NOT NULL,
	sent_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS room_sessions (
	room_id          TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	nickname         TEXT NOT NULL,
	joined_at        TIMESTAMP NOT NULL,
	left_at          TIMESTAMP,
	duration_seconds REAL
);

CREATE TABLE IF NOT EXISTS room_bans (
	room_id  TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	banned_at TIMESTAMP NOT NULL,
	PRIMARY KEY (room_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_chat_history_room ON chat_history(room_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_room_sessions_room ON room_sessions(room_id);
`

// Store wraps the SQLite database. Reads serve the two load operations the
// room registry performs before it spawns a room actor (admins, bans). Writes
// emitted by room actors flow through a Sink; EnsureRoom and ReplaceAdmins
// are the two writes made on Store directly.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is reachable, for the health/readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadAdmins returns the set of user ids persisted as admins for roomID.
// Called once per room, by the room registry before it spawns the actor.
func (s *Store) LoadAdmins(ctx context.Context, roomID types.RoomIDType) (map[types.UserIDType]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM room_admins WHERE room_id = ?`, string(roomID))
	if err != nil {
		return nil, fmt.Errorf("store: load admins: %w", err)
	}
	defer rows.Close()

	admins := make(map[types.UserIDType]struct{})
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("store: scan admin: %w", err)
		}
		admins[types.UserIDType(userID)] = struct{}{}
	}
	return admins, rows.Err()
}

// LoadBans returns the set of user ids persisted as banned for roomID.
// Called once per room, by the room registry before it spawns the actor.
func (s *Store) LoadBans(ctx context.Context, roomID types.RoomIDType) (map[types.UserIDType]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM room_bans WHERE room_id = ?`, string(roomID))
	if err != nil {
		return nil, fmt.Errorf("store: load bans: %w", err)
	}
	defer rows.Close()

	bans := make(map[types.UserIDType]struct{})
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("store: scan ban: %w", err)
		}
		bans[types.UserIDType(userID)] = struct{}{}
	}
	return bans, rows.Err()
}

// EnsureRoom records a room's existence in the rooms table (idempotent).
// The management "list rooms" endpoint does not read this table; it lists
// the live registry only.
func (s *Store) EnsureRoom(ctx context.Context, roomID types.RoomIDType, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms (room_id, created_at) VALUES (?, ?) ON CONFLICT(room_id) DO NOTHING`,
		string(roomID), createdAt,
	)
	return err
}

// ReplaceAdmins persists roomID's new admin set, replacing whatever was
// there before. Called synchronously by the management API before it hands
// the same set to the room actor as a control message, so the store and the
// live actor never disagree about who is an admin across a restart.
func (s *Store) ReplaceAdmins(ctx context.Context, roomID types.RoomIDType, admins map[types.UserIDType]struct{}) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: replace admins: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_admins WHERE room_id = ?`, string(roomID)); err != nil {
		return fmt.Errorf("store: replace admins: delete: %w", err)
	}
	for userID := range admins {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_admins (room_id, user_id) VALUES (?, ?)`,
			string(roomID), string(userID),
		); err != nil {
			return fmt.Errorf("store: replace admins: insert: %w", err)
		}
	}
	return tx.Commit()
}
