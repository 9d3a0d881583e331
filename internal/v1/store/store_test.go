package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nullboard/roomd/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roomd-test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesSchema(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestEnsureRoom_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureRoom(ctx, types.RoomIDType("room-1"), time.Now()))
	require.NoError(t, s.EnsureRoom(ctx, types.RoomIDType("room-1"), time.Now()))
}

func TestLoadAdmins_EmptyWhenNone(t *testing.T) {
	s := openTestStore(t)
	admins, err := s.LoadAdmins(context.Background(), types.RoomIDType("room-1"))
	require.NoError(t, err)
	assert.Empty(t, admins)
}

func TestLoadBans_ReflectsInsertedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_bans (room_id, user_id, banned_at) VALUES (?, ?, ?)`,
		"room-1", "user-9", time.Now(),
	)
	require.NoError(t, err)

	bans, err := s.LoadBans(ctx, types.RoomIDType("room-1"))
	require.NoError(t, err)
	_, banned := bans[types.UserIDType("user-9")]
	assert.True(t, banned)
}

func TestLoadAdmins_ReflectsInsertedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_admins (room_id, user_id) VALUES (?, ?)`,
		"room-1", "user-1",
	)
	require.NoError(t, err)

	admins, err := s.LoadAdmins(ctx, types.RoomIDType("room-1"))
	require.NoError(t, err)
	_, isAdmin := admins[types.UserIDType("user-1")]
	assert.True(t, isAdmin)
}
