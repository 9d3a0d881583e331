package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nullboard/roomd/internal/v1/admission"
	"github.com/nullboard/roomd/internal/v1/chatroom"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequestWithOrigin(t *testing.T, origin string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ws/rooms/room-1", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/rooms.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts := chatroom.Options{CoalesceWindow: 5 * time.Millisecond}
	return NewHub(admission.NewCounter(100), st, nil, opts, 8, "")
}

func TestHub_CreateRoom_RejectsDuplicate(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.CreateRoom("room-1"))
	err := h.CreateRoom("room-1")
	assert.Error(t, err)

	_, statsErr := h.CloseRoom("room-1", "test teardown")
	require.NoError(t, statsErr)
}

func TestHub_Stats_UnknownRoom(t *testing.T) {
	h := newTestHub(t)
	_, err := h.Stats("does-not-exist")
	assert.Error(t, err)
}

func TestHub_Stats_ReflectsJoinedMember(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.CreateRoom("room-1"))

	handle, ok := h.handleFor("room-1")
	require.True(t, ok)

	outbox := make(chan types.OutboundFrame, 4)
	handle.Normal <- chatroom.NormalMessage{
		Kind: chatroom.NormalJoin,
		Join: &chatroom.JoinMessage{UserID: "alice", Nickname: "Alice", Outbox: outbox},
	}

	require.Eventually(t, func() bool {
		stats, err := h.Stats("room-1")
		return err == nil && stats.CurrentUsers == 1
	}, time.Second, 5*time.Millisecond)

	_, err := h.CloseRoom("room-1", "test teardown")
	require.NoError(t, err)
}

func TestHub_ResetAdminsAndUnbanUser(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.CreateRoom("room-1"))

	require.NoError(t, h.ResetAdmins("room-1", map[types.UserIDType]struct{}{"alice": {}}))
	require.NoError(t, h.UnbanUser("room-1", "bob"))

	err := h.ResetAdmins("no-such-room", nil)
	assert.Error(t, err)
	err = h.UnbanUser("no-such-room", "bob")
	assert.Error(t, err)

	_, closeErr := h.CloseRoom("room-1", "test teardown")
	require.NoError(t, closeErr)
}

func TestHub_ListRooms(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.CreateRoom("room-1"))
	require.NoError(t, h.CreateRoom("room-2"))

	ids := h.ListRooms()
	assert.Len(t, ids, 2)

	_, err := h.CloseRoom("room-1", "test teardown")
	require.NoError(t, err)
	_, err = h.CloseRoom("room-2", "test teardown")
	require.NoError(t, err)

	assert.Empty(t, h.ListRooms())
}

func TestHub_CloseRoom_ReleasesLiveMember(t *testing.T) {
	h := newTestHub(t)
	require.NoError(t, h.CreateRoom("room-1"))

	handle, ok := h.handleFor("room-1")
	require.True(t, ok)

	counter := admission.NewCounter(10)
	token, err := counter.Acquire()
	require.NoError(t, err)

	conn := newMockConn()
	client := NewClient(conn, handle, "room-1", "alice", "Alice", token, 8)

	writeDone := make(chan struct{})
	go func() { client.WritePump(); close(writeDone) }()
	readDone := make(chan struct{})
	go func() { client.ReadPump(); close(readDone) }()

	require.Eventually(t, func() bool {
		stats, err := h.Stats("room-1")
		return err == nil && stats.CurrentUsers == 1
	}, time.Second, 5*time.Millisecond)

	_, closeErr := h.CloseRoom("room-1", "room closed for maintenance")
	require.NoError(t, closeErr)

	// The close must not panic any live sender and must release both pumps
	// (and therefore the socket) without the client ever disconnecting
	// itself.
	select {
	case <-writeDone:
	case <-time.After(time.Second):
		t.Fatal("write pump did not exit after room close")
	}
	select {
	case <-readDone:
	case <-time.After(time.Second):
		t.Fatal("read pump did not exit after room close")
	}
}

func TestHub_CloseRoom_NotFound(t *testing.T) {
	h := newTestHub(t)
	_, err := h.CloseRoom("does-not-exist", "nope")
	assert.Error(t, err)
}

func TestValidateOrigin(t *testing.T) {
	allowed := []string{"https://chat.example.com"}

	t.Run("no origin header passes", func(t *testing.T) {
		req := newRequestWithOrigin(t, "")
		assert.NoError(t, validateOrigin(req, allowed))
	})

	t.Run("empty allowlist passes anything", func(t *testing.T) {
		req := newRequestWithOrigin(t, "https://evil.example.com")
		assert.NoError(t, validateOrigin(req, nil))
	})

	t.Run("matching scheme and host passes", func(t *testing.T) {
		req := newRequestWithOrigin(t, "https://chat.example.com")
		assert.NoError(t, validateOrigin(req, allowed))
	})

	t.Run("unlisted origin rejected", func(t *testing.T) {
		req := newRequestWithOrigin(t, "https://evil.example.com")
		assert.Error(t, validateOrigin(req, allowed))
	})
}

func TestSplitOrigins(t *testing.T) {
	assert.Nil(t, splitOrigins(""))
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, splitOrigins(" https://a.example.com ,https://b.example.com"))
}
