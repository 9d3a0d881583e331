package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nullboard/roomd/internal/v1/admission"
	"github.com/nullboard/roomd/internal/v1/chatroom"
	"github.com/nullboard/roomd/internal/v1/logging"
	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
	"go.uber.org/zap"
)

// Hub is the room registry (Component E): a map from room id to the bundle
// of actor ingress senders, guarded by a lock held only during map mutation,
// never during a channel send.
type Hub struct {
	mu    sync.Mutex
	rooms map[types.RoomIDType]chatroom.Handle

	admission *admission.Counter
	store     *store.Store
	sink      *store.Sink
	opts      chatroom.Options

	outboundMailboxSize int
	allowedOrigins      []string
	upgrader            websocket.Upgrader
}

// NewHub constructs an empty room registry.
func NewHub(adm *admission.Counter, st *store.Store, sink *store.Sink, opts chatroom.Options, outboundMailboxSize int, allowedOrigins string) *Hub {
	h := &Hub{
		rooms:               make(map[types.RoomIDType]chatroom.Handle),
		admission:           adm,
		store:               st,
		sink:                sink,
		opts:                opts,
		outboundMailboxSize: outboundMailboxSize,
		allowedOrigins:      splitOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
	}
	return h
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validateOrigin allows browserless clients (no Origin header) through and
// otherwise requires a scheme+host match against the allow list.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	if len(allowedOrigins) == 0 {
		return nil
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin url: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return nil
		}
	}
	return fmt.Errorf("origin not allowed: %s", origin)
}

// CreateRoom loads the persisted admin/ban sets, spawns a room actor, and
// registers its handle. Returns an error if roomID is already registered.
func (h *Hub) CreateRoom(roomID types.RoomIDType) error {
	h.mu.Lock()
	if _, exists := h.rooms[roomID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("transport: room %q already exists", roomID)
	}
	h.mu.Unlock()

	ctx := context.Background()
	var admins, bans map[types.UserIDType]struct{}
	if h.store != nil {
		admins, _ = h.store.LoadAdmins(ctx, roomID)
		bans, _ = h.store.LoadBans(ctx, roomID)
		_ = h.store.EnsureRoom(ctx, roomID, time.Now())
	}

	actor, handle := chatroom.NewActor(roomID, h.sink, admins, bans, h.opts)
	go actor.Run()

	h.mu.Lock()
	h.rooms[roomID] = handle
	h.mu.Unlock()
	return nil
}

// CloseRoom de-registers roomID so no new connection can resolve it, takes a
// final stats snapshot, then sends a Close control message that makes
// the actor broadcast a closed notice and shut itself down. The actor — not
// the registry — closes its own Done channel as it exits, which is what
// actually releases every still-connected member's write pump and socket;
// CloseRoom never closes the actor's ingress channels directly, since they
// are still live sends-in-flight targets for every member's connection
// goroutine at the moment this is called.
func (h *Hub) CloseRoom(roomID types.RoomIDType, reason string) (types.RoomStats, error) {
	h.mu.Lock()
	handle, exists := h.rooms[roomID]
	if !exists {
		h.mu.Unlock()
		return types.RoomStats{}, fmt.Errorf("transport: room %q not found", roomID)
	}
	delete(h.rooms, roomID)
	h.mu.Unlock()

	stats, err := h.statsFor(handle, roomID)
	if err != nil {
		stats = types.RoomStats{RoomID: roomID}
	}

	handle.Control <- chatroom.ControlMessage{
		Kind:  chatroom.ControlClose,
		Close: &chatroom.CloseMessage{Reason: reason},
	}

	return stats, nil
}

// Stats queries roomID's actor for a snapshot. Returns an error if the room
// is not registered.
func (h *Hub) Stats(roomID types.RoomIDType) (types.RoomStats, error) {
	h.mu.Lock()
	handle, exists := h.rooms[roomID]
	h.mu.Unlock()
	if !exists {
		return types.RoomStats{}, fmt.Errorf("transport: room %q not found", roomID)
	}
	return h.statsFor(handle, roomID)
}

// statsFor queries an already-resolved handle directly, for callers (like
// CloseRoom) that need one last snapshot after the room has already been
// removed from the registry.
func (h *Hub) statsFor(handle chatroom.Handle, roomID types.RoomIDType) (types.RoomStats, error) {
	reply := make(chan types.RoomStats, 1)
	handle.Stats <- chatroom.StatsQuery{Reply: reply}

	select {
	case stats := <-reply:
		return stats, nil
	case <-time.After(5 * time.Second):
		return types.RoomStats{}, fmt.Errorf("transport: room %q stats query timed out", roomID)
	}
}

// ResetAdmins persists roomID's new admin set, then sends a control message
// replacing the live actor's admin set to match.
func (h *Hub) ResetAdmins(roomID types.RoomIDType, admins map[types.UserIDType]struct{}) error {
	handle, ok := h.handleFor(roomID)
	if !ok {
		return fmt.Errorf("transport: room %q not found", roomID)
	}

	if h.store != nil {
		if err := h.store.ReplaceAdmins(context.Background(), roomID, admins); err != nil {
			return fmt.Errorf("transport: persist admins: %w", err)
		}
	}

	handle.Control <- chatroom.ControlMessage{
		Kind:        chatroom.ControlResetAdmins,
		ResetAdmins: &chatroom.ResetAdminsMessage{Admins: admins},
	}
	return nil
}

// UnbanUser sends a control message removing userID from roomID's ban set.
// The actor persists the removal itself through the write sink as it
// processes the message, the same path kick/ban uses.
func (h *Hub) UnbanUser(roomID types.RoomIDType, userID types.UserIDType) error {
	handle, ok := h.handleFor(roomID)
	if !ok {
		return fmt.Errorf("transport: room %q not found", roomID)
	}
	handle.Control <- chatroom.ControlMessage{
		Kind:      chatroom.ControlUnbanUser,
		UnbanUser: &chatroom.UnbanUserMessage{UserID: userID},
	}
	return nil
}

// ListRooms returns every currently registered room id.
func (h *Hub) ListRooms() []types.RoomIDType {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]types.RoomIDType, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) handleFor(roomID types.RoomIDType) (chatroom.Handle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	handle, ok := h.rooms[roomID]
	return handle, ok
}

// ServeWs is the gin handler for the WebSocket endpoint. It admits,
// resolves the room, upgrades, and spawns the connection's read/write pumps.
func (h *Hub) ServeWs(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("room_id"))
	userID := types.UserIDType(c.Query("user_id"))
	nickname := types.NicknameType(c.Query("nickname"))

	if roomID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room_id and user_id are required"})
		return
	}

	token, err := h.admission.Acquire()
	if err != nil {
		metrics.AdmissionRejections.Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server at capacity"})
		return
	}

	handle, ok := h.handleFor(roomID)
	if !ok {
		token.Release()
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		token.Release()
		logging.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, handle, roomID, userID, nickname, token, h.outboundMailboxSize)
	go client.WritePump()
	go func() {
		client.ReadPump()
		token.Release()
	}()
}
