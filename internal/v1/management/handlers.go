// Package management implements the HTTP control surface for the room
// engine: create/list/close room, reset admins, and unban, each delegated to
// the room registry. Create records the room row and spawns the actor; reset
// admins persists the new set and then sends a control message; unban and
// close send a control message only (the actor persists an unban itself
// through the write sink); list reads the registry. This surface never
// touches actor-owned state directly, mirroring the teacher's
// hub-method-call-from-gin-handler shape in its session package.
package management

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nullboard/roomd/internal/v1/transport"
	"github.com/nullboard/roomd/internal/v1/types"
)

// Handlers bundles the gin.HandlerFuncs for the management surface.
type Handlers struct {
	hub *transport.Hub
}

// NewHandlers builds a Handlers bound to hub.
func NewHandlers(hub *transport.Hub) *Handlers {
	return &Handlers{hub: hub}
}

type createRoomRequest struct {
	RoomID types.RoomIDType `json:"room_id" binding:"required"`
}

// CreateRoom handles POST /rooms.
func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.hub.CreateRoom(req.RoomID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room_id": req.RoomID})
}

// ListRooms handles GET /rooms.
func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.hub.ListRooms()})
}

type closeRoomRequest struct {
	Reason string `json:"reason"`
}

// CloseRoom handles DELETE /rooms/:room_id. It returns the room's final
// stats snapshot so the caller can sync it to an out-of-scope dashboard.
func (h *Handlers) CloseRoom(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("room_id"))

	var req closeRoomRequest
	_ = c.ShouldBindJSON(&req)

	stats, err := h.hub.CloseRoom(roomID, req.Reason)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type resetAdminsRequest struct {
	AdminIDs []types.UserIDType `json:"admin_ids"`
}

// ResetAdmins handles PUT /rooms/:room_id/admins.
func (h *Handlers) ResetAdmins(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("room_id"))

	var req resetAdminsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admins := make(map[types.UserIDType]struct{}, len(req.AdminIDs))
	for _, id := range req.AdminIDs {
		admins[id] = struct{}{}
	}

	if err := h.hub.ResetAdmins(roomID, admins); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "admin_ids": req.AdminIDs})
}

// UnbanUser handles DELETE /rooms/:room_id/bans/:user_id.
func (h *Handlers) UnbanUser(c *gin.Context) {
	roomID := types.RoomIDType(c.Param("room_id"))
	userID := types.UserIDType(c.Param("user_id"))

	if err := h.hub.UnbanUser(roomID, userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "user_id": userID})
}
