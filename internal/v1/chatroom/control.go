package chatroom

import (
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
)

// handleResetAdmins atomically replaces the admin set. The is_admin flag
// already cached on connected sockets is not re-evaluated retroactively;
// it is re-read only at each connection's next join.
func (a *Actor) handleResetAdmins(msg *ResetAdminsMessage) {
	admins := msg.Admins
	if admins == nil {
		admins = make(map[types.UserIDType]struct{})
	}
	a.admins = admins
}

// handleUnbanUser removes a user id from the ban set, if present, and
// records the mutation for the durable store.
func (a *Actor) handleUnbanUser(msg *UnbanUserMessage) {
	if _, banned := a.bans[msg.UserID]; !banned {
		return
	}
	delete(a.bans, msg.UserID)

	if a.sink != nil {
		a.sink.Enqueue(store.WriteCommand{
			Kind:      store.KindUnbanUser,
			RoomID:    a.roomID,
			UnbanUser: &store.UnbanUserCommand{UserID: msg.UserID},
		})
	}
}

// handleClose broadcasts a closed notice to every member unconditionally,
// regardless of admin standing, then marks the actor for shutdown. Run exits
// right after this returns, which closes Done and releases every member's
// write pump and socket. The registry sends this control message instead of
// ever closing the actor's shared ingress channels itself, since those
// channels have many live producers (every connected client) and closing a
// channel out from under a concurrent sender panics the sender's goroutine.
func (a *Actor) handleClose(msg *CloseMessage) {
	a.broadcast(types.OutboundFrame{
		Type:    types.FrameRoomClosed,
		Payload: types.RoomClosedEvent{Reason: msg.Reason},
	})
	a.closing = true
}
