package chatroom

import (
	"fmt"
	"time"

	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
)

// isPermitted reports whether requesterID currently holds a live,
// admin-flagged connection. Every admin-only action is silently dropped
// when this is false; the spec defines no error surfaced to a non-admin
// attempting one.
func (a *Actor) isPermitted(requesterID types.UserIDType) bool {
	conn, ok := a.members[requesterID]
	return ok && conn.isAdmin
}

// handleKick implements KickUser: permanent ban from this instant, eviction
// of any live connection, and a system notice broadcast. A kicked user's
// next join is refused at the ban check in handleJoin.
func (a *Actor) handleKick(msg *KickMessage) {
	if !a.isPermitted(msg.RequesterID) {
		return
	}

	a.bans[msg.TargetID] = struct{}{}
	if a.sink != nil {
		a.sink.Enqueue(store.WriteCommand{
			Kind:   store.KindBanUser,
			RoomID: a.roomID,
			BanUser: &store.BanUserCommand{
				UserID:   msg.TargetID,
				BannedAt: time.Now(),
			},
		})
	}

	if conn, ok := a.members[msg.TargetID]; ok {
		delete(a.members, msg.TargetID)
		delete(a.joinInstant, msg.TargetID)
		a.currentUsers = max0(a.currentUsers - 1)
		a.setMembersGauge()
		trySend(conn.outbox, types.OutboundFrame{Type: types.FrameYouAreKicked})
	}

	a.broadcast(types.OutboundFrame{
		Type:    types.FrameSystem,
		Payload: types.SystemEvent{Message: fmt.Sprintf("user %s has been kicked", msg.TargetID)},
	})
	metrics.RoomEvents.WithLabelValues("user_kicked").Inc()
}

// handleMute implements MuteUser: admin-only, not persisted, lost on room
// close. There is no unmute operation in the in-scope command set.
func (a *Actor) handleMute(msg *MuteMessage) {
	if !a.isPermitted(msg.RequesterID) {
		return
	}

	a.mutes[msg.TargetID] = struct{}{}
	a.broadcast(types.OutboundFrame{
		Type:    types.FrameUserMuted,
		Payload: types.UserMutedEvent{UserID: msg.TargetID},
	})
	metrics.RoomEvents.WithLabelValues("user_muted").Inc()
}

// handleCustomEvent relays an admin-originated named event to every member.
func (a *Actor) handleCustomEvent(msg *CustomEventMessage) {
	if !a.isPermitted(msg.RequesterID) {
		return
	}

	a.broadcast(types.OutboundFrame{
		Type:    types.FrameSystem,
		Payload: types.SystemEvent{Name: msg.Name, Data: msg.Data},
	})
	metrics.RoomEvents.WithLabelValues("custom_event").Inc()
}
