package chatroom

import (
	"time"

	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
)

// handleJoin implements the precondition chain in order: ban refusal, then
// duplicate-tab eviction, then registration.
func (a *Actor) handleJoin(msg *JoinMessage) {
	if _, banned := a.bans[msg.UserID]; banned {
		trySend(msg.Outbox, types.OutboundFrame{
			Type:    types.FrameError,
			Payload: types.ErrorEvent{Message: "you are permanently banned from this room"},
		})
		return
	}

	if existing, ok := a.members[msg.UserID]; ok {
		delete(a.members, msg.UserID)
		a.currentUsers = max0(a.currentUsers - 1)
		a.setMembersGauge()
		trySend(existing.outbox, types.OutboundFrame{Type: types.FrameYouAreKicked})
	}

	_, isAdmin := a.admins[msg.UserID]
	_, isMuted := a.mutes[msg.UserID]
	now := time.Now()

	conn := &connection{
		userID:   msg.UserID,
		nickname: msg.Nickname,
		isAdmin:  isAdmin,
		outbox:   msg.Outbox,
		joinedAt: now,
	}
	a.members[msg.UserID] = conn
	a.joinInstant[msg.UserID] = now

	trySend(msg.Outbox, types.OutboundFrame{
		Type:    types.FrameWelcomeInfo,
		Payload: types.WelcomeInfoEvent{UserID: msg.UserID, IsMuted: isMuted},
	})

	a.currentUsers++
	a.totalJoins++
	if a.currentUsers > a.peakUsers {
		a.peakUsers = a.currentUsers
	}
	a.setMembersGauge()

	if a.sink != nil {
		a.sink.Enqueue(store.WriteCommand{
			Kind:   store.KindUserJoined,
			RoomID: a.roomID,
			UserJoined: &store.UserJoinedCommand{
				UserID:   msg.UserID,
				Nickname: msg.Nickname,
				JoinedAt: now,
			},
		})
	}

	a.pendingJoins = append(a.pendingJoins, msg.UserID)
	metrics.CoalescedJoinsTotal.Inc()
}

// handleLeave removes the connection if present; the actor is the sole
// authority on membership, so a leave for an unknown or already-evicted
// user is a silent no-op.
func (a *Actor) handleLeave(msg *LeaveMessage) {
	if _, ok := a.members[msg.UserID]; !ok {
		return
	}

	joinedAt := a.joinInstant[msg.UserID]
	delete(a.members, msg.UserID)
	delete(a.joinInstant, msg.UserID)
	a.currentUsers = max0(a.currentUsers - 1)
	a.setMembersGauge()

	if a.sink != nil {
		a.sink.Enqueue(store.WriteCommand{
			Kind:   store.KindUserLeft,
			RoomID: a.roomID,
			UserLeft: &store.UserLeftCommand{
				UserID:   msg.UserID,
				JoinedAt: joinedAt,
				LeftAt:   time.Now(),
			},
		})
	}

	a.pendingLeaves = append(a.pendingLeaves, msg.UserID)
	metrics.RoomEvents.WithLabelValues("user_left").Inc()
}

// flushCoalesced emits one combined notice for every join and leave
// accumulated since the last flush, plus a companion stats snapshot. Called
// only from the coalescing timer in Run; a no-op when nothing accumulated.
func (a *Actor) flushCoalesced() {
	if len(a.pendingJoins) == 0 && len(a.pendingLeaves) == 0 {
		return
	}

	if len(a.pendingJoins) > 0 {
		a.broadcast(types.OutboundFrame{
			Type:    types.FrameUserJoined,
			Payload: types.UserJoinedEvent{UserIDs: a.pendingJoins},
		}, a.pendingJoins...)
		metrics.RoomEvents.WithLabelValues("user_joined").Add(float64(len(a.pendingJoins)))
	}

	if len(a.pendingLeaves) > 0 {
		a.broadcast(types.OutboundFrame{
			Type:    types.FrameUserLeft,
			Payload: types.UserLeftEvent{UserIDs: a.pendingLeaves},
		})
		metrics.RoomEvents.WithLabelValues("user_left_broadcast").Add(float64(len(a.pendingLeaves)))
	}

	a.broadcast(types.OutboundFrame{
		Type: types.FrameRoomStats,
		Payload: types.RoomStatsEvent{
			CurrentUsers: a.currentUsers,
			PeakUsers:    a.peakUsers,
		},
	})

	metrics.CoalescedJoinBatches.Inc()
	a.pendingJoins = a.pendingJoins[:0]
	a.pendingLeaves = a.pendingLeaves[:0]
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
