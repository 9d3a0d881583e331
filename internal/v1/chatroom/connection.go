package chatroom

import (
	"time"

	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/types"
)

// connection is the actor's private record of one live member. Never shared
// outside the actor goroutine.
type connection struct {
	userID   types.UserIDType
	nickname types.NicknameType
	isAdmin  bool
	outbox   chan<- types.OutboundFrame
	joinedAt time.Time
}

// trySend is the actor's only means of reaching a connection: a non-blocking
// send that drops the frame rather than ever stalling the room loop on a
// slow or hostile subscriber.
func trySend(outbox chan<- types.OutboundFrame, frame types.OutboundFrame) {
	select {
	case outbox <- frame:
	default:
		metrics.MailboxDropsTotal.WithLabelValues("outbound_full").Inc()
	}
}

// broadcast sends frame to every connection except those named in except.
func (a *Actor) broadcast(frame types.OutboundFrame, except ...types.UserIDType) {
	skip := make(map[types.UserIDType]struct{}, len(except))
	for _, id := range except {
		skip[id] = struct{}{}
	}
	for id, c := range a.members {
		if _, ok := skip[id]; ok {
			continue
		}
		trySend(c.outbox, frame)
	}
}
