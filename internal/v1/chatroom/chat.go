package chatroom

import (
	"time"

	"github.com/google/uuid"
	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/store"
	"github.com/nullboard/roomd/internal/v1/types"
)

// handleChat implements SendMessage: membership check, mute check, rate
// limit (admins bypass both mute and rate limiting), then broadcast
// including an echo to the sender.
func (a *Actor) handleChat(msg *ChatMessage) {
	conn, ok := a.members[msg.UserID]
	if !ok {
		return
	}

	if _, muted := a.mutes[msg.UserID]; muted && !conn.isAdmin {
		trySend(conn.outbox, types.OutboundFrame{Type: types.FrameYouAreMuted})
		return
	}

	if !conn.isAdmin {
		if last, ok := a.lastSend[msg.UserID]; ok && time.Since(last) < a.rateLimitInterval {
			return
		}
	}
	a.lastSend[msg.UserID] = time.Now()

	if a.sink != nil {
		a.sink.Enqueue(store.WriteCommand{
			Kind:   store.KindChatMessage,
			RoomID: a.roomID,
			ChatMessage: &store.ChatMessageCommand{
				ChatID:   types.ChatIDType(uuid.NewString()),
				UserID:   msg.UserID,
				Nickname: conn.nickname,
				Content:  msg.Content,
				SentAt:   time.Now(),
			},
		})
	}

	a.broadcast(types.OutboundFrame{
		Type: types.FrameMessage,
		Payload: types.MessageEvent{
			From:    msg.UserID,
			Content: msg.Content,
			IsAdmin: conn.isAdmin,
		},
	})
	metrics.RoomEvents.WithLabelValues("chat_message").Inc()
}
