// Package transport implements the per-connection I/O pair (Component C)
// and the room registry (Component E): the WebSocket-facing edge of the
// room engine, grounded in the same gorilla/websocket read/write pump split
// used elsewhere in this codebase's reference material, adapted from a
// binary protobuf transport to the JSON tagged-envelope wire protocol.
package transport

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nullboard/roomd/internal/v1/admission"
	"github.com/nullboard/roomd/internal/v1/chatroom"
	"github.com/nullboard/roomd/internal/v1/logging"
	"github.com/nullboard/roomd/internal/v1/metrics"
	"github.com/nullboard/roomd/internal/v1/types"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// wsConn is the subset of *websocket.Conn the Client depends on; narrowed
// to an interface so tests can substitute a fake transport.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// Client is one accepted connection's I/O pair: an inbound decoder and an
// outbound pump, bridging a raw WebSocket to a room actor's ingress
// channels.
type Client struct {
	conn   wsConn
	handle chatroom.Handle
	token  *admission.Token

	roomID   types.RoomIDType
	userID   types.UserIDType
	nickname types.NicknameType

	outbox chan types.OutboundFrame
}

// NewClient constructs a Client over an already-upgraded connection. The
// caller spawns ReadPump and WritePump as separate goroutines and is
// responsible for releasing token; Hub.ServeWs releases it as soon as
// ReadPump returns.
func NewClient(conn wsConn, handle chatroom.Handle, roomID types.RoomIDType, userID types.UserIDType, nickname types.NicknameType, token *admission.Token, mailboxSize int) *Client {
	return &Client{
		conn:     conn,
		handle:   handle,
		token:    token,
		roomID:   roomID,
		userID:   userID,
		nickname: nickname,
		outbox:   make(chan types.OutboundFrame, mailboxSize),
	}
}

// Outbox returns the send-only mailbox the room actor uses to reach this
// connection; callers send the initial Join message carrying it.
func (c *Client) Outbox() chan<- types.OutboundFrame {
	return c.outbox
}

// WritePump drains the outbound mailbox and serializes each frame to the
// socket as JSON text. Exits on write error, mailbox closure, or the room's
// Done firing; on mailbox closure and on Done it first sends a close frame
// so the peer observes a clean shutdown. Watching Done (rather than the registry ever closing the
// shared ingress channels out from under a live sender) is what lets a room
// close release every connected member's socket without risking a send on a
// channel another connection's goroutine is still writing to.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(frame)
			if err != nil {
				logging.Error(nil, "failed to marshal outbound frame", zap.Error(err), zap.String("room_id", string(c.roomID)))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.handle.Done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// ReadPump announces the join, then reads frames until the socket read
// fails, forwarding each recognized frame to the actor's appropriate ingress
// channel. Non-text and unparseable frames are skipped and the connection
// stays open. On exit it sends a best-effort Leave.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.handle.Normal <- chatroom.NormalMessage{Kind: chatroom.NormalLeave, Leave: &chatroom.LeaveMessage{UserID: c.userID}}:
		default:
		}
		close(c.outbox)
		metrics.DecConnection()
	}()

	select {
	case c.handle.Normal <- chatroom.NormalMessage{
		Kind: chatroom.NormalJoin,
		Join: &chatroom.JoinMessage{UserID: c.userID, Nickname: c.nickname, Outbox: c.outbox},
	}:
	case <-c.handle.Done:
		return
	}
	metrics.IncConnection()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame types.InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}

		c.dispatch(frame)
	}
}

// dispatch forwards a decoded frame to the actor's matching ingress channel.
// Every send races against handle.Done so a frame arriving in the brief
// window between a room closing and this connection's socket tearing down
// is dropped instead of blocking ReadPump on a channel the actor has already
// stopped draining.
func (c *Client) dispatch(frame types.InboundFrame) {
	switch frame.Type {
	case types.FrameSendMessage:
		var payload types.SendMessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		select {
		case c.handle.Normal <- chatroom.NormalMessage{
			Kind: chatroom.NormalChat,
			Chat: &chatroom.ChatMessage{UserID: c.userID, Content: payload.Content},
		}:
		case <-c.handle.Done:
		}

	case types.FrameMuteUser:
		var payload types.MuteUserPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		select {
		case c.handle.Normal <- chatroom.NormalMessage{
			Kind: chatroom.NormalMute,
			Mute: &chatroom.MuteMessage{RequesterID: c.userID, TargetID: payload.UserID},
		}:
		case <-c.handle.Done:
		}

	case types.FrameKickUser:
		var payload types.KickUserPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		select {
		case c.handle.High <- chatroom.HighPriorityMessage{
			Kind: chatroom.HighKick,
			Kick: &chatroom.KickMessage{RequesterID: c.userID, TargetID: payload.UserID},
		}:
		case <-c.handle.Done:
		}

	case types.FrameCustomEvent:
		var payload types.CustomEventPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return
		}
		select {
		case c.handle.High <- chatroom.HighPriorityMessage{
			Kind:        chatroom.HighCustomEvent,
			CustomEvent: &chatroom.CustomEventMessage{RequesterID: c.userID, Name: payload.Name, Data: payload.Data},
		}:
		case <-c.handle.Done:
		}

	case types.FramePing:
		select {
		case c.outbox <- types.OutboundFrame{Type: types.FramePong}:
		default:
		}
	}
}
