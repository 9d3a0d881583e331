// Package types holds the shared value types passed between the transport,
// chatroom, and store layers: identifiers and the wire frame envelopes
// exchanged with connected clients.
package types

import (
	"encoding/json"
	"time"
)

// RoomIDType identifies a room. Opaque, supplied by the management API's
// create-room call; a client connecting to an unregistered room id is
// refused.
type RoomIDType string

// UserIDType identifies a connecting user. Opaque, supplied at connect time.
type UserIDType string

// ConnectionIDType names an identifier for one accepted WebSocket
// connection. No package assigns one: the transport layer and the room
// actor key each live connection by its user id.
type ConnectionIDType string

// NicknameType is the display name a user supplies at connect time.
type NicknameType string

// ChatIDType identifies one stored chat message.
type ChatIDType string

// FrameType names a client<->server JSON envelope's "type" field.
type FrameType string

const (
	// Client -> server frames.
	FrameSendMessage FrameType = "SendMessage"
	FrameKickUser    FrameType = "KickUser"
	FrameMuteUser    FrameType = "MuteUser"
	FramePing        FrameType = "Ping"
	FrameCustomEvent FrameType = "CustomEvent"

	// Server -> client frames.
	FrameWelcomeInfo  FrameType = "WelcomeInfo"
	FrameMessage      FrameType = "Message"
	FrameUserJoined   FrameType = "UserJoined"
	FrameUserLeft     FrameType = "UserLeft"
	FrameRoomStats    FrameType = "RoomStats"
	FrameYouAreKicked FrameType = "YouAreKicked"
	FrameYouAreMuted  FrameType = "YouAreMuted"
	FrameUserMuted    FrameType = "UserMuted"
	FrameSystem       FrameType = "System"
	FrameError        FrameType = "Error"
	FramePong         FrameType = "Pong"
	FrameRoomClosed   FrameType = "RoomClosed"
)

// InboundFrame is the envelope decoded off a client's WebSocket connection.
type InboundFrame struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundFrame is the envelope encoded onto a client's WebSocket connection.
type OutboundFrame struct {
	Type    FrameType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// SendMessagePayload is the body of a SendMessage inbound frame.
type SendMessagePayload struct {
	Content string `json:"content"`
}

// KickUserPayload / MuteUserPayload name a target by user id. Both frames
// are only honored when the sender's cached admin flag is set.
type KickUserPayload struct {
	UserID UserIDType `json:"user_id"`
}

type MuteUserPayload struct {
	UserID UserIDType `json:"user_id"`
}

// CustomEventPayload lets an admin broadcast an arbitrary named event over
// the high-priority path.
type CustomEventPayload struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WelcomeInfoEvent is the first frame a connection receives after a
// successful join.
type WelcomeInfoEvent struct {
	UserID  UserIDType `json:"user_id"`
	IsMuted bool       `json:"is_muted"`
}

// MessageEvent is the server->client broadcast of one chat message.
type MessageEvent struct {
	From    UserIDType `json:"from"`
	Content string     `json:"content"`
	IsAdmin bool       `json:"is_admin"`
}

// UserJoinedEvent is the (possibly coalesced) server->client broadcast of one
// or more users having joined since the last broadcast.
type UserJoinedEvent struct {
	UserIDs []UserIDType `json:"user_ids"`
}

// UserLeftEvent is the (possibly coalesced) server->client broadcast of one
// or more users having left since the last broadcast.
type UserLeftEvent struct {
	UserIDs []UserIDType `json:"user_ids"`
}

// RoomStatsEvent is the companion broadcast sent alongside a coalesced
// membership update.
type RoomStatsEvent struct {
	CurrentUsers int `json:"current_users"`
	PeakUsers    int `json:"peak_users"`
}

// YouAreKickedEvent / YouAreMutedEvent are targeted control notices sent only
// to the affected connection, never broadcast.
type YouAreKickedEvent struct{}

type YouAreMutedEvent struct{}

// UserMutedEvent is the broadcast notice that a user has been muted.
type UserMutedEvent struct {
	UserID UserIDType `json:"user_id"`
}

// SystemEvent carries a server-originated notice, e.g. a kick announcement,
// or an admin's CustomEvent relayed to the room.
type SystemEvent struct {
	Message string          `json:"message,omitempty"`
	Name    string          `json:"name,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ErrorEvent reports a rejected request back to the originating connection
// only; it is never broadcast.
type ErrorEvent struct {
	Message string `json:"message"`
}

// RoomClosedEvent notifies all members the room has been closed by the
// management API.
type RoomClosedEvent struct {
	Reason string `json:"reason,omitempty"`
}

// Member is a snapshot of one connected user's room-relevant state, returned
// by the room actor's stats channel.
type Member struct {
	UserID   UserIDType   `json:"user_id"`
	Nickname NicknameType `json:"nickname"`
	IsAdmin  bool         `json:"is_admin"`
	Muted    bool         `json:"muted"`
	JoinedAt time.Time    `json:"joined_at"`
}

// RoomStats is a point-in-time snapshot of one room's full state, returned by
// the room actor's stats channel without mutating anything.
type RoomStats struct {
	RoomID       RoomIDType   `json:"room_id"`
	Members      []Member     `json:"members"`
	Admins       []UserIDType `json:"admins"`
	StartedAt    time.Time    `json:"started_at"`
	CurrentUsers int          `json:"current_users"`
	PeakUsers    int          `json:"peak_users"`
	TotalJoins   int          `json:"total_joins"`
}
