package chatroom

import (
	"encoding/json"

	"github.com/nullboard/roomd/internal/v1/types"
)

// NormalMessage is one entry on the normal-priority ingress: joins, leaves,
// chat, and mute all flow through here and are serviced in batches.
type NormalMessage struct {
	Kind  NormalKind
	Join  *JoinMessage
	Leave *LeaveMessage
	Chat  *ChatMessage
	Mute  *MuteMessage
}

type NormalKind string

const (
	NormalJoin  NormalKind = "Join"
	NormalLeave NormalKind = "Leave"
	NormalChat  NormalKind = "Chat"
	NormalMute  NormalKind = "Mute"
)

// JoinMessage is sent by the per-connection I/O pair once it has resolved
// its room and obtained the actor's handle. Outbox is the connection's
// bounded outbound mailbox; the actor learns to reach this connection only
// through this sender.
type JoinMessage struct {
	UserID   types.UserIDType
	Nickname types.NicknameType
	Outbox   chan<- types.OutboundFrame
}

// LeaveMessage is sent best-effort by the per-connection I/O pair on any
// exit path. The actor is the sole authority on membership accounting.
type LeaveMessage struct {
	UserID types.UserIDType
}

// ChatMessage is a SendMessage frame forwarded from a connection.
type ChatMessage struct {
	UserID  types.UserIDType
	Content string
}

// MuteMessage is a MuteUser frame forwarded from a connection. Permission is
// checked inside the actor against the requester's cached admin flag.
type MuteMessage struct {
	RequesterID types.UserIDType
	TargetID    types.UserIDType
}

// HighPriorityMessage carries administrator-originated broadcasts and
// forced kicks: always preferred over normal-priority ingress.
type HighPriorityMessage struct {
	Kind        HighKind
	Kick        *KickMessage
	CustomEvent *CustomEventMessage
}

type HighKind string

const (
	HighKick        HighKind = "Kick"
	HighCustomEvent HighKind = "CustomEvent"
)

// KickMessage is a KickUser frame forwarded from a connection.
type KickMessage struct {
	RequesterID types.UserIDType
	TargetID    types.UserIDType
}

// CustomEventMessage is a CustomEvent frame forwarded from a connection.
type CustomEventMessage struct {
	RequesterID types.UserIDType
	Name        string
	Data        json.RawMessage
}

// ControlMessage carries out-of-band mutations originating from management
// endpoints rather than connected clients.
type ControlMessage struct {
	Kind        ControlKind
	ResetAdmins *ResetAdminsMessage
	UnbanUser   *UnbanUserMessage
	Close       *CloseMessage
}

type ControlKind string

const (
	ControlResetAdmins ControlKind = "ResetAdmins"
	ControlUnbanUser   ControlKind = "UnbanUser"
	ControlClose       ControlKind = "Close"
)

// CloseMessage unconditionally broadcasts a closed notice to every member,
// bypassing the admin permission check custom events go through. Sent by the
// registry after it has removed the room from its map and taken a final
// stats snapshot.
type CloseMessage struct {
	Reason string
}

// ResetAdminsMessage atomically replaces the actor's admin set.
type ResetAdminsMessage struct {
	Admins map[types.UserIDType]struct{}
}

// UnbanUserMessage removes a user id from the actor's ban set, if present.
type UnbanUserMessage struct {
	UserID types.UserIDType
}

// StatsQuery is a synchronous query carrying a one-shot reply handle. The
// actor never blocks on the reply send; Reply must be buffered by at least
// one slot so the actor's send cannot stall waiting on a caller that gave up.
type StatsQuery struct {
	Reply chan<- types.RoomStats
}

// Handle is the bundle of send-only ingress senders a room registry hands
// out to connections and management endpoints, plus Done: a single
// receive-only channel, shared by every connection in the room, that the
// actor closes exactly once when its loop returns for any reason. Connections
// select on Done instead of ever closing or expecting closure of the
// multi-producer ingress channels themselves.
type Handle struct {
	Normal  chan<- NormalMessage
	High    chan<- HighPriorityMessage
	Control chan<- ControlMessage
	Stats   chan<- StatsQuery
	Done    <-chan struct{}
}
