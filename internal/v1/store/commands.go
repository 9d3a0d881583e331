package store

import (
	"time"

	"github.com/nullboard/roomd/internal/v1/types"
)

// WriteCommand is one entry in the durable-write stream. Room actors never
// write to the database directly; they append a WriteCommand to the sink's
// channel and move on. Exactly one of the typed fields is non-nil/non-zero,
// matching the kind named by Kind.
type WriteCommand struct {
	Kind WriteCommandKind

	RoomID types.RoomIDType

	UserJoined  *UserJoinedCommand
	UserLeft    *UserLeftCommand
	ChatMessage *ChatMessageCommand
	BanUser     *BanUserCommand
	UnbanUser   *UnbanUserCommand
}

// WriteCommandKind names one of the five write-command shapes the spec
// defines.
type WriteCommandKind string

const (
	KindUserJoined  WriteCommandKind = "UserJoined"
	KindUserLeft    WriteCommandKind = "UserLeft"
	KindChatMessage WriteCommandKind = "ChatMessage"
	KindBanUser     WriteCommandKind = "BanUser"
	KindUnbanUser   WriteCommandKind = "UnbanUser"
)

type UserJoinedCommand struct {
	UserID   types.UserIDType
	Nickname types.NicknameType
	JoinedAt time.Time
}

// UserLeftCommand carries both endpoints of the session so the sink can
// compute duration_seconds without a round-trip read of the join row.
type UserLeftCommand struct {
	UserID   types.UserIDType
	JoinedAt time.Time
	LeftAt   time.Time
}

type ChatMessageCommand struct {
	ChatID   types.ChatIDType
	UserID   types.UserIDType
	Nickname types.NicknameType
	Content  string
	SentAt   time.Time
}

type BanUserCommand struct {
	UserID   types.UserIDType
	BannedAt time.Time
}

type UnbanUserCommand struct {
	UserID types.UserIDType
}
