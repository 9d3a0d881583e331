package chatroom

import (
	"github.com/nullboard/roomd/internal/v1/types"
)

// handleStats copies current state into a snapshot and sends it through the
// query's one-shot reply handle. No I/O, no blocking: the reply channel
// must already be buffered by the caller.
func (a *Actor) handleStats(q StatsQuery) {
	members := make([]types.Member, 0, len(a.members))
	for _, c := range a.members {
		_, muted := a.mutes[c.userID]
		members = append(members, types.Member{
			UserID:   c.userID,
			Nickname: c.nickname,
			IsAdmin:  c.isAdmin,
			Muted:    muted,
			JoinedAt: c.joinedAt,
		})
	}

	admins := make([]types.UserIDType, 0, len(a.admins))
	for id := range a.admins {
		admins = append(admins, id)
	}

	snapshot := types.RoomStats{
		RoomID:       a.roomID,
		Members:      members,
		Admins:       admins,
		StartedAt:    a.startedAt,
		CurrentUsers: a.currentUsers,
		PeakUsers:    a.peakUsers,
		TotalJoins:   a.totalJoins,
	}

	select {
	case q.Reply <- snapshot:
	default:
	}
}
