package mesh

import (
	"log/slog"
	"sort"

	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

// AdminPolicy elects the session admin from the live roster and the room record.
// An empty result means nobody is admin.
type AdminPolicy interface {
	Elect(roster []domain.Presence, room *domain.Room) string
}

// ReservedNamePolicy grants admin to the earliest participant using a reserved nickname.
type ReservedNamePolicy struct {
	Nickname string
}

func (p ReservedNamePolicy) Elect(roster []domain.Presence, _ *domain.Room) string {
	if p.Nickname == "" {
		return ""
	}
	for _, presence := range roster {
		if presence.Nickname == p.Nickname {
			return presence.UserID
		}
	}
	return ""
}

// RoomOwnerPolicy grants admin to the room's admin id, falling back to its host.
type RoomOwnerPolicy struct{}

func (RoomOwnerPolicy) Elect(_ []domain.Presence, room *domain.Room) string {
	if room == nil {
		return ""
	}
	if room.AdminID != "" {
		return room.AdminID
	}
	return room.HostID
}

func PolicyFromConfig(cfg config.SessionConfig) AdminPolicy {
	if cfg.AdminPolicy == config.AdminPolicyRoomOwner {
		return RoomOwnerPolicy{}
	}
	nickname := cfg.AdminNickname
	if nickname == "" {
		nickname = defaultAdminNickname
	}
	return ReservedNamePolicy{Nickname: nickname}
}

func sortRoster(roster []domain.Presence) {
	sort.SliceStable(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].UserID < roster[j].UserID
		}
		return roster[i].JoinedAt.Before(roster[j].JoinedAt)
	})
}

func (s *Session) applyPresenceSync(list []domain.Presence) {
	roster := make([]domain.Presence, len(list))
	copy(roster, list)
	sortRoster(roster)
	s.roster = roster

	members := make(map[string]domain.Presence, len(roster))
	for _, p := range roster {
		members[p.UserID] = p
	}
	for id, p := range s.peers {
		member, ok := members[id]
		if !ok {
			s.log.Debug("dropping peer missing from roster", slog.String("peer_id", id))
			s.removePeer(id)
			continue
		}
		p.nickname = member.Nickname
	}
	if self, ok := members[s.self.UserID]; ok {
		s.self.Nickname = self.Nickname
	}

	s.electAdmin()
	s.notify()
}

func (s *Session) applyPresenceJoin(list []domain.Presence) {
	for _, presence := range list {
		if presence.UserID == s.self.UserID {
			continue
		}
		s.upsertRoster(presence)
		s.electAdmin()

		if s.isAdmin() && s.locked {
			s.log.Info("room is locked, kicking joiner", slog.String("peer_id", presence.UserID))
			s.sendAdminAction(presence.UserID, &domain.AdminAction{Action: domain.ActionKick})
			continue
		}
		if _, err := s.ensureConnection(presence.UserID, true); err != nil {
			s.log.Warn("failed to connect to joiner", slog.String("peer_id", presence.UserID), sl.Err(err))
		}
	}
	s.notify()
}

func (s *Session) applyPresenceLeave(list []domain.Presence) {
	for _, presence := range list {
		s.dropRoster(presence.UserID)
		s.removePeer(presence.UserID)
	}
	s.electAdmin()
	s.notify()
}

func (s *Session) upsertRoster(presence domain.Presence) {
	for i := range s.roster {
		if s.roster[i].UserID == presence.UserID {
			s.roster[i] = presence
			sortRoster(s.roster)
			return
		}
	}
	s.roster = append(s.roster, presence)
	sortRoster(s.roster)
}

func (s *Session) dropRoster(userID string) {
	out := s.roster[:0]
	for _, p := range s.roster {
		if p.UserID != userID {
			out = append(out, p)
		}
	}
	s.roster = out
}

func (s *Session) electAdmin() {
	adminID := s.policy.Elect(s.roster, s.room)
	if adminID != s.adminID {
		s.log.Info("admin elected", slog.String("admin_id", adminID))
	}
	s.adminID = adminID
}

func (s *Session) isAdmin() bool {
	return s.adminID != "" && s.adminID == s.self.UserID
}

func (s *Session) participantCount() int {
	return max(len(s.roster), 1)
}

func (s *Session) nicknameOf(userID string) string {
	for _, p := range s.roster {
		if p.UserID == userID {
			return p.Nickname
		}
	}
	return ""
}
