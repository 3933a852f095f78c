package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultNickname = "Guest"

// Identity is the local participant. UserID never changes once generated.
type Identity struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	Nickname string `json:"nickname" yaml:"nickname"`
}

func NewIdentity(nickname string) Identity {
	return Identity{
		UserID:   uuid.NewString(),
		Nickname: NormalizeNickname(nickname),
	}
}

func NormalizeNickname(nickname string) string {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return DefaultNickname
	}
	return nickname
}

func (i Identity) Presence(joinedAt time.Time) Presence {
	return Presence{
		UserID:   i.UserID,
		Nickname: i.Nickname,
		JoinedAt: joinedAt.UTC(),
	}
}
