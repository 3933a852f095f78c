package domain

import (
	"strings"
	"time"
)

// Room is the persisted record shared by everyone in a channel.
// IsLocked is the only field the mesh engine writes.
type Room struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	AdminID   string    `json:"admin_id,omitempty"`
	IsLocked  bool      `json:"is_locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const maxRoomIDLength = 64

// NewRoom constructs a room owned by its first visitor.
func NewRoom(id string, hostID string) *Room {
	now := time.Now().UTC()
	return &Room{
		ID:        id,
		HostID:    hostID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidRoomID reports whether id can name a room.
func ValidRoomID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= maxRoomIDLength && !strings.ContainsAny(id, "/?#")
}
