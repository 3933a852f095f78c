package domain

import "time"

// Presence is what a participant publishes about itself while subscribed to a room.
type Presence struct {
	UserID   string    `json:"user_id"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joined_at"`
}
