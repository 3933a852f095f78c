package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewChatMessage(roomID string, sender Presence, content string) *ChatMessage {
	return &ChatMessage{
		ID:        uuid.New(),
		RoomID:    roomID,
		SenderID:  sender.UserID,
		Nickname:  sender.Nickname,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
