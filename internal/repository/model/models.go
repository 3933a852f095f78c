package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID        string    `gorm:"size:64;primaryKey"`
	HostID    string    `gorm:"size:64;not null"`
	AdminID   string    `gorm:"size:64"`
	IsLocked  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Messages  []Message `gorm:"constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    string    `gorm:"size:64;index:idx_messages_room_created,priority:1;not null"`
	SenderID  string    `gorm:"size:64;not null"`
	Nickname  string    `gorm:"size:255;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2;not null"`
}
