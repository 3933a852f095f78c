package converter

import (
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/meshconf/internal/domain"
)

type RoomResponse struct {
	ID        string    `json:"id"`
	HostID    string    `json:"host_id"`
	AdminID   string    `json:"admin_id"`
	IsLocked  bool      `json:"is_locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PresenceResponse struct {
	UserID   string    `json:"user_id"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joined_at"`
}

type ChatMessageResponse struct {
	ID        uuid.UUID `json:"id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Nickname  string    `json:"nickname"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func RoomToApi(r *domain.Room) *RoomResponse {
	return &RoomResponse{
		ID:        r.ID,
		HostID:    r.HostID,
		AdminID:   r.AdminID,
		IsLocked:  r.IsLocked,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func RoomFromApi(r *RoomResponse) *domain.Room {
	return &domain.Room{
		ID:        r.ID,
		HostID:    r.HostID,
		AdminID:   r.AdminID,
		IsLocked:  r.IsLocked,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func PresencesToApi(list []domain.Presence) []PresenceResponse {
	out := make([]PresenceResponse, 0, len(list))
	for _, p := range list {
		out = append(out, PresenceResponse{
			UserID:   p.UserID,
			Nickname: p.Nickname,
			JoinedAt: p.JoinedAt,
		})
	}
	return out
}

func ChatMessageToApi(m *domain.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Nickname:  m.Nickname,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func ChatMessageFromApi(m ChatMessageResponse) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Nickname:  m.Nickname,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

func ChatMessagesToApi(list []*domain.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(list))
	for _, m := range list {
		out = append(out, ChatMessageToApi(m))
	}
	return out
}
