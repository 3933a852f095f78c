package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/repository"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

const (
	maxChatMessageLength = 4000
	maxChatSenderLength  = 255
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 500
)

var (
	ErrEmptyChatMessage   = errors.New("chat message cannot be empty")
	ErrChatMessageTooLong = errors.New("chat message is too long")
	ErrChatSenderTooLong  = errors.New("chat sender is too long")
	ErrChatSenderRequired = errors.New("chat sender id is required")
)

type ChatService struct {
	chat        repository.ChatRepository
	broadcaster Broadcaster
	log         *slog.Logger
}

func NewChatService(chat repository.ChatRepository, broadcaster Broadcaster, log *slog.Logger) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		chat:        chat,
		broadcaster: broadcaster,
		log:         log,
	}
}

// PostMessage validates, persists and fans out a chat message to every participant of the room,
// the sender included.
func (s *ChatService) PostMessage(ctx context.Context, roomID string, sender domain.Presence, content string) (*domain.ChatMessage, error) {
	const op = "service.chat.post"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_id", roomID),
		slog.String("sender_id", sender.UserID),
	)

	if !domain.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}

	content, sender, err := validateChat(content, sender)
	if err != nil {
		return nil, err
	}

	msg := domain.NewChatMessage(roomID, sender, content)
	if err := s.chat.SaveChatMessage(ctx, msg); err != nil {
		log.Error("failed to save chat message", sl.Err(err))
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastAll(roomID, domain.SignalMessage{
			Type:     domain.SignalChat,
			Room:     roomID,
			SenderID: sender.UserID,
			Chat:     msg,
		})
	}
	return msg, nil
}

func (s *ChatService) History(ctx context.Context, roomID string, limit int) ([]*domain.ChatMessage, error) {
	if !domain.ValidRoomID(roomID) {
		return nil, ErrInvalidRoomID
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.chat.ListChatMessages(ctx, roomID, limit)
}

func validateChat(content string, sender domain.Presence) (string, domain.Presence, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", sender, ErrEmptyChatMessage
	}
	if utf8.RuneCountInString(trimmed) > maxChatMessageLength {
		return "", sender, ErrChatMessageTooLong
	}

	sender.UserID = strings.TrimSpace(sender.UserID)
	if sender.UserID == "" {
		return "", sender, ErrChatSenderRequired
	}
	sender.Nickname = domain.NormalizeNickname(sender.Nickname)
	if utf8.RuneCountInString(sender.Nickname) > maxChatSenderLength {
		return "", sender, ErrChatSenderTooLong
	}
	return trimmed, sender, nil
}
