package mesh

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

// SendChat posts a message to the room log. When the store write fails the message is
// still shown locally under a fresh id.
func (s *Session) SendChat(ctx context.Context, content string) error {
	const op = "mesh.chat.SendChat"

	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	var sender domain.Presence
	if err := s.do(ctx, func() error {
		if s.closed {
			return ErrSessionClosed
		}
		sender = s.self.Presence(s.joinedAt)
		return nil
	}); err != nil {
		return err
	}

	var msg *domain.ChatMessage
	if s.chat != nil {
		stored, err := s.chat.PostMessage(ctx, s.roomID, sender, content)
		if err != nil {
			s.log.Warn("chat message not persisted, keeping it locally", slog.String("op", op), sl.Err(err))
		} else {
			msg = stored
		}
	}
	if msg == nil {
		msg = domain.NewChatMessage(s.roomID, sender, content)
	}

	return s.do(ctx, func() error {
		s.appendMessage(msg)
		return nil
	})
}

// appendMessage inserts msg in creation order unless its id was already seen.
func (s *Session) appendMessage(msg *domain.ChatMessage) {
	if msg == nil {
		return
	}
	if _, ok := s.seen[msg.ID]; ok {
		return
	}
	s.seen[msg.ID] = struct{}{}

	m := *msg
	s.messages = append(s.messages, &m)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	s.notify()
}

func (s *Session) loadHistory() {
	const op = "mesh.chat.loadHistory"
	if s.chat == nil {
		return
	}
	history, err := s.chat.History(s.ctx, s.roomID, s.historyLimit)
	if err != nil {
		s.log.Warn("failed to load chat history", slog.String("op", op), sl.Err(err))
		return
	}
	s.loop.post(func() {
		if s.closed {
			return
		}
		for _, msg := range history {
			s.appendMessage(msg)
		}
	})
}

// SetNickname renames the local participant and re-announces presence.
func (s *Session) SetNickname(ctx context.Context, nickname string) error {
	return s.do(ctx, func() error {
		if s.closed {
			return ErrSessionClosed
		}
		s.self.Nickname = domain.NormalizeNickname(nickname)
		s.send(domain.SignalMessage{Type: domain.SignalNickname, Nickname: s.self.Nickname})
		s.electAdmin()
		s.notify()
		return nil
	})
}
