package mesh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
)

// Kick sends the target away from the room.
func (s *Session) Kick(ctx context.Context, targetID string) error {
	return s.command(ctx, targetID, domain.ActionKick)
}

// Ban sends the target away and makes its client refuse this room from now on.
func (s *Session) Ban(ctx context.Context, targetID string) error {
	return s.command(ctx, targetID, domain.ActionBan)
}

// RemoteMute disables the target's microphone.
func (s *Session) RemoteMute(ctx context.Context, targetID string) error {
	return s.command(ctx, targetID, domain.ActionRemoteMute)
}

// RemoteVideoOff disables the target's camera.
func (s *Session) RemoteVideoOff(ctx context.Context, targetID string) error {
	return s.command(ctx, targetID, domain.ActionRemoteVideoOff)
}

func (s *Session) command(ctx context.Context, targetID string, action string) error {
	return s.do(ctx, func() error {
		if !s.isAdmin() {
			return ErrNotAdmin
		}
		if targetID == "" || targetID == s.self.UserID {
			return ErrInvalidTarget
		}
		if s.nicknameOf(targetID) == "" {
			if _, ok := s.peers[targetID]; !ok {
				return ErrPeerNotFound
			}
		}
		s.log.Info("admin action", slog.String("action", action), slog.String("target_id", targetID))
		s.sendAdminAction(targetID, &domain.AdminAction{Action: action})
		return nil
	})
}

// SetLocked flips the room lock locally, tells every peer, then persists it.
// The local and broadcast effects stand even when the store write fails.
func (s *Session) SetLocked(ctx context.Context, locked bool) error {
	const op = "mesh.moderation.SetLocked"

	err := s.do(ctx, func() error {
		if !s.isAdmin() {
			return ErrNotAdmin
		}
		s.locked = locked
		if s.room != nil {
			s.room.IsLocked = locked
		}
		s.sendAdminAction("", domain.NewLockAction(locked))
		s.notify()
		return nil
	})
	if err != nil {
		return err
	}
	if s.rooms == nil {
		return nil
	}

	if _, err := s.rooms.SetRoomLocked(ctx, s.roomID, locked, s.self.UserID); err != nil {
		s.log.Warn("failed to persist room lock", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Session) sendAdminAction(targetID string, action *domain.AdminAction) {
	s.send(domain.SignalMessage{
		Type:     domain.SignalAdminAction,
		TargetID: targetID,
		Action:   action,
	})
}

// handleAdminAction enforces a command on this session. Targeted commands must name us exactly.
func (s *Session) handleAdminAction(msg domain.SignalMessage) {
	action := msg.Action
	log := s.log.With(slog.String("action", action.Action), slog.String("sender_id", msg.SenderID))

	if action.Targeted() && msg.TargetID != s.self.UserID {
		return
	}

	switch action.Action {
	case domain.ActionLock:
		if action.Locked == nil {
			return
		}
		s.locked = *action.Locked
		if s.room != nil {
			s.room.IsLocked = s.locked
		}
		log.Info("room lock changed", slog.Bool("locked", s.locked))
		s.notify()
	case domain.ActionKick:
		log.Info("kicked by admin")
		s.navigateAway(ReasonKicked)
	case domain.ActionBan:
		log.Info("banned by admin")
		if err := s.bans.Ban(s.roomID); err != nil {
			log.Warn("failed to store ban marker", sl.Err(err))
		}
		s.navigateAway(ReasonBanned)
	case domain.ActionRemoteMute:
		if s.media.camera != nil && s.media.camera.audio != nil {
			s.media.camera.audio.SetEnabled(false)
		}
		s.media.muted = true
		s.notify()
	case domain.ActionRemoteVideoOff:
		if s.media.camera != nil && s.media.camera.video != nil {
			s.media.camera.video.SetEnabled(false)
		}
		s.media.videoOff = true
		s.notify()
	default:
		log.Debug("unknown admin action")
	}
}
