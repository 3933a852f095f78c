package mesh

import (
	"context"
	"errors"
	"sort"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
)

type StreamView struct {
	ID     string
	Tracks []rtc.RemoteTrack
}

type PeerView struct {
	ID        string
	Nickname  string
	Initiator bool
	Camera    StreamView
	Screen    StreamView
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	RoomID           string
	Self             domain.Identity
	Peers            []PeerView
	Roster           []domain.Presence
	ParticipantCount int
	AdminID          string
	IsAdmin          bool
	IsLocked         bool
	CameraOn         bool
	ScreenOn         bool
	IsMuted          bool
	IsVideoOff       bool
	Network          NetworkStats
	Messages         []domain.ChatMessage
	Closed           bool
	Reason           string
}

// Peer returns the view of peerID and whether it exists.
func (s Snapshot) Peer(peerID string) (PeerView, bool) {
	for _, p := range s.Peers {
		if p.ID == peerID {
			return p, true
		}
	}
	return PeerView{}, false
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		<-s.done
		return s.snapshot(), nil
	}
	return snap, err
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		RoomID:           s.roomID,
		Self:             s.self,
		Roster:           append([]domain.Presence(nil), s.roster...),
		ParticipantCount: s.participantCount(),
		AdminID:          s.adminID,
		IsAdmin:          s.isAdmin(),
		IsLocked:         s.locked,
		CameraOn:         s.media.camera != nil,
		ScreenOn:         s.media.screen != nil,
		IsMuted:          s.media.muted,
		IsVideoOff:       s.media.videoOff,
		Network:          s.quality.stats,
		Closed:           s.closed,
		Reason:           s.reason,
	}
	for _, p := range s.peers {
		snap.Peers = append(snap.Peers, PeerView{
			ID:        p.id,
			Nickname:  p.nickname,
			Initiator: p.initiator,
			Camera:    StreamView{ID: p.camera.ID(), Tracks: p.camera.Tracks()},
			Screen:    StreamView{ID: p.screen.ID(), Tracks: p.screen.Tracks()},
		})
	}
	sort.Slice(snap.Peers, func(i, j int) bool { return snap.Peers[i].ID < snap.Peers[j].ID })
	for _, m := range s.messages {
		snap.Messages = append(snap.Messages, *m)
	}
	return snap
}
