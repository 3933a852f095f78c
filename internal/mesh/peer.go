package mesh

import (
	"github.com/google/uuid"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/pion/webrtc/v3"
)

// Stream collects the inbound tracks of one source. A peer's two streams are created with the
// peer and only ever gain or swap tracks.
type Stream struct {
	id     string
	tracks []rtc.RemoteTrack
}

func newStream() *Stream {
	return &Stream{id: uuid.NewString()}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []rtc.RemoteTrack {
	return append([]rtc.RemoteTrack(nil), s.tracks...)
}

// add keeps at most one track per kind.
func (s *Stream) add(track rtc.RemoteTrack) {
	for i, t := range s.tracks {
		if t.Kind() == track.Kind() {
			s.tracks[i] = track
			return
		}
	}
	s.tracks = append(s.tracks, track)
}

type peer struct {
	id        string
	nickname  string
	initiator bool
	conn      rtc.PeerConnection
	lines     [lineCount]rtc.Transceiver
	camera    *Stream
	screen    *Stream
	pending   []webrtc.ICECandidateInit
	closed    bool
}

func newPeer(id string, nickname string, initiator bool, conn rtc.PeerConnection) *peer {
	return &peer{
		id:        id,
		nickname:  nickname,
		initiator: initiator,
		conn:      conn,
		camera:    newStream(),
		screen:    newStream(),
	}
}

func (p *peer) lineOf(t rtc.Transceiver) (Line, bool) {
	for _, l := range lines {
		if p.lines[l] == t {
			return l, true
		}
	}
	return 0, false
}

func (p *peer) sender(l Line) rtc.Sender {
	if p.lines[l] == nil {
		return nil
	}
	return p.lines[l].Sender()
}
