package mesh

import (
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/meshconf/internal/domain"
	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// ensureConnection returns the peer record for peerID, creating the connection and its four
// lines when none exists. An initiator also schedules the first offer.
func (s *Session) ensureConnection(peerID string, initiator bool) (*peer, error) {
	const op = "mesh.connection.ensureConnection"

	if p, ok := s.peers[peerID]; ok {
		return p, nil
	}
	if s.closed {
		return nil, ErrSessionClosed
	}

	log := s.log.With(slog.String("op", op), slog.String("peer_id", peerID))

	conn, err := s.factory.NewPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := newPeer(peerID, s.nicknameOf(peerID), initiator, conn)
	s.bindHandlers(p)

	for _, l := range lines {
		init := rtc.TransceiverInit{Kind: l.Kind(), Track: s.media.tracks[l]}
		if l.Video() {
			init.Encodings = simulcastLayers()
		}
		t, err := conn.AddTransceiver(init)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: add %s line: %w", op, l, err)
		}
		if l.Video() {
			if err := t.PreferCodecs(videoCodecPreference...); err != nil {
				log.Debug("codec preference not applied", slog.String("line", l.String()), sl.Err(err))
			}
		}
		p.lines[l] = t
	}

	s.peers[peerID] = p
	s.syncVideoConstraints(p.sender(LineCam), s.media.cameraBitrate)
	s.syncVideoConstraints(p.sender(LineScreenVideo), s.media.screenBitrate)

	log.Info("peer connection created", slog.Bool("initiator", initiator))

	if initiator {
		s.loop.post(func() { s.negotiate(p) })
	}
	s.notify()
	return p, nil
}

func (s *Session) bindHandlers(p *peer) {
	p.conn.OnTrack(func(track rtc.RemoteTrack, t rtc.Transceiver) {
		s.loop.post(func() { s.handleRemoteTrack(p, track, t) })
	})
	p.conn.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		s.loop.post(func() {
			if !s.live(p) {
				return
			}
			c := candidate
			s.send(domain.SignalMessage{Type: domain.SignalICECandidate, TargetID: p.id, Candidate: &c})
		})
	})
	p.conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		s.loop.post(func() {
			if !s.live(p) {
				return
			}
			s.log.Debug("ice state", slog.String("peer_id", p.id), slog.String("state", state.String()))
			switch state {
			case webrtc.ICEConnectionStateDisconnected, webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
				s.removePeer(p.id)
			}
		})
	})
	p.conn.OnNegotiationNeeded(func() {
		s.loop.post(func() { s.negotiate(p) })
	})
}

// live reports whether p is still the registered record for its id.
func (s *Session) live(p *peer) bool {
	return !s.closed && !p.closed && s.peers[p.id] == p
}

func (s *Session) removePeer(peerID string) {
	p, ok := s.peers[peerID]
	if !ok {
		return
	}
	delete(s.peers, peerID)
	p.closed = true
	p.pending = nil
	if err := p.conn.Close(); err != nil {
		s.log.Debug("peer connection close", slog.String("peer_id", peerID), sl.Err(err))
	}
	s.log.Info("peer removed", slog.String("peer_id", peerID))
	s.notify()
}

// negotiate sends a fresh offer. Only the initiator offers, and only from a stable state.
func (s *Session) negotiate(p *peer) {
	const op = "mesh.connection.negotiate"
	if !s.live(p) || !p.initiator {
		return
	}
	if p.conn.SignalingState() != webrtc.SignalingStateStable {
		return
	}
	log := s.log.With(slog.String("op", op), slog.String("peer_id", p.id))

	offer, err := p.conn.CreateOffer()
	if err != nil {
		log.Warn("failed to create offer", sl.Err(err))
		return
	}
	if err := p.conn.SetLocalDescription(offer); err != nil {
		log.Warn("failed to set local offer", sl.Err(err))
		return
	}
	// The local description must stay byte-identical to the generated one; only the copy on the wire is munged.
	offer.SDP = MungeSDP(offer.SDP)
	s.send(domain.SignalMessage{Type: domain.SignalOffer, TargetID: p.id, SDP: &offer})
}

func (s *Session) handleOffer(senderID string, sdp *webrtc.SessionDescription) {
	const op = "mesh.connection.handleOffer"
	log := s.log.With(slog.String("op", op), slog.String("peer_id", senderID))

	p, err := s.ensureConnection(senderID, false)
	if err != nil {
		log.Warn("failed to create peer for offer", sl.Err(err))
		return
	}
	if err := p.conn.SetRemoteDescription(*sdp); err != nil {
		log.Warn("failed to apply remote offer", sl.Err(err))
		return
	}
	s.afterRemoteDescription(p)

	answer, err := p.conn.CreateAnswer()
	if err != nil {
		log.Warn("failed to create answer", sl.Err(err))
		return
	}
	if err := p.conn.SetLocalDescription(answer); err != nil {
		log.Warn("failed to set local answer", sl.Err(err))
		return
	}
	answer.SDP = MungeSDP(answer.SDP)
	s.send(domain.SignalMessage{Type: domain.SignalAnswer, TargetID: p.id, SDP: &answer})
}

func (s *Session) handleAnswer(senderID string, sdp *webrtc.SessionDescription) {
	const op = "mesh.connection.handleAnswer"
	log := s.log.With(slog.String("op", op), slog.String("peer_id", senderID))

	p, err := s.ensureConnection(senderID, false)
	if err != nil {
		log.Warn("failed to create peer for answer", sl.Err(err))
		return
	}
	if err := p.conn.SetRemoteDescription(*sdp); err != nil {
		log.Warn("failed to apply remote answer", sl.Err(err))
		return
	}
	s.afterRemoteDescription(p)
}

// afterRemoteDescription flushes buffered candidates and re-applies the active screen cap so
// late joiners are not sent an uncapped share.
func (s *Session) afterRemoteDescription(p *peer) {
	pending := p.pending
	p.pending = nil
	for _, candidate := range pending {
		if err := p.conn.AddICECandidate(candidate); err != nil {
			s.log.Debug("buffered candidate rejected", slog.String("peer_id", p.id), sl.Err(err))
		}
	}
	s.syncVideoConstraints(p.sender(LineScreenVideo), s.media.screenBitrate)
}

func (s *Session) handleCandidate(senderID string, candidate webrtc.ICECandidateInit) {
	p, err := s.ensureConnection(senderID, false)
	if err != nil {
		s.log.Warn("failed to create peer for candidate", slog.String("peer_id", senderID), sl.Err(err))
		return
	}
	if p.conn.RemoteDescription() == nil {
		p.pending = append(p.pending, candidate)
		return
	}
	if err := p.conn.AddICECandidate(candidate); err != nil {
		s.log.Debug("candidate rejected", slog.String("peer_id", p.id), sl.Err(err))
	}
}

// handleRemoteTrack routes an inbound track by the line that produced it.
func (s *Session) handleRemoteTrack(p *peer, track rtc.RemoteTrack, t rtc.Transceiver) {
	if !s.live(p) {
		return
	}
	l, ok := p.lineOf(t)
	if !ok {
		s.log.Warn("track from unknown transceiver", slog.String("peer_id", p.id), slog.String("track_id", track.ID()))
		return
	}
	if l.Screen() {
		p.screen.add(track)
	} else {
		p.camera.add(track)
	}
	s.notify()
}

func (s *Session) handleSignal(msg domain.SignalMessage) {
	if s.closed || !msg.AddressedTo(s.self.UserID) {
		return
	}

	switch msg.Type {
	case domain.SignalPresenceSync:
		s.applyPresenceSync(msg.Presences)
	case domain.SignalPresenceJoin:
		s.applyPresenceJoin(msg.Presences)
	case domain.SignalPresenceLeave:
		s.applyPresenceLeave(msg.Presences)
	case domain.SignalChat:
		if msg.Chat != nil {
			s.appendMessage(msg.Chat)
		}
	case domain.SignalRoomUpdate:
		s.applyRoom(msg.RoomState)
	case domain.SignalError:
		s.log.Warn("relay error", slog.String("error", msg.Error))
	case domain.SignalOffer, domain.SignalAnswer, domain.SignalICECandidate, domain.SignalAdminAction:
		if msg.SenderID == "" || msg.SenderID == s.self.UserID {
			return
		}
		s.handlePeerSignal(msg)
	default:
		s.log.Debug("ignoring signal", slog.String("type", msg.Type))
	}
}

func (s *Session) handlePeerSignal(msg domain.SignalMessage) {
	switch msg.Type {
	case domain.SignalOffer:
		if msg.SDP != nil {
			s.handleOffer(msg.SenderID, msg.SDP)
		}
	case domain.SignalAnswer:
		if msg.SDP != nil {
			s.handleAnswer(msg.SenderID, msg.SDP)
		}
	case domain.SignalICECandidate:
		if msg.Candidate != nil {
			s.handleCandidate(msg.SenderID, *msg.Candidate)
		}
	case domain.SignalAdminAction:
		if msg.Action != nil {
			s.handleAdminAction(msg)
		}
	}
}
