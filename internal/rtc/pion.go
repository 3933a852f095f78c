package rtc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/immxrtalbeast/meshconf/internal/config"
	"github.com/immxrtalbeast/meshconf/lib/logger/sl"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// PionFactory builds peer connections on a shared pion API with default codecs and interceptors.
type PionFactory struct {
	api    *webrtc.API
	config webrtc.Configuration
	log    *slog.Logger
}

func NewPionFactory(cfg config.WebRTCConfig, log *slog.Logger) (*PionFactory, error) {
	const op = "rtc.pion.NewPionFactory"
	if log == nil {
		log = slog.Default()
	}

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PionFactory{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(registry)),
		config: ICEConfiguration(cfg),
		log:    log,
	}, nil
}

// ICEConfiguration maps the STUN/TURN settings to a pion configuration.
func ICEConfiguration(cfg config.WebRTCConfig) webrtc.Configuration {
	var servers []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if len(cfg.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       cfg.TURNServers,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNPassword,
		})
	}
	return webrtc.Configuration{
		ICEServers:   servers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	}
}

func (f *PionFactory) NewPeerConnection() (PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("rtc.pion.NewPeerConnection: %w", err)
	}
	return &pionConnection{pc: pc, log: f.log}, nil
}

type pionConnection struct {
	pc  *webrtc.PeerConnection
	log *slog.Logger

	mu           sync.Mutex
	transceivers []*pionTransceiver
}

func (c *pionConnection) AddTransceiver(init TransceiverInit) (Transceiver, error) {
	const op = "rtc.pion.AddTransceiver"

	pinit := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendrecv}

	var (
		t   *webrtc.RTPTransceiver
		err error
	)
	if init.Track != nil {
		local, ok := init.Track.(*LocalTrack)
		if !ok {
			return nil, fmt.Errorf("%s: %w", op, ErrForeignTrack)
		}
		t, err = c.pc.AddTransceiverFromTrack(local.sample, pinit)
	} else {
		t, err = c.pc.AddTransceiverFromKind(init.Kind, pinit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := SendParameters{Encodings: init.Encodings}
	if len(params.Encodings) == 0 {
		params.Encodings = []Encoding{{Active: true}}
	}

	tr := &pionTransceiver{
		t: t,
		sender: &pionSender{
			sender: t.Sender(),
			track:  init.Track,
			params: params.Clone(),
		},
	}

	if local, ok := init.Track.(*LocalTrack); ok {
		local.attach(tr.sender, params.Clone())
	}

	c.mu.Lock()
	c.transceivers = append(c.transceivers, tr)
	c.mu.Unlock()

	return tr, nil
}

func (c *pionConnection) OnTrack(fn func(RemoteTrack, Transceiver)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		owner := c.transceiverFor(receiver)
		if owner == nil {
			c.log.Warn("inbound track without transceiver", slog.String("track_id", track.ID()))
			return
		}
		go drain(track)
		fn(track, owner)
	})
}

func (c *pionConnection) transceiverFor(receiver *webrtc.RTPReceiver) *pionTransceiver {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tr := range c.transceivers {
		if tr.t.Receiver() == receiver {
			return tr
		}
	}
	return nil
}

// drain keeps the interceptor chain fed until the remote track goes away.
func drain(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func (c *pionConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		fn(candidate.ToJSON())
	})
}

func (c *pionConnection) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(fn)
}

func (c *pionConnection) OnNegotiationNeeded(fn func()) {
	c.pc.OnNegotiationNeeded(fn)
}

func (c *pionConnection) SignalingState() webrtc.SignalingState {
	return c.pc.SignalingState()
}

func (c *pionConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *pionConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *pionConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConnection) RemoteDescription() *webrtc.SessionDescription {
	return c.pc.RemoteDescription()
}

func (c *pionConnection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConnection) GetStats() (Stats, error) {
	return collectStats(c.pc.GetStats()), nil
}

func (c *pionConnection) Close() error {
	if err := c.pc.Close(); err != nil {
		c.log.Debug("peer connection close", sl.Err(err))
		return err
	}
	return nil
}

// collectStats folds a report into byte totals, the active pair RTT and the worst remote loss.
func collectStats(report webrtc.StatsReport) Stats {
	var out Stats
	for _, entry := range report {
		switch s := entry.(type) {
		case webrtc.OutboundRTPStreamStats:
			out.BytesSent += s.BytesSent
		case webrtc.InboundRTPStreamStats:
			out.BytesReceived += s.BytesReceived
		case webrtc.ICECandidatePairStats:
			if s.State != webrtc.StatsICECandidatePairStateSucceeded {
				continue
			}
			rtt := time.Duration(s.CurrentRoundTripTime * float64(time.Second))
			if !out.HasRTT || rtt > out.RTT {
				out.RTT = rtt
				out.HasRTT = true
			}
		case webrtc.RemoteInboundRTPStreamStats:
			if !out.HasLoss || s.FractionLost > out.FractionLost {
				out.FractionLost = s.FractionLost
				out.HasLoss = true
			}
		}
	}
	return out
}

type pionTransceiver struct {
	t      *webrtc.RTPTransceiver
	sender *pionSender
}

func (t *pionTransceiver) Kind() webrtc.RTPCodecType {
	return t.t.Kind()
}

func (t *pionTransceiver) Sender() Sender {
	return t.sender
}

var preferredCodecs = map[string]webrtc.RTPCodecParameters{
	webrtc.MimeTypeVP9: {
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP9, ClockRate: 90000, SDPFmtpLine: "profile-id=0"},
		PayloadType:        98,
	},
	webrtc.MimeTypeVP8: {
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
		PayloadType:        96,
	},
	webrtc.MimeTypeH264: {
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeH264,
			ClockRate:   90000,
			SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f",
		},
		PayloadType: 102,
	},
}

func (t *pionTransceiver) PreferCodecs(mimeTypes ...string) error {
	codecs := make([]webrtc.RTPCodecParameters, 0, len(mimeTypes))
	for _, mime := range mimeTypes {
		if codec, ok := preferredCodecs[mime]; ok {
			codecs = append(codecs, codec)
		}
	}
	if len(codecs) == 0 {
		return ErrCodecMismatch
	}
	return t.t.SetCodecPreferences(codecs)
}

// pionSender keeps its own copy of the send parameters. pion v3 cannot change encoding
// parameters of a live sender, so layers, bitrate caps and frame-rate limits are recorded here
// and exposed through GetParameters and LocalTrack.Layers; they never reach the RTP stream.
type pionSender struct {
	sender *webrtc.RTPSender

	mu     sync.Mutex
	track  Track
	params SendParameters
}

func (s *pionSender) Track() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *pionSender) ReplaceTrack(track Track) error {
	var local webrtc.TrackLocal
	if track != nil {
		lt, ok := track.(*LocalTrack)
		if !ok {
			return ErrForeignTrack
		}
		local = lt.sample
	}
	if err := s.sender.ReplaceTrack(local); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.track
	s.track = track
	params := s.params.Clone()
	s.mu.Unlock()

	if lt, ok := prev.(*LocalTrack); ok && prev != track {
		lt.detach(s)
	}
	if lt, ok := track.(*LocalTrack); ok {
		lt.attach(s, params)
	}
	return nil
}

func (s *pionSender) GetParameters() SendParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

func (s *pionSender) SetParameters(params SendParameters) error {
	s.mu.Lock()
	s.params = params.Clone()
	track := s.track
	s.mu.Unlock()

	if lt, ok := track.(*LocalTrack); ok {
		lt.attach(s, params.Clone())
	}
	return nil
}
