// Package rtctest provides an in-process fake of the rtc interfaces. Connections created by the
// same Network can negotiate with each other: a description carries the id of the connection that
// produced it, and applying the first remote description fires OnTrack once per transceiver.
package rtctest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/pion/webrtc/v3"
)

var (
	ErrNoRemoteDescription = errors.New("remote description is not set")
	ErrWrongState          = errors.New("description does not match signaling state")
	ErrClosed              = errors.New("connection closed")
	// ErrModifiedDescription mirrors pion, which only accepts the description it generated last.
	ErrModifiedDescription = errors.New("local description does not match the generated one")
)

const sdpPrefix = "v=0\r\no=fake "

// Network creates connections that can find each other by the ids in their descriptions.
type Network struct {
	mu    sync.Mutex
	seq   int
	conns map[string]*Conn

	// FailNewConnection makes the next NewPeerConnection call fail.
	FailNewConnection error
}

func NewNetwork() *Network {
	return &Network{conns: make(map[string]*Conn)}
}

func (n *Network) NewPeerConnection() (rtc.PeerConnection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.FailNewConnection; err != nil {
		n.FailNewConnection = nil
		return nil, err
	}

	n.seq++
	c := &Conn{
		id:      fmt.Sprintf("pc%d", n.seq),
		network: n,
		state:   webrtc.SignalingStateStable,
	}
	n.conns[c.id] = c
	return c, nil
}

// Conns returns every connection created so far in creation order.
func (n *Network) Conns() []*Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Conn, 0, len(n.conns))
	for i := 1; i <= n.seq; i++ {
		if c, ok := n.conns[fmt.Sprintf("pc%d", i)]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (n *Network) lookup(id string) *Conn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conns[id]
}

// Conn is a fake peer connection.
type Conn struct {
	id      string
	network *Network

	mu           sync.Mutex
	state        webrtc.SignalingState
	transceivers []*Transceiver
	local        *webrtc.SessionDescription
	remote       *webrtc.SessionDescription
	peer         *Conn
	tracksFired  bool
	closed       bool
	closeCalls   int
	candidates   []webrtc.ICECandidateInit
	offers       int
	answers      int
	lastOffer    string
	lastAnswer   string
	stats        rtc.Stats
	statsErr     error

	onTrack       func(rtc.RemoteTrack, rtc.Transceiver)
	onCandidate   func(webrtc.ICECandidateInit)
	onICEState    func(webrtc.ICEConnectionState)
	onNegotiation func()
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) AddTransceiver(init rtc.TransceiverInit) (rtc.Transceiver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	params := rtc.SendParameters{Encodings: init.Encodings}
	if len(params.Encodings) == 0 {
		params.Encodings = []rtc.Encoding{{Active: true}}
	}
	t := &Transceiver{
		index: len(c.transceivers),
		kind:  init.Kind,
		sender: &Sender{
			track:  init.Track,
			params: params.Clone(),
		},
	}
	c.transceivers = append(c.transceivers, t)
	return t, nil
}

func (c *Conn) OnTrack(fn func(rtc.RemoteTrack, rtc.Transceiver)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *Conn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onCandidate = fn
	c.mu.Unlock()
}

func (c *Conn) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.mu.Lock()
	c.onICEState = fn
	c.mu.Unlock()
}

func (c *Conn) OnNegotiationNeeded(fn func()) {
	c.mu.Lock()
	c.onNegotiation = fn
	c.mu.Unlock()
}

func (c *Conn) SignalingState() webrtc.SignalingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) describe(kind webrtc.SDPType) webrtc.SessionDescription {
	var b strings.Builder
	b.WriteString(sdpPrefix + c.id + "\r\n")
	for _, t := range c.transceivers {
		if t.kind == webrtc.RTPCodecTypeAudio {
			b.WriteString("m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
			b.WriteString("a=fmtp:111 minptime=10;useinbandfec=1\r\n")
		} else {
			b.WriteString("m=video 9 UDP/TLS/RTP/SAVPF 98\r\n")
		}
	}
	return webrtc.SessionDescription{Type: kind, SDP: b.String()}
}

func (c *Conn) CreateOffer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return webrtc.SessionDescription{}, ErrClosed
	}
	c.offers++
	desc := c.describe(webrtc.SDPTypeOffer)
	c.lastOffer = desc.SDP
	return desc, nil
}

func (c *Conn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return webrtc.SessionDescription{}, ErrClosed
	}
	if c.state != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, ErrWrongState
	}
	c.answers++
	desc := c.describe(webrtc.SDPTypeAnswer)
	c.lastAnswer = desc.SDP
	return desc, nil
}

func (c *Conn) SetLocalDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if (desc.Type == webrtc.SDPTypeOffer && desc.SDP != c.lastOffer) ||
		(desc.Type == webrtc.SDPTypeAnswer && desc.SDP != c.lastAnswer) {
		c.mu.Unlock()
		return ErrModifiedDescription
	}
	switch {
	case desc.Type == webrtc.SDPTypeOffer && c.state == webrtc.SignalingStateStable:
		c.state = webrtc.SignalingStateHaveLocalOffer
	case desc.Type == webrtc.SDPTypeAnswer && c.state == webrtc.SignalingStateHaveRemoteOffer:
		c.state = webrtc.SignalingStateStable
	default:
		c.mu.Unlock()
		return ErrWrongState
	}
	d := desc
	c.local = &d
	onCandidate := c.onCandidate
	candidate := webrtc.ICECandidateInit{Candidate: "candidate:" + c.id + " 1 udp 1 127.0.0.1 9 typ host"}
	c.mu.Unlock()

	if onCandidate != nil {
		onCandidate(candidate)
	}
	return nil
}

func (c *Conn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch {
	case desc.Type == webrtc.SDPTypeOffer && c.state == webrtc.SignalingStateStable:
		c.state = webrtc.SignalingStateHaveRemoteOffer
	case desc.Type == webrtc.SDPTypeAnswer && c.state == webrtc.SignalingStateHaveLocalOffer:
		c.state = webrtc.SignalingStateStable
	default:
		c.mu.Unlock()
		return ErrWrongState
	}
	d := desc
	c.remote = &d
	if c.peer == nil {
		c.peer = c.network.lookup(remoteID(desc.SDP))
	}

	var fire []*Transceiver
	if !c.tracksFired {
		c.tracksFired = true
		fire = append(fire, c.transceivers...)
	}
	onTrack := c.onTrack
	c.mu.Unlock()

	if onTrack != nil {
		for _, t := range fire {
			onTrack(&RemoteTrack{conn: c, index: t.index, kind: t.kind}, t)
		}
	}
	return nil
}

func remoteID(sdp string) string {
	if !strings.HasPrefix(sdp, sdpPrefix) {
		return ""
	}
	rest := sdp[len(sdpPrefix):]
	if i := strings.Index(rest, "\r\n"); i >= 0 {
		return rest[:i]
	}
	return rest
}

func (c *Conn) RemoteDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

func (c *Conn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.remote == nil {
		return ErrNoRemoteDescription
	}
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *Conn) GetStats() (rtc.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.statsErr
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.closed = true
	c.mu.Unlock()
	return nil
}

// SetStats sets the counters returned by the next GetStats calls.
func (c *Conn) SetStats(stats rtc.Stats, err error) {
	c.mu.Lock()
	c.stats = stats
	c.statsErr = err
	c.mu.Unlock()
}

// SetICEState reports an ICE connection state change to the registered handler.
func (c *Conn) SetICEState(state webrtc.ICEConnectionState) {
	c.mu.Lock()
	fn := c.onICEState
	c.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// FireNegotiationNeeded invokes the negotiation-needed handler.
func (c *Conn) FireNegotiationNeeded() {
	c.mu.Lock()
	fn := c.onNegotiation
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *Conn) Transceivers() []*Transceiver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Transceiver(nil), c.transceivers...)
}

func (c *Conn) Candidates() []webrtc.ICECandidateInit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), c.candidates...)
}

func (c *Conn) LocalDescription() *webrtc.SessionDescription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *Conn) Offers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offers
}

func (c *Conn) Answers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// Transceiver is a fake media line.
type Transceiver struct {
	index     int
	kind      webrtc.RTPCodecType
	sender    *Sender
	mu        sync.Mutex
	preferred []string
}

func (t *Transceiver) Kind() webrtc.RTPCodecType { return t.kind }

func (t *Transceiver) Sender() rtc.Sender { return t.sender }

// FakeSender exposes the concrete sender for assertions.
func (t *Transceiver) FakeSender() *Sender { return t.sender }

func (t *Transceiver) PreferCodecs(mimeTypes ...string) error {
	t.mu.Lock()
	t.preferred = append([]string(nil), mimeTypes...)
	t.mu.Unlock()
	return nil
}

func (t *Transceiver) Preferred() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.preferred...)
}

// Sender records replaced tracks and parameter pushes.
type Sender struct {
	mu         sync.Mutex
	track      rtc.Track
	params     rtc.SendParameters
	setCalls   int
	replaceErr error
}

func (s *Sender) Track() rtc.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *Sender) ReplaceTrack(track rtc.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.track = track
	return nil
}

func (s *Sender) GetParameters() rtc.SendParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

func (s *Sender) SetParameters(params rtc.SendParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params.Clone()
	s.setCalls++
	return nil
}

// SetParametersCalls counts SetParameters invocations.
func (s *Sender) SetParametersCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls
}

func (s *Sender) FailReplace(err error) {
	s.mu.Lock()
	s.replaceErr = err
	s.mu.Unlock()
}

// RemoteTrack is what a receiver produces. Source resolves the track the remote side is
// currently sending on the same line.
type RemoteTrack struct {
	conn  *Conn
	index int
	kind  webrtc.RTPCodecType
}

func (r *RemoteTrack) ID() string {
	return fmt.Sprintf("%s-recv-%d", r.conn.id, r.index)
}

func (r *RemoteTrack) Kind() webrtc.RTPCodecType { return r.kind }

func (r *RemoteTrack) Source() rtc.Track {
	r.conn.mu.Lock()
	peer := r.conn.peer
	r.conn.mu.Unlock()
	if peer == nil {
		return nil
	}
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if r.index >= len(peer.transceivers) {
		return nil
	}
	return peer.transceivers[r.index].sender.Track()
}
