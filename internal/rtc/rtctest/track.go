package rtctest

import (
	"context"
	"fmt"
	"sync"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/pion/webrtc/v3"
)

// Track is a fake local track.
type Track struct {
	id   string
	kind webrtc.RTPCodecType

	mu      sync.Mutex
	enabled bool
	stops   int
	onEnded []func()
}

func NewTrack(id string, kind webrtc.RTPCodecType) *Track {
	return &Track{id: id, kind: kind, enabled: true}
}

func (t *Track) ID() string                { return t.id }
func (t *Track) Kind() webrtc.RTPCodecType { return t.kind }

func (t *Track) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Track) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *Track) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

// Stops counts Stop calls.
func (t *Track) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

func (t *Track) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

// End simulates the device source going away.
func (t *Track) End() {
	t.mu.Lock()
	callbacks := append([]func(){}, t.onEnded...)
	t.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Devices hands out fake tracks and records the capture requests it received.
type Devices struct {
	mu       sync.Mutex
	seq      int
	Err      error
	Captures []rtc.Capture
	Opened   []*Track
}

func (d *Devices) OpenCamera(ctx context.Context, capture rtc.Capture) (rtc.Track, rtc.Track, error) {
	audio, video, err := d.open(capture, "camera", webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo)
	if err != nil {
		return nil, nil, err
	}
	return audio, video, nil
}

func (d *Devices) OpenScreen(ctx context.Context, capture rtc.Capture) (rtc.Track, rtc.Track, error) {
	video, audio, err := d.open(capture, "screen", webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio)
	if err != nil {
		return nil, nil, err
	}
	return video, audio, nil
}

func (d *Devices) open(capture rtc.Capture, label string, first, second webrtc.RTPCodecType) (*Track, *Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, nil, d.Err
	}
	d.seq++
	d.Captures = append(d.Captures, capture)
	a := NewTrack(fmt.Sprintf("%s-%s-%d", label, first, d.seq), first)
	b := NewTrack(fmt.Sprintf("%s-%s-%d", label, second, d.seq), second)
	d.Opened = append(d.Opened, a, b)
	return a, b, nil
}
