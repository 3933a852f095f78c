package rtc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// Capture describes what a device source is asked to produce.
type Capture struct {
	Width       int
	Height      int
	FrameRate   int
	Stereo      bool
	Unprocessed bool
}

// NullDevices hands out LocalTracks with no source attached. A headless peer uses it to
// take part in negotiation and feeds samples through LocalTrack.WriteSample if it has any.
type NullDevices struct{}

func (NullDevices) OpenCamera(ctx context.Context, capture Capture) (Track, Track, error) {
	return openPair(ctx, "camera", webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo)
}

func (NullDevices) OpenScreen(ctx context.Context, capture Capture) (Track, Track, error) {
	video, audio, err := openPair(ctx, "screen", webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio)
	return video, audio, err
}

func openPair(ctx context.Context, label string, first, second webrtc.RTPCodecType) (Track, Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	streamID := label + "-" + uuid.NewString()
	a, err := NewLocalTrack(first, streamID)
	if err != nil {
		return nil, nil, fmt.Errorf("rtc.devices.%s: %w", label, err)
	}
	b, err := NewLocalTrack(second, streamID)
	if err != nil {
		return nil, nil, fmt.Errorf("rtc.devices.%s: %w", label, err)
	}
	return a, b, nil
}
