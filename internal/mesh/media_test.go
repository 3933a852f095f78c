package mesh

import (
	"context"
	"errors"
	"testing"

	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStartCameraCapture verifies the capture request per preset and cinema mode.
func TestStartCameraCapture(t *testing.T) {
	s := newSolo(t)
	require.NoError(t, s.StartCamera(context.Background(), "1080p", true))

	require.Len(t, s.devices.Captures, 1)
	assert.Equal(t, rtc.Capture{Width: 1920, Height: 1080, FrameRate: 30, Stereo: true, Unprocessed: true}, s.devices.Captures[0])
	snap := snapshot(t, s)
	assert.True(t, snap.CameraOn)
	assert.False(t, snap.IsMuted)

	err := s.StartCamera(context.Background(), "8k", false)
	assert.ErrorIs(t, err, ErrUnknownPreset)
	err = s.StartScreenShare(context.Background(), "720p")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

// TestStartCameraDeviceError verifies that a device failure leaves the session untouched.
func TestStartCameraDeviceError(t *testing.T) {
	s := newSolo(t)
	denied := errors.New("permission denied")
	s.devices.Err = denied

	assert.ErrorIs(t, s.StartCamera(context.Background(), "720p", false), denied)
	assert.ErrorIs(t, s.StartScreenShare(context.Background(), "1080p"), denied)
	snap := snapshot(t, s)
	assert.False(t, snap.CameraOn)
	assert.False(t, snap.ScreenOn)
}

// TestRestartCameraStopsPrevious verifies that a second start replaces and stops the first stream.
func TestRestartCameraStopsPrevious(t *testing.T) {
	s := newSolo(t)
	s.run(t, func() error {
		_, err := s.ensureConnection("bob", true)
		return err
	})
	require.NoError(t, s.StartCamera(context.Background(), "720p", false))
	require.NoError(t, s.StartCamera(context.Background(), "1440p", false))

	opened := s.devices.Opened
	require.Len(t, opened, 4)
	assert.Equal(t, 1, opened[0].Stops())
	assert.Equal(t, 1, opened[1].Stops())
	assert.Zero(t, opened[3].Stops())

	cam := sender(t, s.conn(t, 0), LineCam)
	assert.Same(t, opened[3], cam.Track())
	assert.Equal(t, uint64(8_000_000), cam.GetParameters().Encodings[2].MaxBitrate)

	require.NoError(t, s.StopCamera(context.Background()))
	assert.Equal(t, 1, opened[3].Stops())
	assert.Nil(t, cam.Track())
	assert.Nil(t, sender(t, s.conn(t, 0), LineMic).Track())
	assert.False(t, snapshot(t, s).CameraOn)
}

// TestToggleAudioAndVideo verifies the local mute switches.
func TestToggleAudioAndVideo(t *testing.T) {
	s := newSolo(t)
	ctx := context.Background()

	muted, err := s.ToggleAudio(ctx)
	require.NoError(t, err)
	assert.False(t, muted, "nothing to mute without a camera")

	require.NoError(t, s.StartCamera(ctx, "720p", false))
	audio, video := s.devices.Opened[0], s.devices.Opened[1]

	muted, err = s.ToggleAudio(ctx)
	require.NoError(t, err)
	assert.True(t, muted)
	assert.False(t, audio.Enabled())

	off, err := s.ToggleVideo(ctx)
	require.NoError(t, err)
	assert.True(t, off)
	assert.False(t, video.Enabled())

	muted, err = s.ToggleAudio(ctx)
	require.NoError(t, err)
	assert.False(t, muted)
	assert.True(t, audio.Enabled())

	snap := snapshot(t, s)
	assert.False(t, snap.IsMuted)
	assert.True(t, snap.IsVideoOff)
}

// TestScreenShareEndsWithSource verifies that an ended screen source stops the share.
func TestScreenShareEndsWithSource(t *testing.T) {
	s := newSolo(t)
	s.run(t, func() error {
		_, err := s.ensureConnection("bob", true)
		return err
	})
	require.NoError(t, s.StartScreenShare(context.Background(), "4k"))
	video, audio := s.devices.Opened[0], s.devices.Opened[1]
	assert.Equal(t, rtc.Capture{Width: 3840, Height: 2160, FrameRate: 60, Stereo: true}, s.devices.Captures[0])

	screen := sender(t, s.conn(t, 0), LineScreenVideo)
	assert.Same(t, video, screen.Track())
	assert.Same(t, audio, sender(t, s.conn(t, 0), LineScreenAudio).Track())
	assert.True(t, snapshot(t, s).ScreenOn)

	video.End()
	s.process()

	assert.False(t, snapshot(t, s).ScreenOn)
	assert.Nil(t, screen.Track())
	assert.Nil(t, sender(t, s.conn(t, 0), LineScreenAudio).Track())
	assert.Equal(t, 1, video.Stops())
	assert.Equal(t, 1, audio.Stops())
}

// TestStaleEndedHookIgnored verifies that the end of a replaced share does not stop the new one.
func TestStaleEndedHookIgnored(t *testing.T) {
	s := newSolo(t)
	require.NoError(t, s.StartScreenShare(context.Background(), "1080p"))
	first := s.devices.Opened[0]
	require.NoError(t, s.StartScreenShare(context.Background(), "1440p"))

	first.End()
	s.process()
	assert.True(t, snapshot(t, s).ScreenOn)
}

// TestLineKinds verifies the fixed line layout.
func TestLineKinds(t *testing.T) {
	assert.Equal(t, "mic", LineMic.String())
	assert.Equal(t, "screen-audio", LineScreenAudio.String())
	assert.True(t, LineCam.Video())
	assert.False(t, LineCam.Screen())
	assert.True(t, LineScreenAudio.Screen())
	assert.False(t, LineScreenAudio.Video())
}
