package mesh

import (
	"github.com/immxrtalbeast/meshconf/internal/rtc"
	"github.com/pion/webrtc/v3"
)

// Line is one of the four fixed media lines of every peer connection.
type Line int

const (
	LineMic Line = iota
	LineCam
	LineScreenVideo
	LineScreenAudio
	lineCount
)

// lines is the transceiver creation order.
var lines = [lineCount]Line{LineMic, LineCam, LineScreenVideo, LineScreenAudio}

func (l Line) String() string {
	switch l {
	case LineMic:
		return "mic"
	case LineCam:
		return "cam"
	case LineScreenVideo:
		return "screen-video"
	case LineScreenAudio:
		return "screen-audio"
	default:
		return "unknown"
	}
}

func (l Line) Kind() webrtc.RTPCodecType {
	if l.Video() {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

func (l Line) Video() bool {
	return l == LineCam || l == LineScreenVideo
}

// Screen reports whether inbound media of this line belongs to the screen stream.
func (l Line) Screen() bool {
	return l == LineScreenVideo || l == LineScreenAudio
}

// simulcastLayers returns the quarter, half and full layers, lowest first.
func simulcastLayers() []rtc.Encoding {
	return []rtc.Encoding{
		{RID: "q", Active: true, ScaleResolutionDownBy: 4, MaxBitrate: 500_000},
		{RID: "h", Active: true, ScaleResolutionDownBy: 2, MaxBitrate: 1_500_000},
		{RID: "f", Active: true, ScaleResolutionDownBy: 1, MaxBitrate: 8_000_000},
	}
}

// Preferred video codecs, best first.
var videoCodecPreference = []string{webrtc.MimeTypeVP9, webrtc.MimeTypeVP8, webrtc.MimeTypeH264}
