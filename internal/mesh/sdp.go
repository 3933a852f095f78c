package mesh

import (
	"regexp"
	"strings"
)

const (
	opusDefaultFmtp = "111 minptime=10;useinbandfec=1"
	opusStereoFmtp  = ";stereo=1;sprop-stereo=1;maxaveragebitrate=510000"
)

var opusFmtpLine = regexp.MustCompile(`(?m)^a=fmtp:111([^\r\n]*)`)

// MungeSDP asks for stereo Opus at a high average bitrate on payload type 111.
func MungeSDP(sdp string) string {
	if strings.Contains(sdp, opusDefaultFmtp) {
		return strings.Replace(sdp, opusDefaultFmtp, opusDefaultFmtp+opusStereoFmtp, 1)
	}
	if strings.Contains(sdp, "a=fmtp:111") {
		return opusFmtpLine.ReplaceAllString(sdp, "a=fmtp:111${1}"+opusStereoFmtp)
	}
	return sdp
}
