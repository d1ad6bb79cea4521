package pipeline

import "mediacompress/internal/media/ffprobe"

// ToleranceFactor is the margin above the target bitrate within which a video
// is published as-is.
const ToleranceFactor = 1.1

// ShouldTranscode reports whether a video probed at current should be
// re-encoded for targetKbps. Unknown and zero bitrates are transcoded; a
// missing prober never is.
func ShouldTranscode(current ffprobe.BitrateResult, targetKbps int) bool {
	switch current.State {
	case ffprobe.BitrateToolMissing:
		return false
	case ffprobe.BitrateUnknown:
		return true
	}
	if current.Kbps <= 0 {
		return true
	}
	return current.Kbps > float64(targetKbps)*ToleranceFactor
}
