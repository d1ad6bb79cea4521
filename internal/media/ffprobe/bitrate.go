package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mediacompress/internal/toolrun"
)

// BitrateState tags a BitrateResult.
type BitrateState int

const (
	// BitrateUnknown covers N/A values, unparsable output, and probe failures
	// where ffprobe did run.
	BitrateUnknown BitrateState = iota
	BitrateKnown
	// BitrateToolMissing means ffprobe itself could not be started.
	BitrateToolMissing
)

func (s BitrateState) String() string {
	switch s {
	case BitrateKnown:
		return "known"
	case BitrateToolMissing:
		return "tool_missing"
	default:
		return "unknown"
	}
}

// BitrateResult is the outcome of probing a video's bitrate.
type BitrateResult struct {
	State BitrateState
	// Kbps is set only when State is BitrateKnown.
	Kbps float64
	// Detail explains an Unknown or ToolMissing result for logs.
	Detail string
}

func (b BitrateResult) String() string {
	if b.State == BitrateKnown {
		return fmt.Sprintf("%.1f kbps", b.Kbps)
	}
	return b.State.String()
}

// Known builds a known bitrate result.
func Known(kbps float64) BitrateResult {
	return BitrateResult{State: BitrateKnown, Kbps: kbps}
}

type bitrateProbe struct {
	Streams []struct {
		BitRate string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		BitRate string `json:"bit_rate"`
	} `json:"format"`
}

// ProbeBitrate reports the bitrate of the first video stream of path. When the
// stream carries no bit_rate the container bitrate is used. A missing ffprobe
// is recorded in avail so the rest of the cycle skips further probes.
func ProbeBitrate(ctx context.Context, runner toolrun.Runner, avail *toolrun.Availability, binary, path string) BitrateResult {
	res := toolrun.Invoke(ctx, runner, avail, toolrun.FFprobe, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=bit_rate:format=bit_rate",
		"-of", "json",
		"--", path,
	)
	if res.Missing() {
		return BitrateResult{State: BitrateToolMissing, Detail: res.Err.Error()}
	}
	if !res.OK() {
		detail := res.Err.Error()
		if res.StderrTail != "" {
			detail += ": " + res.StderrTail
		}
		return BitrateResult{State: BitrateUnknown, Detail: detail}
	}
	return parseBitrate(res.Stdout)
}

func parseBitrate(payload []byte) BitrateResult {
	var probe bitrateProbe
	if err := json.Unmarshal(payload, &probe); err != nil {
		return BitrateResult{State: BitrateUnknown, Detail: "unparsable ffprobe output"}
	}
	candidates := make([]string, 0, 2)
	if len(probe.Streams) > 0 {
		candidates = append(candidates, probe.Streams[0].BitRate)
	}
	candidates = append(candidates, probe.Format.BitRate)
	for _, value := range candidates {
		if bps, ok := parseNonNegative(value); ok {
			return Known(bps / 1000)
		}
	}
	return BitrateResult{State: BitrateUnknown, Detail: "no numeric bit_rate reported"}
}

// parseNonNegative parses a non-negative ffprobe number; "N/A" reports false.
func parseNonNegative(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0, false
	}
	bps, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(bps) || math.IsInf(bps, 0) || bps < 0 {
		return 0, false
	}
	return bps, true
}
