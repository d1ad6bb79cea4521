package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mediacompress/internal/toolrun"
)

// Result is the full stream and container dump of one media file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Kbps returns the stream's reported bitrate, or 0 when ffprobe gave none.
func (s Stream) Kbps() float64 {
	bps, _ := parseNonNegative(s.BitRate)
	return bps / 1000
}

// Format captures container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect runs a full ffprobe dump of path. Unlike ProbeBitrate it reports
// every failure as an error, since its callers show the result to a person.
func Inspect(ctx context.Context, runner toolrun.Runner, binary string, path string) (Result, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = string(toolrun.FFprobe)
	}

	res := runner.Run(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	switch {
	case res.OK():
	case res.StderrTail != "":
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w: %s", path, res.Err, res.StderrTail)
	default:
		return Result{}, fmt.Errorf("ffprobe inspect %s: %w", path, res.Err)
	}

	result := Result{raw: append([]byte(nil), res.Stdout...)}
	if err := json.Unmarshal(res.Stdout, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// RawJSON returns the ffprobe payload exactly as printed.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams.
func (r Result) VideoStreamCount() int { return r.countStreams("video") }

// AudioStreamCount returns the number of audio streams.
func (r Result) AudioStreamCount() int { return r.countStreams("audio") }

func (r Result) countStreams(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	seconds, _ := parseNonNegative(r.Format.Duration)
	return seconds
}

// SizeBytes returns the container size, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size, _ := parseNonNegative(r.Format.Size)
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate, _ := parseNonNegative(r.Format.BitRate)
	return int64(rate)
}
