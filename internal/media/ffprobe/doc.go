// Package ffprobe wraps ffprobe JSON output.
//
// Key entry points:
//   - ProbeBitrate: the bitrate oracle consulted before every video transcode
//     decision. It returns a tagged BitrateResult that keeps "ffprobe is not
//     installed" apart from "the file has no usable bitrate".
//   - Inspect: full stream and format dump, used by the probe command.
//
// Both run ffprobe through a toolrun.Runner so tests never need the binary.
package ffprobe
