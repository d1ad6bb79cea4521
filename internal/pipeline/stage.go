package pipeline

import (
	"fmt"
	"os"
	"strconv"

	"mediacompress/internal/config"
	"mediacompress/internal/outcome"
	"mediacompress/internal/toolrun"
)

// Stage is one external-tool invocation in a task's pipeline.
type Stage struct {
	// Name is the operation name used in logs ("encode pass 1", "metadata").
	Name   string
	Tool   toolrun.Tool
	Binary string
	Args   []string
	// Reason and Detail form the Failed outcome when the stage fails.
	Reason string
	Detail string
	// Fatal stages end the task on failure; others only log.
	Fatal bool
}

func videoEncodeStages(cfg *config.Config, input string, art artifacts) []Stage {
	if !cfg.Video.TwoPass {
		return []Stage{{
			Name:   "encode",
			Tool:   toolrun.FFmpeg,
			Binary: cfg.FFmpegBinary(),
			Args:   videoArgs(cfg, input, art.temp, 0, ""),
			Reason: outcome.ReasonCompression,
			Fatal:  true,
		}}
	}
	stages := make([]Stage, 0, 2)
	for pass := 1; pass <= 2; pass++ {
		stages = append(stages, Stage{
			Name:   fmt.Sprintf("encode pass %d", pass),
			Tool:   toolrun.FFmpeg,
			Binary: cfg.FFmpegBinary(),
			Args:   videoArgs(cfg, input, art.temp, pass, art.passlogPrefix),
			Reason: outcome.ReasonCompression,
			Detail: fmt.Sprintf("pass %d", pass),
			Fatal:  true,
		})
	}
	return stages
}

// videoArgs builds an ffmpeg invocation. pass is 0 for single-pass encodes.
// Pass 1 drops audio and discards its output; only the stats under
// passlogPrefix survive it.
func videoArgs(cfg *config.Config, input, output string, pass int, passlogPrefix string) []string {
	args := []string{
		"-y",
		"-i", input,
		"-c:v", cfg.Video.Codec,
		"-b:v", kbps(cfg.Video.BitrateKbps),
	}
	if pass > 0 {
		if cfg.Video.Codec == "libx265" {
			args = append(args, "-x265-params", fmt.Sprintf("pass=%d:stats=%s.log", pass, passlogPrefix))
		} else {
			args = append(args, "-pass", strconv.Itoa(pass), "-passlogfile", passlogPrefix)
		}
	}
	if pass == 1 {
		return append(args, "-an", "-f", "null", os.DevNull)
	}
	return append(args,
		"-c:a", cfg.Video.AudioCodec,
		"-b:a", kbps(cfg.Video.AudioBitrateKbps),
		output,
	)
}

func imageEncodeStage(cfg *config.Config, input, output string) Stage {
	args := []string{"-y", "-i", input, "-c:v", cfg.Image.Codec}
	quality := strconv.Itoa(cfg.Image.Quality)
	if cfg.Image.Format == "avif" {
		args = append(args, "-still-picture", "1", "-crf", quality, "-b:v", "0")
	} else {
		args = append(args, "-q:v", quality)
	}
	args = append(args, "-frames:v", "1", output)
	return Stage{
		Name:   "encode",
		Tool:   toolrun.FFmpeg,
		Binary: cfg.FFmpegBinary(),
		Args:   args,
		Reason: outcome.ReasonCompression,
		Fatal:  true,
	}
}

// metadataStage copies every tag from input onto output. Images skip the
// orientation and embedded previews because the encoder already rotated the
// pixels and the old thumbnails no longer match.
func metadataStage(cfg *config.Config, input, output string, image bool) Stage {
	args := []string{"-TagsFromFile", input, "-all:all"}
	if image {
		args = append(args, "--Orientation", "--ThumbnailImage", "--PreviewImage")
	}
	args = append(args, "-overwrite_original", output)
	return Stage{
		Name:   "metadata",
		Tool:   toolrun.ExifTool,
		Binary: cfg.ExifToolBinary(),
		Args:   args,
		Reason: outcome.ReasonMetadataCopy,
		Fatal:  true,
	}
}

func orientationStage(cfg *config.Config, output string) Stage {
	return Stage{
		Name:   "orientation",
		Tool:   toolrun.ExifTool,
		Binary: cfg.ExifToolBinary(),
		Args:   []string{"-n", "-Orientation=1", "-overwrite_original", output},
		Reason: outcome.ReasonOrientation,
		Fatal:  true,
	}
}

func kbps(value int) string {
	return strconv.Itoa(value) + "k"
}
