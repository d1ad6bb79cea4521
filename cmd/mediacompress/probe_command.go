package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediacompress/internal/config"
	"mediacompress/internal/media/ffprobe"
	"mediacompress/internal/pipeline"
	"mediacompress/internal/toolrun"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "probe FILE",
		Short: "Show streams and the transcode decision for a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			return runProbe(cmd, cfg, toolrun.ExecRunner{}, path, jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the raw ffprobe JSON")
	return cmd
}

func runProbe(cmd *cobra.Command, cfg *config.Config, runner toolrun.Runner, path string, jsonOut bool) error {
	result, err := ffprobe.Inspect(cmd.Context(), runner, cfg.FFprobeBinary(), path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOut {
		_, err := out.Write(result.RawJSON())
		return err
	}

	rows := make([][]string, 0, len(result.Streams))
	for _, stream := range result.Streams {
		rows = append(rows, []string{
			strconv.Itoa(stream.Index),
			titleLabel(stream.CodecType),
			stream.CodecName,
			resolution(stream.Width, stream.Height),
			kbpsLabel(stream.Kbps()),
		})
	}
	fmt.Fprintln(out, renderTable([]column{
		{title: "#", numeric: true},
		{title: "Type"},
		{title: "Codec"},
		{title: "Resolution"},
		{title: "Bitrate", numeric: true},
	}, rows))
	fmt.Fprintf(out, "Container: %s, duration %.1fs, overall bitrate %s\n",
		result.Format.FormatName, result.DurationSeconds(), kbpsLabel(float64(result.BitRate())/1000))

	current := ffprobe.ProbeBitrate(cmd.Context(), runner, toolrun.NewAvailability(), cfg.FFprobeBinary(), path)
	verdict := "keep as is"
	if pipeline.ShouldTranscode(current, cfg.Video.BitrateKbps) {
		verdict = "transcode"
	}
	fmt.Fprintf(out, "Video bitrate: %s; target %d kbps; decision: %s\n", current, cfg.Video.BitrateKbps, verdict)
	return nil
}

func resolution(width, height int) string {
	if width == 0 || height == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", width, height)
}

func kbpsLabel(kbps float64) string {
	if kbps <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f kbps", kbps)
}
