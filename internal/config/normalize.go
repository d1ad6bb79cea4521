package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeVideo()
	c.normalizeImage()
	c.normalizeSchedule()
	c.normalizeTools()
	c.normalizeLogging()
	c.normalizeMetrics()
	return nil
}

func (c *Config) normalizePaths() error {
	dirs := make([]string, 0, len(c.Paths.InputDirs))
	seen := make(map[string]struct{}, len(c.Paths.InputDirs))
	for _, dir := range c.Paths.InputDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("paths.input_dirs: %w", err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		dirs = append(dirs, expanded)
	}
	c.Paths.InputDirs = dirs

	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeVideo() {
	c.Video.Codec = strings.TrimSpace(c.Video.Codec)
	if c.Video.Codec == "" {
		c.Video.Codec = defaultVideoCodec
	}
	c.Video.AudioCodec = strings.TrimSpace(c.Video.AudioCodec)
	if c.Video.AudioCodec == "" {
		c.Video.AudioCodec = defaultAudioCodec
	}
	if c.Video.BitrateKbps <= 0 {
		c.Video.BitrateKbps = defaultVideoBitrateKbps
	}
	if c.Video.AudioBitrateKbps <= 0 {
		c.Video.AudioBitrateKbps = defaultAudioBitrateKbps
	}
}

func (c *Config) normalizeImage() {
	format := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Image.Format), "."))
	switch format {
	case "jpg", "jpeg":
		format = "jpg"
	case "avif":
	default:
		format = defaultImageFormat
	}
	c.Image.Format = format

	c.Image.Codec = strings.TrimSpace(c.Image.Codec)
	if c.Image.Codec == "" {
		if format == "avif" {
			c.Image.Codec = defaultAVIFCodec
		} else {
			c.Image.Codec = defaultJPEGCodec
		}
	}

	switch format {
	case "avif":
		if c.Image.Quality <= 0 || c.Image.Quality > 63 {
			c.Image.Quality = defaultAVIFQuality
		}
	default:
		if c.Image.Quality < 2 || c.Image.Quality > 31 {
			c.Image.Quality = defaultJPEGQuality
		}
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.StartHour = normalizeHour(c.Schedule.StartHour)
	c.Schedule.EndHour = normalizeHour(c.Schedule.EndHour)
	if c.Schedule.PollInterval <= 0 {
		c.Schedule.PollInterval = defaultPollInterval
	}
	if c.Schedule.RecoverySleep <= 0 {
		c.Schedule.RecoverySleep = defaultRecoverySleep
	}
	if c.Schedule.MinFileAgeMinutes < 0 {
		c.Schedule.MinFileAgeMinutes = 0
	}
}

// normalizeHour maps out-of-range window bounds to midnight.
func normalizeHour(hour float64) float64 {
	if math.IsNaN(hour) || hour < 0 || hour >= 24 {
		return 0
	}
	return hour
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = defaultFFmpegBinary
	}
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	if c.Tools.FFprobe == "" {
		c.Tools.FFprobe = defaultFFprobeBinary
	}
	c.Tools.ExifTool = strings.TrimSpace(c.Tools.ExifTool)
	if c.Tools.ExifTool == "" {
		c.Tools.ExifTool = defaultExifToolBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	if c.History.RetentionDays < 0 {
		c.History.RetentionDays = 0
	}
}

// HistoryRetention is how long outcomes stay in the history database; zero
// disables pruning.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
