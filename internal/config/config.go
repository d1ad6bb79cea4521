package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the daemon reads from and writes to.
type Paths struct {
	InputDirs []string `toml:"input_dirs"`
	OutputDir string   `toml:"output_dir"`
	LogDir    string   `toml:"log_dir"`
	StateDir  string   `toml:"state_dir"`
}

// Video contains the video transcode policy.
type Video struct {
	Codec            string `toml:"codec"`
	AudioCodec       string `toml:"audio_codec"`
	BitrateKbps      int    `toml:"bitrate_kbps"`
	AudioBitrateKbps int    `toml:"audio_bitrate_kbps"`
	TwoPass          bool   `toml:"two_pass"`
}

// Image contains the image re-encode policy.
type Image struct {
	// Format is the published image format: "jpg" or "avif".
	Format string `toml:"format"`
	// Codec is the ffmpeg encoder. Defaults to mjpeg for jpg and libaom-av1 for avif.
	Codec string `toml:"codec"`
	// Quality is the ffmpeg -q:v value for jpg (2-31, lower is better) or the
	// CRF for avif (0-63, lower is better).
	Quality     int  `toml:"quality"`
	IncludeHEIC bool `toml:"include_heic"`
}

// Schedule contains the processing window and loop cadence.
type Schedule struct {
	// StartHour and EndHour are fractional hours in [0, 24). A window with
	// start >= end wraps past midnight.
	StartHour         float64 `toml:"start_hour"`
	EndHour           float64 `toml:"end_hour"`
	PollInterval      int     `toml:"poll_interval"`
	RecoverySleep     int     `toml:"recovery_sleep"`
	MinFileAgeMinutes int     `toml:"min_file_age_minutes"`
}

// Workflow contains retention behaviour for processed inputs.
type Workflow struct {
	DeleteOriginal bool `toml:"delete_original"`
}

// Tools names the external executables the pipeline drives.
type Tools struct {
	FFmpeg   string `toml:"ffmpeg"`
	FFprobe  string `toml:"ffprobe"`
	ExifTool string `toml:"exiftool"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// History contains retention for the outcome history database.
type History struct {
	// RetentionDays bounds how long outcomes are kept; 0 keeps them forever.
	RetentionDays int `toml:"retention_days"`
}

// Watch contains configuration for filesystem notifications on input directories.
type Watch struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for mediacompress.
//
// Configuration sections by subsystem:
//   - Paths: input directories, output directory, log and state directories
//   - Video: codec selectors, target bitrates, two-pass toggle
//   - Image: output format, encoder, quality
//   - Schedule: processing window, poll interval, recovery sleep, minimum file age
//   - Workflow: whether inputs are removed after publishing
//   - Tools: ffmpeg/ffprobe/exiftool executables
//   - Logging: log format, level, and retention
//   - Metrics: Prometheus endpoint
//   - Watch: fsnotify wake-ups between polls
//   - History: outcome history retention
type Config struct {
	Paths    Paths    `toml:"paths"`
	Video    Video    `toml:"video"`
	Image    Image    `toml:"image"`
	Schedule Schedule `toml:"schedule"`
	Workflow Workflow `toml:"workflow"`
	Tools    Tools    `toml:"tools"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
	Watch    Watch    `toml:"watch"`
	History  History  `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediacompress.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output
// directory is created by the daemon at the start of every cycle so a
// temporarily unmounted volume only costs that cycle.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PollInterval returns the sleep between cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Schedule.PollInterval) * time.Second
}

// RecoverySleep returns the pause after a cycle aborted unexpectedly.
func (c *Config) RecoverySleep() time.Duration {
	return time.Duration(c.Schedule.RecoverySleep) * time.Second
}

// MinFileAge returns how old an input must be before it is picked up.
func (c *Config) MinFileAge() time.Duration {
	return time.Duration(c.Schedule.MinFileAgeMinutes) * time.Minute
}

// ImageExtension returns the published image extension including the dot.
func (c *Config) ImageExtension() string {
	return "." + c.Image.Format
}

// FFmpegBinary returns the ffmpeg executable used for encoding.
func (c *Config) FFmpegBinary() string {
	return c.Tools.FFmpeg
}

// FFprobeBinary returns the ffprobe executable used for bitrate probing.
func (c *Config) FFprobeBinary() string {
	return c.Tools.FFprobe
}

// ExifToolBinary returns the exiftool executable used for metadata transfer.
func (c *Config) ExifToolBinary() string {
	return c.Tools.ExifTool
}

// HistoryPath returns the sqlite database holding per-file outcomes.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mediacompress.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
