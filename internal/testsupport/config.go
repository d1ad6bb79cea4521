package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediacompress/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The input directory exists; the output directory does not, so callers can
// observe it being created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDirs = []string{filepath.Join(base, "in")}
	cfgVal.Paths.OutputDir = filepath.Join(base, "out")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Image.Codec = "mjpeg"
	cfgVal.Image.Quality = 10
	cfgVal.Metrics.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range builder.cfg.Paths.InputDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir input dir: %v", err)
		}
	}
	return builder.cfg
}

// WithImageFormat switches the published image format and its encoder defaults.
func WithImageFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Image.Format = format
		switch format {
		case "avif":
			b.cfg.Image.Codec = "libaom-av1"
			b.cfg.Image.Quality = 30
		default:
			b.cfg.Image.Codec = "mjpeg"
			b.cfg.Image.Quality = 10
		}
	}
}

// WithDeleteOriginal sets workflow.delete_original.
func WithDeleteOriginal(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.DeleteOriginal = enabled
	}
}

// WithTwoPass enables two-pass video encoding.
func WithTwoPass() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Video.TwoPass = true
	}
}

// WithVideoBitrate sets the target video bitrate in kbps.
func WithVideoBitrate(kbps int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Video.BitrateKbps = kbps
	}
}

// WithExtraInputDir adds another input directory under the temp root.
func WithExtraInputDir(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.InputDirs = append(b.cfg.Paths.InputDirs, filepath.Join(b.baseDir, name))
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg, ffprobe, and exiftool are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "exiftool"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// WriteScript writes an executable /bin/sh script with the given body.
func WriteScript(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

// InputDir returns the first input directory of a generated config.
func InputDir(cfg *config.Config) string {
	return cfg.Paths.InputDirs[0]
}
