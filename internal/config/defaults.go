package config

const (
	defaultConfigPath       = "~/.config/mediacompress/config.toml"
	defaultInputDir         = "~/DCIM/Camera"
	defaultOutputDir        = "~/DCIM/Compressed"
	defaultLogDir           = "~/.local/share/mediacompress/logs"
	defaultStateDir         = "~/.local/share/mediacompress"
	defaultVideoCodec       = "libx265"
	defaultAudioCodec       = "aac"
	defaultVideoBitrateKbps = 2400
	defaultAudioBitrateKbps = 128
	defaultImageFormat      = "jpg"
	defaultJPEGCodec        = "mjpeg"
	defaultAVIFCodec        = "libaom-av1"
	defaultJPEGQuality      = 10
	defaultAVIFQuality      = 30
	defaultPollInterval     = 10
	defaultRecoverySleep    = 60
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultExifToolBinary   = "exiftool"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultMetricsBind      = "127.0.0.1:9477"
	defaultHistoryRetention = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDirs: []string{defaultInputDir},
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			StateDir:  defaultStateDir,
		},
		Video: Video{
			Codec:            defaultVideoCodec,
			AudioCodec:       defaultAudioCodec,
			BitrateKbps:      defaultVideoBitrateKbps,
			AudioBitrateKbps: defaultAudioBitrateKbps,
		},
		Image: Image{
			Format: defaultImageFormat,
		},
		Schedule: Schedule{
			PollInterval:  defaultPollInterval,
			RecoverySleep: defaultRecoverySleep,
		},
		Workflow: Workflow{
			DeleteOriginal: true,
		},
		Tools: Tools{
			FFmpeg:   defaultFFmpegBinary,
			FFprobe:  defaultFFprobeBinary,
			ExifTool: defaultExifToolBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		History: History{
			RetentionDays: defaultHistoryRetention,
		},
	}
}
