package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Validate ensures the configuration is usable. Out-of-range values are
// replaced with defaults during normalization; only structural problems that
// have no sensible default are reported here.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.InputDirs) == 0 {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.input_dirs must list at least one directory (edit %s, create with 'mediacompress config init')", defaultPath)
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	output := filepath.Clean(c.Paths.OutputDir)
	for _, dir := range c.Paths.InputDirs {
		if filepath.Clean(dir) == output {
			return fmt.Errorf("paths.output_dir %q must not also be an input directory", c.Paths.OutputDir)
		}
	}
	return nil
}

func (c *Config) validateSchedule() error {
	for key, hour := range map[string]float64{
		"schedule.start_hour": c.Schedule.StartHour,
		"schedule.end_hour":   c.Schedule.EndHour,
	} {
		if hour < 0 || hour >= 24 {
			return fmt.Errorf("%s must be within [0, 24)", key)
		}
	}
	if err := ensurePositiveMap(map[string]int{
		"schedule.poll_interval":   c.Schedule.PollInterval,
		"schedule.recovery_sleep":  c.Schedule.RecoverySleep,
		"video.bitrate_kbps":       c.Video.BitrateKbps,
		"video.audio_bitrate_kbps": c.Video.AudioBitrateKbps,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
