package config

import (
	"path/filepath"
	"time"
)

// DeviceID returns the input device ID.
func (c *Config) DeviceID() int {
	return c.Audio.InputDevice
}

// SampleRate returns the capture sample rate in Hz.
func (c *Config) SampleRate() float64 {
	return c.Audio.SampleRate
}

// HistorySize returns the rolling history capacity.
func (c *Config) HistorySize() int {
	return c.Analysis.HistorySize
}

// RecordingPath returns the tap recording file for a session started at t.
// An explicit output file wins over the generated name.
func (c *Config) RecordingPath(t time.Time) string {
	if c.Recording.OutputFile != "" {
		return c.Recording.OutputFile
	}
	name := "capture-" + t.UTC().Format("02-01-2006-150405") + "." + c.Recording.Format
	return filepath.Join(c.Recording.OutputDir, name)
}
