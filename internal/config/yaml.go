// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	applog "dbmeter/internal/log"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	// Debug forces debug logging.
	Debug bool `yaml:"debug"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	// TUIMode shows the terminal meter while playing.
	TUIMode bool `yaml:"tui"`

	// Command is the subcommand selected on the command line ("play", "list", "version").
	Command string `yaml:"-"`
	// Source is the audio file to play for the "play" command.
	Source string `yaml:"-"`

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	// InputDevice is the PortAudio device index for capture (-1 for default).
	InputDevice int `yaml:"input_device" validate:"gte=-1"`
	// OutputDevice is the PortAudio device index for playback (-1 for default).
	OutputDevice int `yaml:"output_device" validate:"gte=-1"`
	// SampleRate is the capture sample rate in Hz.
	SampleRate float64 `yaml:"sample_rate" validate:"gte=8000,lte=192000"`
	// FramesPerBuffer fixes the frame length; 0 derives it from the device latency.
	FramesPerBuffer int `yaml:"frames_per_buffer" validate:"gte=0,lte=8192"`
	// LowLatency derives the frame from the low (true) or high (false) input latency.
	LowLatency bool `yaml:"low_latency"`
	// InputChannels must be 1; only mono capture is supported.
	InputChannels int `yaml:"input_channels" validate:"eq=1"`
	// MicrophoneGranted records whether the host granted microphone capture.
	MicrophoneGranted bool `yaml:"microphone_granted"`
	// PickDevice chooses the input device interactively before playing.
	PickDevice bool `yaml:"-"`
}

// AnalysisConfig holds settings for the analysis loop.
type AnalysisConfig struct {
	HistorySize     int `yaml:"history_size" validate:"gte=1,lte=1024"`
	MaxReadFailures int `yaml:"max_read_failures" validate:"gte=1,lte=100"`
}

// RecordingConfig holds settings for the capture tap.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir" validate:"required_if=Enabled true"`
	// OutputFile overrides the generated name in OutputDir.
	OutputFile string `yaml:"output_file"`
	Format     string `yaml:"format" validate:"oneof=wav"`
	BitDepth   int    `yaml:"bit_depth" validate:"eq=16"`
}

// TransportConfig holds settings for pushing levels to display consumers.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`
	WebSocketAddress string `yaml:"websocket_address" validate:"required_if=WebSocketEnabled true,omitempty,hostname_port"`

	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address" validate:"required_if=UDPEnabled true,omitempty,hostname_port"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval" validate:"gte=1ms"`
}

// validate is the shared validator instance. Error messages use the yaml
// key names so they match what the user wrote in config.yaml.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"dbmeter.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks every field against its validate tag and reports all
// failures in one error.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// formatFieldError turns "Config.audio.sample_rate" into "audio.sample_rate".
func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required_if":
		return fmt.Sprintf("%s: is required", field)
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s: %v is not a host:port address", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s=%s, got %v", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// applyEnvOverrides applies DBMETER_* environment variables on top of the
// file configuration. Unparseable values are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("DBMETER_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Infof("configuration: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring DBMETER_DEBUG=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("DBMETER_LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(val)
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// DBMETER_MIC_GRANTED lets a launcher that performed the platform prompt
	// report the outcome.
	if val, ok := os.LookupEnv("DBMETER_MIC_GRANTED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Audio.MicrophoneGranted = bVal
			applog.Infof("configuration: Overriding audio.microphone_granted from env: %v", bVal)
		} else {
			applog.Warnf("configuration: Ignoring DBMETER_MIC_GRANTED=%q: %v", val, err)
		}
	}

	if val, ok := os.LookupEnv("DBMETER_WS_ADDRESS"); ok {
		c.Transport.WebSocketEnabled = true
		c.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}

	if val, ok := os.LookupEnv("DBMETER_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("DBMETER_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("DBMETER_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Infof("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
}

// LogLevelValue resolves the effective log level. Debug wins over log_level.
func (c *Config) LogLevelValue() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}
