package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture and analysis pipeline.
const (
	// Default values for the capture configuration
	DefaultChannels        = 1           // Mono audio, the only supported layout
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFormat          = "wav"       // WAV file format for tap recordings
	DefaultBitDepth        = 16          // 16-bit PCM
	DefaultFramesPerBuffer = 0           // 0 asks the device for its minimum buffer
	DefaultLowLatency      = true        // Smallest buffer the device reports
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultMicGranted      = true        // Desktop hosts have no capture prompt
	DefaultLogLevel        = "info"

	// Analysis defaults
	DefaultHistorySize     = 30 // Levels kept for display
	DefaultMaxReadFailures = 5  // Consecutive transient read errors before aborting

	// Transport defaults
	DefaultWebSocketAddress = "127.0.0.1:8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 64     // Smallest frame derived from device latency
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)

	// Error handling configuration
	DefaultMaxConsecutiveWriteFailures = 5 // Tap write failures before the tap is dropped
)

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:       DefaultDeviceID,
			OutputDevice:      DefaultDeviceID,
			SampleRate:        DefaultSampleRate,
			FramesPerBuffer:   DefaultFramesPerBuffer,
			LowLatency:        DefaultLowLatency,
			InputChannels:     DefaultChannels,
			MicrophoneGranted: DefaultMicGranted,
		},
		Analysis: AnalysisConfig{
			HistorySize:     DefaultHistorySize,
			MaxReadFailures: DefaultMaxReadFailures,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
