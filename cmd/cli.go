// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"dbmeter/internal/config"
	"dbmeter/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line.
const (
	CommandPlay    = "play"
	CommandList    = "list"
	CommandVersion = "version"
)

// flagValues holds raw flag values. They are applied on top of the loaded
// configuration only when the user set them.
type flagValues struct {
	configPath      string
	device          int
	outputDevice    int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	history         int
	record          bool
	output          string
	wsAddress       string
	udpTarget       string
	tui             bool
	micGranted      bool
	verbose         bool
	pickDevice      bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies the flags the user set. An empty Command means nothing
// needs to run, for example after --help.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		command string
		source  string
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Decibel meter for microphone capture during playback",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	playCmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a WAV file and meter the microphone while it plays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command = CommandPlay
			source = args[0]
			return nil
		},
	}
	playCmd.Flags().BoolVar(&flags.pickDevice, "pick-device", false,
		"Choose the input device and sample rate interactively")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandList
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			command = CommandVersion
		},
	}
	rootCmd.AddCommand(playCmd, listCmd, versionCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./dbmeter.yaml)")

	// Audio Device Configuration
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVar(&flags.outputDevice, "output-device", config.DefaultDeviceID,
		"Specify playback device ID")
	pf.Float64VarP(&flags.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Capture sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&flags.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Samples per analysis frame (0 derives it from the device latency)")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Size frames from the device's low input latency")
	pf.BoolVar(&flags.micGranted, "mic-granted", config.DefaultMicGranted,
		"Whether microphone capture has been granted")

	// Analysis
	pf.IntVar(&flags.history, "history", config.DefaultHistorySize,
		"Number of decibel levels kept for display")

	// Recording Configuration
	pf.BoolVarP(&flags.record, "record", "r", false,
		"Record the captured microphone signal")
	pf.StringVarP(&flags.output, "output", "o", "",
		"Output file name. Default is capture-DD-MM-YYYY-HHMMSS.wav")

	// Display
	pf.StringVar(&flags.wsAddress, "ws", "",
		"Serve levels over WebSocket on this address, e.g. 127.0.0.1:8080")
	pf.StringVar(&flags.udpTarget, "udp", "",
		"Send level packets over UDP to this address, e.g. 127.0.0.1:9090")
	pf.BoolVarP(&flags.tui, "tui", "t", false,
		"Show the terminal meter")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Command = command
	cfg.Source = source

	changed := func(name string) bool {
		f := pf.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("device") {
		cfg.Audio.InputDevice = flags.device
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = flags.outputDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = flags.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = flags.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = flags.lowLatency
	}
	if changed("mic-granted") {
		cfg.Audio.MicrophoneGranted = flags.micGranted
	}
	if changed("history") {
		cfg.Analysis.HistorySize = flags.history
	}
	if changed("record") {
		cfg.Recording.Enabled = flags.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = flags.output
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = flags.wsAddress != ""
		cfg.Transport.WebSocketAddress = flags.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = flags.udpTarget != ""
		cfg.Transport.UDPTargetAddress = flags.udpTarget
	}
	if changed("tui") {
		cfg.TUIMode = flags.tui
	}
	if changed("verbose") {
		cfg.Debug = flags.verbose
	}
	cfg.Audio.PickDevice = flags.pickDevice

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
