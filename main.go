// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dbmeter/cmd"
	"dbmeter/internal/audio"
	"dbmeter/internal/config"
	applog "dbmeter/internal/log"
	"dbmeter/internal/session"
	"dbmeter/internal/transport"
	"dbmeter/internal/transport/udp"
	"dbmeter/internal/tui"
	"dbmeter/pkg/build"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// main is the entry point for the meter.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase:
//   - Start transports and the capture session
//   - Forward states to transports and the terminal meter
//   - Wait for playback completion, the user or a signal
//
// 3. Shutdown Phase:
//   - Stop the session and release the devices
//   - Close transports
func main() {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		applog.Warnf("Build information incomplete: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	applog.SetLevel(cfg.LogLevelValue())

	switch cfg.Command {
	case "":
		return
	case cmd.CommandVersion:
		fmt.Println(build.GetBuildFlags())
		return
	}

	if err := run(cfg); err != nil {
		applog.Fatalf("%v", err)
	}
}

func run(cfg *config.Config) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			applog.Warnf("%v", err)
		}
	}()

	if cfg.Command == cmd.CommandList {
		return audio.ListDevices(os.Stdout)
	}

	if cfg.Audio.PickDevice {
		sel, ok, err := tui.PickDevice()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		applog.Infof("Using input device %d (%s) at %.0f Hz", sel.DeviceID, sel.DeviceName, sel.SampleRate)
	}

	// Keep the log off the terminal while the meter owns it.
	if cfg.TUIMode {
		f, err := tea.LogToFile("dbmeter.log", "")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		applog.SetOutput(f)
	}

	return play(cfg)
}

func play(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		tap      session.Tap
		recorder *audio.Recorder
	)
	if cfg.Recording.Enabled {
		if cfg.Recording.OutputFile == "" {
			if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create recording directory: %w", err)
			}
		}
		recorder = audio.NewRecorder(int(cfg.SampleRate()))
		tap = recorder
	}

	ctrl := session.NewController(session.Options{
		Opener:     audio.NewDeviceOpener(cfg),
		Player:     audio.NewWavPlayer(cfg.Audio.OutputDevice),
		Permission: session.StaticPermission(cfg.Audio.MicrophoneGranted),
		Format: audio.Format{
			SampleRate: cfg.SampleRate(),
			Channels:   cfg.Audio.InputChannels,
			Encoding:   audio.PCM16,
		},
		HistorySize:     cfg.HistorySize(),
		MaxReadFailures: cfg.Analysis.MaxReadFailures,
		Tap:             tap,
		TapPath:         cfg.RecordingPath,
	})

	transports, closers, err := openTransports(cfg, ctrl)
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				applog.Warnf("%v", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Start(cfg.Source); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := transport.Forward(gctx, updates, transports...)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// End the run once the session is no longer active.
	g.Go(func() error {
		states, unwatch := ctrl.Subscribe()
		defer unwatch()
		for {
			select {
			case <-gctx.Done():
				return nil
			case st := <-states:
				if !st.Active {
					cancel()
					return nil
				}
			}
		}
	})

	if cfg.TUIMode {
		meterUpdates, unsubscribeMeter := ctrl.Subscribe()
		defer unsubscribeMeter()
		program := tea.NewProgram(tui.NewMeterModel(meterUpdates, ctrl.Stop), tea.WithAltScreen())

		g.Go(func() error {
			_, err := program.Run()
			cancel()
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			program.Quit()
			return nil
		})
	}

	waitErr := g.Wait()

	// ==================== SHUTDOWN PHASE ====================

	if err := ctrl.Stop(); err != nil {
		applog.Warnf("Error stopping session: %v", err)
	}
	if waitErr != nil {
		return waitErr
	}

	if recorder != nil && recorder.Filename() != "" {
		applog.Infof("Recording saved to %s", recorder.Filename())
	}
	if err := ctrl.State().LastError; err != nil {
		return err
	}
	return nil
}

type closer interface{ Close() error }

// openTransports builds the configured transports. Closers are returned
// even on error so partially opened transports are released.
func openTransports(cfg *config.Config, ctrl *session.Controller) ([]transport.Transport, []closer, error) {
	transports := []transport.Transport{transport.NewLoggingTransport()}
	var closers []closer

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress)
		if err != nil {
			return nil, closers, fmt.Errorf("failed to start WebSocket server: %w", err)
		}
		transports = append(transports, ws)
		closers = append(closers, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, sender)

		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, ctrl)
		if err != nil {
			return nil, closers, err
		}
		publisher.Start()
		// Stop the publisher before its sender.
		closers = append([]closer{publisher}, closers...)
	}

	return transports, closers, nil
}
