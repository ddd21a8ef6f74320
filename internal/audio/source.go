// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"dbmeter/internal/config"
	applog "dbmeter/internal/log"
	"dbmeter/pkg/bitint"

	"github.com/gordonklaus/portaudio"
)

var logger = applog.Named("Audio")

// paStream is the subset of *portaudio.Stream used by sources and players.
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Read() error
}

var paOpenStream = func(p portaudio.StreamParameters, args ...any) (paStream, error) {
	s, err := portaudio.OpenStream(p, args...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeviceOpener opens blocking PortAudio capture streams.
type DeviceOpener struct {
	// DeviceID selects the input device; config.MinDeviceID is the default.
	DeviceID int
	// FramesPerBuffer fixes the frame length. Zero derives it from the
	// device's reported input latency.
	FramesPerBuffer int
	// LowLatency selects the low (true) or high (false) reported latency.
	LowLatency bool
}

// NewDeviceOpener returns an opener for the configured input device.
func NewDeviceOpener(cfg *config.Config) *DeviceOpener {
	return &DeviceOpener{
		DeviceID:        cfg.DeviceID(),
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		LowLatency:      cfg.Audio.LowLatency,
	}
}

// Open resolves the device, sizes the frame and starts a blocking input
// stream. Any failure after format validation is reported as
// ErrDeviceUnavailable.
func (o *DeviceOpener) Open(f Format) (Source, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	device, err := InputDevice(o.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	latency := device.DefaultHighInputLatency
	if o.LowLatency {
		latency = device.DefaultLowInputLatency
	}
	frames := FrameLength(latency, f.SampleRate, o.FramesPerBuffer)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: f.Channels,
			Latency:  latency,
		},
		SampleRate:      f.SampleRate,
		FramesPerBuffer: frames,
	}

	buf := make([]int16, frames*f.Channels)
	stream, err := paOpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open input stream on %q: %w", ErrDeviceUnavailable, device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: failed to start input stream on %q: %w", ErrDeviceUnavailable, device.Name, err)
	}

	logger.Infof("Capturing from %q at %s, %d frames (%.2fms)",
		device.Name, f, frames, float64(frames)/f.SampleRate*1000)

	return newStreamSource(stream, buf), nil
}

// FrameLength returns the number of samples read per analysis frame. A
// positive fixed value wins. Otherwise the device latency is converted to
// samples and rounded up to a power of two within
// [config.MinBufferFrames, config.MaxBufferFrames].
func FrameLength(latency time.Duration, sampleRate float64, fixed int) int {
	if fixed > 0 {
		return fixed
	}
	samples := int(math.Ceil(latency.Seconds() * sampleRate))
	return bitint.ClampPowerOfTwo(samples, config.MinBufferFrames, config.MaxBufferFrames)
}

// streamSource reads frames from a started blocking stream. The stream
// fills buf on every Read.
type streamSource struct {
	stream paStream
	buf    []int16

	closeOnce sync.Once
	closeErr  error
}

func newStreamSource(stream paStream, buf []int16) *streamSource {
	return &streamSource{stream: stream, buf: buf}
}

func (s *streamSource) FrameLength() int {
	return len(s.buf)
}

// ReadFrame blocks for one frame. An input overflow still delivers the
// frame but is reported as ErrInputOverflow so the caller can skip it.
func (s *streamSource) ReadFrame(dst []int16) error {
	if len(dst) != len(s.buf) {
		return fmt.Errorf("%w: got %d, want %d", ErrShortFrame, len(dst), len(s.buf))
	}
	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("%w: %w", ErrInputOverflow, err)
		}
		return fmt.Errorf("%w: %w", ErrDeviceStopped, err)
	}
	copy(dst, s.buf)
	return nil
}

func (s *streamSource) Close() error {
	s.closeOnce.Do(func() {
		stopErr := s.stream.Stop()
		closeErr := s.stream.Close()
		if err := errors.Join(stopErr, closeErr); err != nil {
			s.closeErr = fmt.Errorf("failed to close input stream: %w", err)
		}
	})
	return s.closeErr
}
