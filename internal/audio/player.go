// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// Player plays an audio source to completion. onComplete fires at most
// once, on its own goroutine, when the source reaches its end; it never
// fires for a playback that was stopped. Stop is idempotent.
type Player interface {
	Play(source string, onComplete func()) error
	Stop() error
}

// Clip is a decoded, interleaved 16-bit clip held in memory.
type Clip struct {
	Samples    []int16
	Channels   int
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.Channels == 0 || c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)/c.Channels) / float64(c.SampleRate)
}

// DecodeWAV reads a PCM WAV file into memory, converting every sample to
// 16 bits.
func DecodeWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%s has no audio channels", path)
	}

	depth := int(d.BitDepth)
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case depth == 8:
			// 8-bit WAV is unsigned.
			samples[i] = int16((v - 128) << 8)
		case depth > 16:
			samples[i] = int16(v >> (depth - 16))
		default:
			samples[i] = int16(v)
		}
	}

	return &Clip{
		Samples:    samples,
		Channels:   buf.Format.NumChannels,
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// clipCursor feeds a clip into fixed-size output buffers.
type clipCursor struct {
	samples []int16
	pos     int
}

// fill copies the next len(out) samples into out, zero-padding past the
// end. It reports whether the clip is exhausted.
func (c *clipCursor) fill(out []int16) bool {
	n := copy(out, c.samples[c.pos:])
	c.pos += n
	clear(out[n:])
	return c.pos >= len(c.samples)
}

// WavPlayer plays WAV files through a PortAudio output stream.
type WavPlayer struct {
	DeviceID int

	decode func(path string) (*Clip, error)

	mu      sync.Mutex
	stream  paStream
	stopped chan struct{}
}

// NewWavPlayer returns a player for the given output device.
func NewWavPlayer(deviceID int) *WavPlayer {
	return &WavPlayer{DeviceID: deviceID, decode: DecodeWAV}
}

// Play decodes source and starts playing it. It returns once the output
// stream is running.
func (p *WavPlayer) Play(source string, onComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("%w: already playing", ErrPlaybackFailure)
	}

	clip, err := p.decode(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlaybackFailure, err)
	}

	device, err := OutputDevice(p.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlaybackFailure, err)
	}

	cursor := &clipCursor{samples: clip.Samples}
	finished := make(chan struct{})
	var finishOnce sync.Once
	callback := func(out []int16) {
		if cursor.fill(out) {
			finishOnce.Do(func() { close(finished) })
		}
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: clip.Channels,
			Latency:  device.DefaultHighOutputLatency,
		},
		SampleRate:      float64(clip.SampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	stream, err := paOpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("%w: failed to open output stream: %w", ErrPlaybackFailure, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: failed to start output stream: %w", ErrPlaybackFailure, err)
	}

	stopped := make(chan struct{})
	p.stream = stream
	p.stopped = stopped

	logger.Infof("Playing %s (%d ch, %d Hz, %.1fs)", source, clip.Channels, clip.SampleRate, clip.Duration())

	go func() {
		select {
		case <-finished:
			if onComplete != nil {
				onComplete()
			}
		case <-stopped:
		}
	}()
	return nil
}

// Stop halts playback and releases the output stream. It does not wait for
// a completion callback that is already running.
func (p *WavPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	close(p.stopped)
	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.stream = nil
	p.stopped = nil

	if err := errors.Join(stopErr, closeErr); err != nil {
		return fmt.Errorf("%w: %w", ErrPlaybackFailure, err)
	}
	return nil
}
