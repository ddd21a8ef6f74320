// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"dbmeter/internal/config"
)

// Encoding identifies the sample encoding of a capture stream.
type Encoding int

const (
	// PCM16 is signed 16-bit linear PCM, the only supported encoding.
	PCM16 Encoding = iota + 1
)

func (e Encoding) String() string {
	if e == PCM16 {
		return "pcm16"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// Format describes a capture stream.
type Format struct {
	SampleRate float64
	Channels   int
	Encoding   Encoding
}

// DefaultFormat is 44.1kHz mono 16-bit PCM.
var DefaultFormat = Format{
	SampleRate: config.DefaultSampleRate,
	Channels:   config.DefaultChannels,
	Encoding:   PCM16,
}

// Validate rejects formats the pipeline cannot analyze.
func (f Format) Validate() error {
	if f.Channels != 1 {
		return fmt.Errorf("%w: %d channels, only mono is supported", ErrUnsupportedFormat, f.Channels)
	}
	if f.Encoding != PCM16 {
		return fmt.Errorf("%w: %s, only pcm16 is supported", ErrUnsupportedFormat, f.Encoding)
	}
	if f.SampleRate < config.MinSampleRate || f.SampleRate > config.MaxSampleRate {
		return fmt.Errorf("%w: sample rate %.0f Hz outside [%d, %d]", ErrUnsupportedFormat,
			f.SampleRate, config.MinSampleRate, config.MaxSampleRate)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%.0f Hz, %d ch, %s", f.SampleRate, f.Channels, f.Encoding)
}

// Source is an open capture device yielding fixed-length frames.
//
// ReadFrame blocks until FrameLength samples are available or the device
// stops. It never returns a partial frame: dst must have exactly
// FrameLength elements. Close releases the device and is idempotent.
type Source interface {
	FrameLength() int
	ReadFrame(dst []int16) error
	Close() error
}

// Opener opens a capture Source for a format.
type Opener interface {
	Open(f Format) (Source, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(f Format) (Source, error)

// Open calls fn(f).
func (fn OpenerFunc) Open(f Format) (Source, error) {
	return fn(f)
}
