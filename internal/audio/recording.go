// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"dbmeter/internal/config"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder taps captured frames into a 16-bit mono WAV file. It is written
// from the analysis loop and started or stopped from the controller.
type Recorder struct {
	sampleRate int

	isRecording atomic.Bool

	mu         sync.Mutex
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer
	filename   string
}

// NewRecorder returns an idle recorder for mono frames at sampleRate.
func NewRecorder(sampleRate int) *Recorder {
	return &Recorder{sampleRate: sampleRate}
}

// Start creates filename and begins accepting frames.
func (r *Recorder) Start(filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file
	r.filename = filename

	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, config.DefaultBitDepth, config.DefaultChannels, 1)

	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: config.DefaultChannels,
			SampleRate:  r.sampleRate,
		},
		SourceBitDepth: config.DefaultBitDepth,
	}

	r.isRecording.Store(true)
	logger.Infof("Recording capture to %s", filename)

	return nil
}

// WriteFrame appends one frame. It is a no-op when not recording.
func (r *Recorder) WriteFrame(frame []int16) error {
	if !r.isRecording.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(frame) {
		r.sampleBuf.Data = make([]int, len(frame))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(frame)]
	for i, s := range frame {
		r.sampleBuf.Data[i] = int(s)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write recording frame: %w", err)
	}
	return nil
}

// Stop finalizes the WAV header and closes the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Recorder) stopLocked() error {
	if !r.isRecording.Load() {
		return nil
	}

	r.isRecording.Store(false)

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}

	return nil
}

// IsRecording reports whether frames are being written.
func (r *Recorder) IsRecording() bool {
	return r.isRecording.Load()
}

// Filename returns the file of the current or most recent recording.
func (r *Recorder) Filename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filename
}
