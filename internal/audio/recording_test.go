// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"dbmeter/pkg/utils"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	rec := NewRecorder(testSampleRate)

	if err := rec.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !rec.IsRecording() {
		t.Error("Recorder should be in recording state")
	}
	if rec.outputFile == nil {
		t.Error("Output file should be initialized")
	}
	if rec.wavEncoder == nil {
		t.Error("WAV encoder should be initialized")
	}
	if rec.sampleBuf.Format.NumChannels != 1 || rec.sampleBuf.Format.SampleRate != testSampleRate {
		t.Errorf("Buffer format mismatch: %+v", rec.sampleBuf.Format)
	}

	outputFile := rec.outputFile

	if err := rec.Stop(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if rec.IsRecording() {
		t.Error("Recorder should not be in recording state after stopping")
	}
	if rec.outputFile != nil || rec.wavEncoder != nil {
		t.Error("Recorder resources should be released after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	t.Run("Already recording", func(t *testing.T) {
		rec := NewRecorder(testSampleRate)
		if err := rec.Start(filepath.Join(dir, "first.wav")); err != nil {
			t.Fatalf("Start: %v", err)
		}
		defer rec.Stop()

		err := rec.Start(filepath.Join(dir, "second.wav"))
		if err == nil || !strings.Contains(err.Error(), "already recording") {
			t.Errorf("expected already recording error, got %v", err)
		}
	})

	t.Run("Invalid path", func(t *testing.T) {
		rec := NewRecorder(testSampleRate)
		if err := rec.Start(filepath.Join(dir, "missing", "file.wav")); err == nil {
			t.Error("Expected error for missing directory")
		}
		if rec.IsRecording() {
			t.Error("Recorder should not record after a failed start")
		}
	})

	t.Run("Stop when not recording", func(t *testing.T) {
		if err := NewRecorder(testSampleRate).Stop(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("Write when not recording", func(t *testing.T) {
		if err := NewRecorder(testSampleRate).WriteFrame(make([]int16, 8)); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestRecordingRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "roundtrip.wav")
	rec := NewRecorder(testSampleRate)
	if err := rec.Start(filename); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := utils.GenerateSineFrame(testFrameSize, testSampleRate, 440, 0.5)
	second := utils.AlternatingFrame(testFrameSize/2, 1000)
	for _, frame := range [][]int16{first, second} {
		if err := rec.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	clip, err := DecodeWAV(filename)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if clip.Channels != 1 || clip.SampleRate != testSampleRate {
		t.Errorf("clip format = %d ch, %d Hz", clip.Channels, clip.SampleRate)
	}
	want := slices.Concat(first, second)
	if !slices.Equal(clip.Samples, want) {
		t.Errorf("decoded %d samples, want %d matching written frames", len(clip.Samples), len(want))
	}
}

func TestRecordingNoAllocsHotPath(t *testing.T) {
	rec := NewRecorder(testSampleRate)
	frame := utils.GenerateSineFrame(testFrameSize, testSampleRate, 440, 0.5)

	filename := filepath.Join(t.TempDir(), "test_alloc.wav")
	if err := rec.Start(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	defer rec.Stop()

	// Size the conversion buffer before measuring.
	if err := rec.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	allocs := testing.AllocsPerRun(100, func() {
		rec.mu.Lock()
		for i, s := range frame {
			rec.sampleBuf.Data[i] = int(s)
		}
		rec.mu.Unlock()
	})
	if allocs > 0 {
		t.Errorf("Recording conversion allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkRecordingStartStop(b *testing.B) {
	rec := NewRecorder(testSampleRate)
	filename := filepath.Join(b.TempDir(), "bench.wav")

	b.ReportAllocs()
	for b.Loop() {
		_ = rec.Start(filename)
		_ = rec.Stop()
	}
}

func BenchmarkRecordingWriteFrame(b *testing.B) {
	rec := NewRecorder(testSampleRate)
	frame := utils.GenerateSineFrame(testFrameSize, testSampleRate, 440, 0.5)
	_ = rec.Start(filepath.Join(b.TempDir(), "bench_write.wav"))
	defer rec.Stop()

	b.ReportAllocs()
	for b.Loop() {
		_ = rec.WriteFrame(frame)
	}
}
