// SPDX-License-Identifier: MIT
/*
Package loudness turns raw 16-bit PCM frames into decibel levels and keeps a
fixed-capacity rolling history of recent levels for display.

Conventions:
  - Samples are normalized by 32768 so full scale maps to [-1.0, 1.0).
  - Decibels are relative to full scale and therefore <= 0 for real input.
  - 0.0 is the silence sentinel: an RMS of exactly zero reports 0.0, not -Inf.
  - Values are always raw and signed. Folding to a magnitude happens at the
    display boundary (see Magnitude), never in the estimator.
*/
package loudness

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SampleScale normalizes signed 16-bit samples into [-1.0, 1.0).
const SampleScale = 32768.0

// SilenceDB is the value reported for a frame whose RMS is exactly zero.
const SilenceDB = 0.0

// RMS returns the root-mean-square amplitude of the normalized frame.
// The sum is accumulated in float64. An empty frame has an RMS of 0.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sumSquare float64
	for _, sample := range frame {
		s := float64(sample) / SampleScale
		sumSquare += s * s
	}

	return math.Sqrt(sumSquare / float64(len(frame)))
}

// Decibels converts an RMS amplitude to 20*log10(rms). Non-positive input
// returns SilenceDB.
func Decibels(rms float64) float64 {
	if rms > 0 {
		return 20 * math.Log10(rms)
	}
	return SilenceDB
}

// Level is Decibels(RMS(frame)).
func Level(frame []int16) float64 {
	return Decibels(RMS(frame))
}

// Estimator computes levels without allocating per frame. It keeps a
// normalized copy of the last frame in a pre-allocated workspace, so one
// Estimator must not be shared between goroutines.
type Estimator struct {
	work []float64
}

// NewEstimator pre-allocates a workspace for frames of frameLength samples.
// Longer frames grow the workspace once.
func NewEstimator(frameLength int) *Estimator {
	if frameLength < 0 {
		frameLength = 0
	}
	return &Estimator{work: make([]float64, frameLength)}
}

// RMS returns the same value as the package level RMS.
func (e *Estimator) RMS(frame []int16) float64 {
	n := len(frame)
	if n == 0 {
		return 0
	}
	if cap(e.work) < n {
		e.work = make([]float64, n)
	}
	w := e.work[:n]
	for i, sample := range frame {
		w[i] = float64(sample) / SampleScale
	}

	return math.Sqrt(floats.Dot(w, w) / float64(n))
}

// Decibels returns the level of frame in dBFS.
func (e *Estimator) Decibels(frame []int16) float64 {
	return Decibels(e.RMS(frame))
}

// Magnitude folds a decibel value to its absolute value for charting.
func Magnitude(db float64) float64 {
	return math.Abs(db)
}

// Normalize maps db onto [0, 1] across [floor, 0]. Values at or below floor,
// and the silence sentinel, map to 0. Positive values clamp to 1.
func Normalize(db, floor float64) float64 {
	if db == SilenceDB || floor >= 0 || db <= floor {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return (db - floor) / -floor
}
