// SPDX-License-Identifier: MIT
package audio

import "errors"

// Error kinds surfaced by capture and playback. Callers match them with
// errors.Is; the returned errors wrap the underlying PortAudio cause.
var (
	// ErrPermissionDenied means microphone capture was not granted.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable means the capture device could not be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrDeviceStopped means a read failed during an active session.
	ErrDeviceStopped = errors.New("capture device stopped")
	// ErrPlaybackFailure wraps any failure reported by the player.
	ErrPlaybackFailure = errors.New("playback failure")

	// ErrInputOverflow is a transient read error: the host dropped input
	// because the frame was not read in time.
	ErrInputOverflow = errors.New("input overflowed")
	// ErrUnsupportedFormat is returned for anything but mono 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported capture format")
	// ErrShortFrame is returned when the destination does not match the
	// session frame length.
	ErrShortFrame = errors.New("frame length mismatch")
)
