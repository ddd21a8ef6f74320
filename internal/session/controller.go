// SPDX-License-Identifier: MIT

/*
Package session runs capture sessions: it pairs playback of a source with
microphone analysis and publishes the rolling decibel history.

A Controller owns at most one session. Start opens the capture device and
the player, then hands the device to an analysis loop running on its own
goroutine. The loop is the only code that reads the device or writes the
history while the session is active. Stop, playback completion and fatal
read errors all end the session through the same teardown, serialized by
the controller's mutex.
*/
package session

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dbmeter/internal/audio"
	"dbmeter/internal/config"
	applog "dbmeter/internal/log"
	"dbmeter/internal/loudness"
)

var logger = applog.Named("Session")

// ErrSessionActive is returned by Start while a session is running.
var ErrSessionActive = errors.New("session already active")

// FrameSink receives every analyzed frame.
type FrameSink interface {
	WriteFrame(frame []int16) error
}

// Tap is a FrameSink with a per-session lifecycle, such as a recorder.
type Tap interface {
	FrameSink
	Start(filename string) error
	Stop() error
}

// Options configures a Controller. Opener and Player are required.
type Options struct {
	Opener     audio.Opener
	Player     audio.Player
	Permission PermissionChecker
	Format     audio.Format

	HistorySize     int
	MaxReadFailures int

	// Tap, when set, is started for every session with the file name
	// returned by TapPath.
	Tap     Tap
	TapPath func(time.Time) string
}

// Controller drives the Idle/Active session lifecycle.
type Controller struct {
	opener          audio.Opener
	player          audio.Player
	permission      PermissionChecker
	format          audio.Format
	maxReadFailures int
	tap             Tap
	tapPath         func(time.Time) string

	broadcaster *Broadcaster

	mu      sync.Mutex
	history *loudness.History
	sess    *session
	nextID  uint64
	label   string
	lastErr error
}

// session is the state shared between the controller and one loop.
type session struct {
	id     uint64
	source audio.Source
	tap    Tap
	active atomic.Bool
	done   chan struct{}
}

// NewController returns an idle controller with a zero-filled history.
func NewController(opts Options) *Controller {
	if opts.Permission == nil {
		opts.Permission = StaticPermission(true)
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = loudness.DefaultHistorySize
	}
	if opts.MaxReadFailures <= 0 {
		opts.MaxReadFailures = config.DefaultMaxReadFailures
	}

	history := loudness.NewHistory(opts.HistorySize)
	return &Controller{
		opener:          opts.Opener,
		player:          opts.Player,
		permission:      opts.Permission,
		format:          opts.Format,
		maxReadFailures: opts.MaxReadFailures,
		tap:             opts.Tap,
		tapPath:         opts.TapPath,
		history:         history,
		broadcaster:     NewBroadcaster(State{History: history.Snapshot()}),
	}
}

// Start begins a session for source: it checks permission, opens the
// capture device, starts playback and launches the analysis loop.
// On any failure nothing is left open and the controller stays idle.
func (c *Controller) Start(source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return ErrSessionActive
	}

	if !c.permission.MicrophoneGranted() {
		return c.failLocked(audio.ErrPermissionDenied)
	}

	src, err := c.opener.Open(c.format)
	if err != nil {
		if !errors.Is(err, audio.ErrDeviceUnavailable) && !errors.Is(err, audio.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
		}
		return c.failLocked(err)
	}

	c.nextID++
	id := c.nextID
	if err := c.player.Play(source, func() { c.playbackCompleted(id) }); err != nil {
		if cerr := src.Close(); cerr != nil {
			logger.Warnf("Failed to release capture device: %v", cerr)
		}
		if !errors.Is(err, audio.ErrPlaybackFailure) {
			err = fmt.Errorf("%w: %w", audio.ErrPlaybackFailure, err)
		}
		return c.failLocked(err)
	}

	s := &session{id: id, source: src, done: make(chan struct{})}
	s.active.Store(true)
	if c.tap != nil && c.tapPath != nil {
		if err := c.tap.Start(c.tapPath(time.Now())); err != nil {
			logger.Warnf("Recording disabled for this session: %v", err)
		} else {
			s.tap = c.tap
		}
	}

	c.sess = s
	c.label = SourceLabel(source)
	c.lastErr = nil
	// Publish before the loop can push, so observers never see an
	// older history after a newer one.
	c.publishLocked()

	l := &loop{
		sess:        s,
		history:     c.history,
		estimator:   loudness.NewEstimator(src.FrameLength()),
		frame:       make([]int16, src.FrameLength()),
		label:       c.label,
		maxFailures: c.maxReadFailures,
		broadcaster: c.broadcaster,
		sink:        s.tap,
	}
	go c.run(l)

	logger.Infof("Started session %d for %q (%d-sample frames)", id, c.label, src.FrameLength())
	return nil
}

// Stop ends the active session, if any. It waits for the loop to finish
// its in-flight read, then stops playback and releases the device. The
// history is kept.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked()
}

// PlaybackCompleted ends the active session as if Stop had been called.
func (c *Controller) PlaybackCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.stopLocked(); err != nil {
		logger.Warnf("Teardown after playback completion: %v", err)
	}
}

// playbackCompleted handles the player callback for session id. Late
// callbacks from an earlier session are ignored.
func (c *Controller) playbackCompleted(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || c.sess.id != id {
		logger.Debugf("Ignoring completion for stale session %d", id)
		return
	}
	logger.Infof("Playback of %q completed", c.label)
	if err := c.stopLocked(); err != nil {
		logger.Warnf("Teardown after playback completion: %v", err)
	}
}

func (c *Controller) stopLocked() error {
	s := c.sess
	if s == nil {
		return nil
	}

	s.active.Store(false)
	<-s.done

	err := c.teardownLocked(s)
	logger.Infof("Stopped session %d", s.id)
	c.publishLocked()
	return err
}

// run executes the loop and reports a fatal read error back to the
// controller. done is closed first so a concurrent Stop can proceed.
func (c *Controller) run(l *loop) {
	err := l.run()
	close(l.sess.done)
	if err != nil {
		c.sessionFailed(l.sess, err)
	}
}

func (c *Controller) sessionFailed(s *session, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != s {
		return
	}
	logger.Errorf("Session %d aborted: %v", s.id, cause)

	if err := c.teardownLocked(s); err != nil {
		logger.Warnf("Teardown after device failure: %v", err)
	}
	if !errors.Is(cause, audio.ErrDeviceStopped) {
		cause = fmt.Errorf("%w: %w", audio.ErrDeviceStopped, cause)
	}
	c.lastErr = cause
	c.publishLocked()
}

// teardownLocked stops playback and releases the device and tap. The
// loop must have exited.
func (c *Controller) teardownLocked(s *session) error {
	c.sess = nil

	var errs []error
	if err := c.player.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := s.source.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.tap != nil {
		if err := s.tap.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finalize recording: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) failLocked(err error) error {
	logger.Errorf("Cannot start session: %v", err)
	c.lastErr = err
	c.publishLocked()
	return err
}

// publishLocked publishes the controller's view. Only valid while no loop
// is writing the history.
func (c *Controller) publishLocked() {
	c.broadcaster.Publish(State{
		History:     c.history.Snapshot(),
		Active:      c.sess != nil,
		SourceLabel: c.label,
		LastError:   c.lastErr,
	})
}

// State returns the latest published state.
func (c *Controller) State() State {
	return c.broadcaster.Latest()
}

// Subscribe returns a channel that always holds the newest state and a
// function to cancel the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.broadcaster.Subscribe()
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	return c.State().Active
}

// Capacity returns the history length.
func (c *Controller) Capacity() int {
	return c.history.Cap()
}

// HistoryInto copies the latest published history into dst, which must
// have Capacity() elements. It does not allocate.
func (c *Controller) HistoryInto(dst []float64) error {
	h := c.State().History
	if len(dst) != len(h) {
		return fmt.Errorf("destination slice length %d does not match history length %d", len(dst), len(h))
	}
	copy(dst, h)
	return nil
}
