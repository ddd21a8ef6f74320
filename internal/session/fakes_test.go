// SPDX-License-Identifier: MIT
package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"dbmeter/internal/audio"
	"dbmeter/internal/loudness"
)

const testFrameLength = 4

// readStep is one scripted ReadFrame result.
type readStep struct {
	frame []int16
	err   error
}

// fakeSource replays a script of reads. Once the script is exhausted it
// behaves like an idle device that keeps overflowing.
type fakeSource struct {
	mu     sync.Mutex
	script []readStep
	reads  int
	closed int

	// When release is set, every read signals entered and then blocks
	// until release is closed.
	entered chan struct{}
	release chan struct{}
}

func newFakeSource(script ...readStep) *fakeSource {
	return &fakeSource{script: script}
}

func (s *fakeSource) FrameLength() int { return testFrameLength }

func (s *fakeSource) ReadFrame(dst []int16) error {
	if s.release != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		<-s.release
	}

	s.mu.Lock()
	if len(s.script) > 0 {
		step := s.script[0]
		s.script = s.script[1:]
		s.reads++
		s.mu.Unlock()
		if step.err != nil {
			return step.err
		}
		copy(dst, step.frame)
		return nil
	}
	s.mu.Unlock()
	time.Sleep(time.Millisecond)
	return audio.ErrInputOverflow
}

// blockingSource returns a source whose reads wait for release.
func blockingSource(script ...readStep) *fakeSource {
	s := newFakeSource(script...)
	s.entered = make(chan struct{}, 1)
	s.release = make(chan struct{})
	return s
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeOpener hands out queued sources in order.
type fakeOpener struct {
	mu      sync.Mutex
	sources []*fakeSource
	err     error
	opened  int
	formats []audio.Format
}

func (o *fakeOpener) Open(f audio.Format) (audio.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.formats = append(o.formats, f)
	if o.err != nil {
		return nil, o.err
	}
	if o.opened >= len(o.sources) {
		return nil, errors.New("no more sources")
	}
	src := o.sources[o.opened]
	o.opened++
	return src, nil
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened
}

type fakePlayer struct {
	mu        sync.Mutex
	playErr   error
	plays     []string
	stops     int
	callbacks []func()
}

func (p *fakePlayer) Play(source string, onComplete func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.plays = append(p.plays, source)
	p.callbacks = append(p.callbacks, onComplete)
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

// complete fires the completion callback of the n-th Play, as the player
// would from its own goroutine.
func (p *fakePlayer) complete(n int) {
	p.mu.Lock()
	cb := p.callbacks[n]
	p.mu.Unlock()
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	<-done
}

// fakeTap records written frames and can be told to fail.
type fakeTap struct {
	mu       sync.Mutex
	started  []string
	stopped  int
	frames   int
	writeErr error
	writes   int
}

func (t *fakeTap) Start(filename string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, filename)
	return nil
}

func (t *fakeTap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
	return nil
}

func (t *fakeTap) WriteFrame(frame []int16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes++
	if t.writeErr != nil {
		return t.writeErr
	}
	t.frames++
	return nil
}

func (t *fakeTap) counts() (writes, frames, stopped int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes, t.frames, t.stopped
}

func frameOf(v int16) []int16 {
	f := make([]int16, testFrameLength)
	for i := range f {
		f[i] = v
	}
	return f
}

func level(v int16) float64 {
	return loudness.Level(frameOf(v))
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

type testRig struct {
	c      *Controller
	opener *fakeOpener
	player *fakePlayer
}

func newRig(t *testing.T, opts Options, sources ...*fakeSource) *testRig {
	t.Helper()
	r := &testRig{
		opener: &fakeOpener{sources: sources},
		player: &fakePlayer{},
	}
	opts.Opener = r.opener
	opts.Player = r.player
	if opts.MaxReadFailures == 0 {
		// Idle fake sources overflow forever; keep them from aborting.
		opts.MaxReadFailures = 1 << 30
	}
	r.c = NewController(opts)
	t.Cleanup(func() { _ = r.c.Stop() })
	return r
}
