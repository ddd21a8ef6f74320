// SPDX-License-Identifier: MIT
package session

import (
	"errors"

	"dbmeter/internal/audio"
	"dbmeter/internal/config"
	"dbmeter/internal/loudness"
)

// loop is the analysis loop of one session. It owns the source, history,
// estimator and frame buffer until run returns.
type loop struct {
	sess        *session
	history     *loudness.History
	estimator   *loudness.Estimator
	frame       []int16
	label       string
	maxFailures int
	broadcaster *Broadcaster

	sink         FrameSink
	sinkFailures int
}

// run reads frames until the session is deactivated or the device fails.
// A frame read after deactivation is discarded.
func (l *loop) run() error {
	failures := 0
	for l.sess.active.Load() {
		err := l.sess.source.ReadFrame(l.frame)
		if !l.sess.active.Load() {
			return nil
		}
		if err != nil {
			if !errors.Is(err, audio.ErrInputOverflow) {
				return err
			}
			failures++
			if failures >= l.maxFailures {
				return err
			}
			logger.Debugf("Skipping frame: %v (%d/%d)", err, failures, l.maxFailures)
			continue
		}
		failures = 0

		l.history.Push(l.estimator.Decibels(l.frame))
		l.writeSink()

		l.broadcaster.Publish(State{
			History:     l.history.Snapshot(),
			Active:      true,
			SourceLabel: l.label,
		})
	}
	return nil
}

func (l *loop) writeSink() {
	if l.sink == nil {
		return
	}
	if err := l.sink.WriteFrame(l.frame); err != nil {
		l.sinkFailures++
		if l.sinkFailures >= config.DefaultMaxConsecutiveWriteFailures {
			logger.Errorf("Dropping recording tap after %d consecutive write failures: %v", l.sinkFailures, err)
			l.sink = nil
		}
		return
	}
	l.sinkFailures = 0
}
