// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"

	applog "dbmeter/internal/log"
	"dbmeter/internal/session"
)

var logger = applog.Named("Transport")

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Transport defines a generic interface for pushing meter states to
// display consumers. Implementations must be safe for concurrent use and
// must not block the caller for long.
type Transport interface {
	Send(data any) error
	Close() error
}

// Forward sends every state received on updates to each transport until
// ctx is done or updates is closed. Send errors are logged and skipped.
func Forward(ctx context.Context, updates <-chan session.State, transports ...Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			for _, t := range transports {
				if err := t.Send(st); err != nil {
					logger.Warnf("Send failed: %v", err)
				}
			}
		}
	}
}
