// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	applog "dbmeter/internal/log"
	"dbmeter/internal/session"
	"dbmeter/pkg/utils"
)

func TestForwardUntilClosed(t *testing.T) {
	a, b := &utils.MockTransport{}, &utils.MockTransport{}
	updates := make(chan session.State, 3)
	updates <- session.State{SourceLabel: "one"}
	updates <- session.State{SourceLabel: "two", Active: true}
	close(updates)

	if err := Forward(context.Background(), updates, a, b); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	for _, m := range []*utils.MockTransport{a, b} {
		sent := m.Sent()
		if len(sent) != 2 {
			t.Fatalf("sent %d states, want 2", len(sent))
		}
		if st, ok := m.Last().(session.State); !ok || st.SourceLabel != "two" {
			t.Errorf("last sent = %+v", m.Last())
		}
	}
}

func TestForwardStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Forward(ctx, make(chan session.State), &utils.MockTransport{})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Forward = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}

func TestForwardFromBroadcaster(t *testing.T) {
	b := session.NewBroadcaster(session.State{History: make([]float64, 3)})
	updates, unsubscribe := b.Subscribe()

	mock := &utils.MockTransport{}
	done := make(chan error, 1)
	go func() { done <- Forward(context.Background(), updates, mock) }()

	b.Publish(session.State{History: []float64{0, 0, -9}, Active: true})
	deadline := time.Now().Add(2 * time.Second)
	for {
		if st, ok := mock.Last().(session.State); ok && st.Active {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("published state was not forwarded")
		}
		time.Sleep(time.Millisecond)
	}

	unsubscribe()
	if err := <-done; err != nil {
		t.Errorf("Forward = %v, want nil after unsubscribe", err)
	}
}

func TestLoggingTransport(t *testing.T) {
	orig := applog.GetLevel()
	defer applog.SetLevel(orig)
	applog.SetLevel(applog.LevelDebug)

	lt := NewLoggingTransport()
	if err := lt.Send(session.State{History: []float64{-1}}); err != nil {
		t.Errorf("Send = %v", err)
	}
	if err := lt.Send(make(chan int)); err != nil {
		t.Errorf("Send of unmarshalable value = %v, want nil", err)
	}
	if err := lt.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
