// SPDX-License-Identifier: MIT
package session

import (
	"sync"
	"sync/atomic"
)

// Broadcaster publishes the latest State to any number of observers.
// Publish is called from one writer at a time. Each subscriber channel
// holds at most one value and always the newest: slow observers skip
// intermediate states rather than blocking the writer.
type Broadcaster struct {
	latest atomic.Pointer[State]

	mu     sync.Mutex
	subs   map[int]chan State
	nextID int
}

// NewBroadcaster returns a broadcaster whose latest value is initial.
func NewBroadcaster(initial State) *Broadcaster {
	b := &Broadcaster{subs: make(map[int]chan State)}
	b.latest.Store(&initial)
	return b
}

// Publish replaces the latest state and offers it to every subscriber.
func (b *Broadcaster) Publish(s State) {
	b.latest.Store(&s)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Latest returns the most recently published state.
func (b *Broadcaster) Latest() State {
	return *b.latest.Load()
}

// Subscribe returns a channel primed with the latest state and a cancel
// function that unregisters and closes it.
func (b *Broadcaster) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	ch <- b.Latest()
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
