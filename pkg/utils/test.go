package utils

import (
	"math"
	"sync"
)

// MockTransport implements the transport.Transport interface for testing.
// It records every value it is sent.
type MockTransport struct {
	mu     sync.Mutex
	sent   []any
	closed bool
}

// Send records data instead of transmitting it. Float slices are copied so
// later mutation by the caller is not observed.
func (m *MockTransport) Send(data any) error {
	if levels, ok := data.([]float64); ok {
		data = append([]float64(nil), levels...)
	}
	m.mu.Lock()
	m.sent = append(m.sent, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *MockTransport) Sent() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.sent...)
}

// Last returns the most recent value sent, or nil.
func (m *MockTransport) Last() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineFrame returns size 16-bit samples of a sine at frequency Hz with
// the given peak amplitude in [0, 1].
func GenerateSineFrame(size int, sampleRate, frequency, amplitude float64) []int16 {
	frame := make([]int16, size)
	for i := range frame {
		t := float64(i) / sampleRate
		frame[i] = int16(math.Round(math.Sin(2*math.Pi*frequency*t) * amplitude * math.MaxInt16))
	}
	return frame
}

// ConstantFrame returns size samples all equal to v.
func ConstantFrame(size int, v int16) []int16 {
	frame := make([]int16, size)
	for i := range frame {
		frame[i] = v
	}
	return frame
}

// AlternatingFrame returns size samples alternating between v and -v,
// starting with v.
func AlternatingFrame(size int, v int16) []int16 {
	frame := make([]int16, size)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = v
		} else {
			frame[i] = -v
		}
	}
	return frame
}
