// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// HistorySource provides the rolling decibel history to publish.
type HistorySource interface {
	HistoryInto(dst []float64) error
	Capacity() int
	Active() bool
}

// DefaultInterval is used when NewPublisher is given a non-positive interval.
const DefaultInterval = 33 * time.Millisecond

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Active            | uint8          | 1            | 1 while a session runs  |
| Level Count       | uint16         | 2            | Number of floats (N)    |
| Levels            | []float32      | N * 4        | dB history, oldest first|
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the levels.
const HeaderSize = 4 + 8 + 1 + 2

// Packet is a decoded level packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Active    bool
	Levels    []float32
}

// AppendPacket appends the encoding of p to dst.
func AppendPacket(dst []byte, p Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.Timestamp))
	var active byte
	if p.Active {
		active = 1
	}
	dst = append(dst, active)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(p.Levels)))
	for _, v := range p.Levels {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodePacket parses a packet produced by AppendPacket.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(b))
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
		Active:    b[12] == 1,
	}
	n := int(binary.BigEndian.Uint16(b[13:15]))
	body := b[HeaderSize:]
	if len(body) != n*4 {
		return Packet{}, fmt.Errorf("packet declares %d levels but carries %d bytes", n, len(body))
	}
	p.Levels = make([]float32, n)
	for i := range p.Levels {
		p.Levels[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
	}
	return p, nil
}

// Publisher periodically packs the decibel history into a packet and
// sends it through a Sender. It runs in a goroutine managed by Start and
// Stop.
type Publisher struct {
	sender   *Sender
	source   HistorySource
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex

	sequenceNum uint32

	// Reused on every tick.
	levels  []float64
	f32     []float32
	payload []byte
}

// NewPublisher creates a publisher reading from source.
func NewPublisher(interval time.Duration, sender *Sender, source HistorySource) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("UDP sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("history source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}

	n := source.Capacity()
	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		levels:   make([]float64, n),
		f32:      make([]float32, n),
		payload:  make([]byte, 0, HeaderSize+4*n),
	}, nil
}

// Start begins the periodic publishing. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		logger.Warnf("Publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("Publishing levels every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to exit and waits for it.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func (p *Publisher) publish() {
	if err := p.source.HistoryInto(p.levels); err != nil {
		logger.Errorf("Error reading history: %v", err)
		return
	}
	for i, v := range p.levels {
		p.f32[i] = float32(v)
	}

	p.sequenceNum++
	p.payload = AppendPacket(p.payload[:0], Packet{
		Sequence:  p.sequenceNum,
		Timestamp: time.Now().UnixNano(),
		Active:    p.source.Active(),
		Levels:    p.f32,
	})

	if err := p.sender.Send(p.payload); err == nil {
		logger.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, len(p.payload))
	}
}

// Close stops the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
