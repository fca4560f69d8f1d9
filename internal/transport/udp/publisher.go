// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	applog "tuner/internal/log"
	"tuner/internal/session"
)

// DefaultInterval is used when NewPublisher is given a non-positive interval.
const DefaultInterval = 33 * time.Millisecond

// FrameSource exposes the most recent frame. session.Controller satisfies it.
type FrameSource interface {
	Latest() (session.Frame, bool)
}

// PacketSender is the datagram side of the publisher. *Sender satisfies it.
type PacketSender interface {
	Send(data []byte) error
}

// Publisher periodically packs the latest frame and sends it over UDP.
// It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   PacketSender  // The underlying UDP sender.
	source   FrameSource   // Where frames are read from.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	sequenceNum  uint32        // Monotonically increasing packet counter.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the packet.
}

// NewPublisher creates a publisher reading frames from source.
func NewPublisher(interval time.Duration, sender PacketSender, source FrameSource) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: frame source cannot be nil")
	}

	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)
	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals so the goroutine does not race on the fields.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Stopped after %d packets.", p.sequenceNum)
	return nil
}

// publish sends the latest frame, if any.
func (p *Publisher) publish() {
	frame, ok := p.source.Latest()
	if !ok {
		return
	}

	p.sequenceNum++
	if err := writePacket(p.packetBuffer, p.sequenceNum, frame); err != nil {
		applog.Errorf("UDPPublisher: Error packing frame %d: %v", frame.Seq, err)
		return
	}

	// The sender logs its own errors.
	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close implements io.Closer by stopping the publisher.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*Publisher)(nil)
