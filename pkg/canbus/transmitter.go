// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/brutella/can"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Transmitter is a single-slot transmit buffer in front of a Publisher.
// The relay main loop enqueues; Run publishes. The slot counts as busy
// until the frame has been handed to the bus.
type Transmitter struct {
	pub     Publisher
	queue   chan can.Frame
	pending atomic.Int32

	sent     atomic.Uint64
	failures atomic.Uint64
}

// NewTransmitter creates a transmitter. Run must be started for frames
// to leave.
func NewTransmitter(pub Publisher) *Transmitter {
	return &Transmitter{pub: pub, queue: make(chan can.Frame, 1)}
}

// TxReady reports whether the transmit slot is empty
func (t *Transmitter) TxReady() bool {
	return t.pending.Load() == 0
}

// SendRemoteRequest queues a remote request for id
func (t *Transmitter) SendRemoteRequest(id uint16) error {
	return t.enqueue(RemoteRequest(id))
}

// Send queues a data frame
func (t *Transmitter) Send(f relay.Frame) error {
	return t.enqueue(ToCAN(f))
}

func (t *Transmitter) enqueue(f can.Frame) error {
	if !t.TxReady() {
		return relay.ErrTxNotReady
	}
	t.pending.Add(1)
	select {
	case t.queue <- f:
		return nil
	default:
		t.pending.Add(-1)
		return relay.ErrTxNotReady
	}
}

// Run publishes queued frames until ctx is done
func (t *Transmitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-t.queue:
			if err := t.pub.Publish(f); err != nil {
				if t.failures.Add(1) == 1 {
					log.Printf("CAN transmit 0x%03X: %v", f.ID&sffMask, err)
				}
			} else {
				t.sent.Add(1)
			}
			t.pending.Add(-1)
		}
	}
}

// Sent returns the number of frames published
func (t *Transmitter) Sent() uint64 {
	return t.sent.Load()
}

// Failures returns the number of frames the bus rejected
func (t *Transmitter) Failures() uint64 {
	return t.failures.Load()
}
