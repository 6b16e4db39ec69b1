// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"log"
	"sync/atomic"

	"github.com/brutella/can"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// FrameSink takes frames from the receive path without blocking.
// *relay.Inbox satisfies it.
type FrameSink interface {
	Deliver(f relay.Frame) bool
}

// SinkFunc adapts a function to FrameSink
type SinkFunc func(f relay.Frame) bool

// Deliver calls fn(f)
func (fn SinkFunc) Deliver(f relay.Frame) bool {
	return fn(f)
}

// FrameRecorder stores received frames. *capture.Recorder satisfies it.
type FrameRecorder interface {
	Record(f relay.Frame) error
}

// Ingress is the receive handler subscribed to the bus. It does the
// minimum: convert, optionally record, hand off.
type Ingress struct {
	sink     FrameSink
	recorder FrameRecorder

	received    atomic.Uint64
	errorFrames atomic.Uint64
	recordFails atomic.Uint64
}

// NewIngress creates a receive handler. recorder may be nil.
func NewIngress(sink FrameSink, recorder FrameRecorder) *Ingress {
	return &Ingress{sink: sink, recorder: recorder}
}

// Attach subscribes the handler to a bus
func (in *Ingress) Attach(bus *can.Bus) {
	bus.SubscribeFunc(in.Handle)
}

// Handle processes one frame from the bus
func (in *Ingress) Handle(f can.Frame) {
	if IsError(f) {
		in.errorFrames.Add(1)
		return
	}
	in.received.Add(1)

	frame := FromCAN(f)
	if in.recorder != nil {
		if err := in.recorder.Record(frame); err != nil {
			// log only the first failure, a full disk would flood otherwise
			if in.recordFails.Add(1) == 1 {
				log.Printf("capture: %v", err)
			}
		}
	}
	in.sink.Deliver(frame)
}

// Received returns the number of non-error frames seen
func (in *Ingress) Received() uint64 {
	return in.received.Load()
}

// ErrorFrames returns the number of error frames seen
func (in *Ingress) ErrorFrames() uint64 {
	return in.errorFrames.Load()
}
