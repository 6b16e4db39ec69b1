// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"errors"
	"fmt"
)

// ErrTxNotReady is returned by a poll tick while the CAN transmit buffer is busy
var ErrTxNotReady = errors.New("can transmitter not ready")

// TelemetrySink receives one radio telemetry packet per send tick
type TelemetrySink interface {
	SendTelemetry(id uint8, payload []byte) error
}

// PollTransmitter sends CAN remote requests
type PollTransmitter interface {
	TxReady() bool
	SendRemoteRequest(id uint16) error
}

// Scheduler drives the send and poll rotations
type Scheduler struct {
	reg   *Registry
	pages *PageStore
	sink  TelemetrySink
	tx    PollTransmitter
	stats *Statistics

	send *Rotation
	poll *Rotation
	buf  []byte
}

// NewScheduler creates the egress scheduler. tx may be nil when no
// polling is configured.
func NewScheduler(reg *Registry, pages *PageStore, sink TelemetrySink, tx PollTransmitter, stats *Statistics) *Scheduler {
	return &Scheduler{
		reg:   reg,
		pages: pages,
		sink:  sink,
		tx:    tx,
		stats: stats,
		send:  NewRotation(reg.TelemetryCount()),
		poll:  NewRotation(reg.PollCount()),
		buf:   make([]byte, 0, MaxTelemetryLength),
	}
}

// TickSend emits the telemetry packet under the send cursor. The cursor
// only advances when the sink accepted the packet.
func (s *Scheduler) TickSend() error {
	if s.send.Len() == 0 || s.sink == nil {
		return nil
	}
	spec := s.reg.TelemetryAt(s.send.Current())
	s.buf = s.buf[:0]
	for _, pid := range spec.Pages {
		s.buf = s.pages.AppendPage(s.buf, pid)
	}
	if err := s.sink.SendTelemetry(spec.ID, s.buf); err != nil {
		return fmt.Errorf("telemetry 0x%02X (%s): %w", spec.ID, spec.Name, err)
	}
	s.send.Advance()
	s.stats.Sends.Add(1)
	return nil
}

// TickPoll sends a remote request to the node under the poll cursor.
// While the transmitter is busy it returns ErrTxNotReady and the cursor
// stays put.
func (s *Scheduler) TickPoll() error {
	if s.poll.Len() == 0 || s.tx == nil {
		return nil
	}
	if !s.tx.TxReady() {
		return ErrTxNotReady
	}
	spec := s.reg.PollAt(s.poll.Current())
	if err := s.tx.SendRemoteRequest(spec.Request); err != nil {
		return fmt.Errorf("poll 0x%03X (%s): %w", spec.Request, spec.Name, err)
	}
	s.poll.Advance()
	s.stats.Polls.Add(1)
	return nil
}

// SendCursor returns the position of the send rotation
func (s *Scheduler) SendCursor() int {
	return s.send.Current()
}

// PollCursor returns the position of the poll rotation
func (s *Scheduler) PollCursor() int {
	return s.poll.Current()
}
