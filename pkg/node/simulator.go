// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package node simulates the bus participants on a bench: it broadcasts
// the CAN table one frame per tick and answers remote requests.
package node

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Sender transmits data frames. *canbus.Transmitter satisfies it.
type Sender interface {
	TxReady() bool
	Send(f relay.Frame) error
}

// Options configures a Simulator
type Options struct {
	Registry   *relay.Registry  // DefaultRegistry() when nil
	FloatOrder binary.ByteOrder // big-endian when nil
	Silent     []relay.Source   // sources that never transmit
}

type packetState struct {
	spec    relay.CANPacketSpec
	data    []byte
	counter int
}

// Simulator emulates every node of a registry. Handle may be called from
// the bus goroutine while Tick runs on another.
type Simulator struct {
	order   binary.ByteOrder
	packets []*packetState
	// request id -> response id
	pollMap map[uint16]uint16
	// response ids owed after a remote request; owned by Tick
	armed    map[uint16]bool
	requests chan uint16
	silent   map[relay.Source]bool
	cursor   int

	sent uint64
}

// New creates a simulator
func New(opts Options) *Simulator {
	reg := opts.Registry
	if reg == nil {
		reg = relay.DefaultRegistry()
	}
	order := opts.FloatOrder
	if order == nil {
		order = binary.BigEndian
	}

	s := &Simulator{
		order:    order,
		pollMap:  make(map[uint16]uint16),
		armed:    make(map[uint16]bool),
		requests: make(chan uint16, 16),
		silent:   make(map[relay.Source]bool),
	}
	for _, spec := range reg.CANPackets() {
		s.packets = append(s.packets, &packetState{spec: spec, data: make([]byte, spec.Length)})
	}
	for i := 0; i < reg.PollCount(); i++ {
		p := reg.PollAt(i)
		s.pollMap[p.Request] = p.Response
	}
	for _, src := range opts.Silent {
		s.silent[src] = true
	}
	return s
}

// Handle processes a frame seen on the bus. Remote requests for a polled
// node arm its response.
func (s *Simulator) Handle(f relay.Frame) {
	if !f.Remote || f.Extended {
		return
	}
	if _, ok := s.pollMap[uint16(f.ID)]; !ok {
		return
	}
	select {
	case s.requests <- uint16(f.ID):
	default:
	}
}

func (s *Simulator) polled(id uint16) bool {
	for _, resp := range s.pollMap {
		if resp == id {
			return true
		}
	}
	return false
}

// Tick sends the next due frame of the rotation, if the transmitter is
// free. Broadcast packets are always due; polled packets only after a
// request. Returns the frame sent, or false when nothing was sent.
func (s *Simulator) Tick(tx Sender) (relay.Frame, bool, error) {
drain:
	for {
		select {
		case req := <-s.requests:
			s.armed[s.pollMap[req]] = true
		default:
			break drain
		}
	}

	if !tx.TxReady() || len(s.packets) == 0 {
		return relay.Frame{}, false, nil
	}

	for range s.packets {
		p := s.packets[s.cursor]
		s.cursor = (s.cursor + 1) % len(s.packets)

		if s.silent[p.spec.Source] {
			continue
		}
		if s.polled(p.spec.ID) {
			if !s.armed[p.spec.ID] {
				continue
			}
			delete(s.armed, p.spec.ID)
		}

		s.fill(p)
		f := relay.NewFrame(p.spec.ID, p.data)
		if err := tx.Send(f); err != nil {
			return relay.Frame{}, false, err
		}
		s.sent++
		return f, true, nil
	}
	return relay.Frame{}, false, nil
}

// fill updates a packet's payload before it is sent
func (s *Simulator) fill(p *packetState) {
	p.counter++
	switch {
	case p.spec.Length == 8 && carriesFloats(p.spec):
		lo := float32(p.counter%200) * 0.5
		hi := float32(p.counter%40) * 0.25
		relay.EncodeFloat32(p.data[0:4], lo, s.order)
		relay.EncodeFloat32(p.data[4:8], hi, s.order)
	case p.spec.Source >= relay.SourceMPPT1 && p.spec.Source <= relay.SourceMPPT4 && p.spec.Length >= 7:
		vin := uint16(300 + p.counter%200)
		iin := uint16(100 + p.counter%50)
		vout := uint16(1000 + p.counter%100)
		p.data[0] = 0x10 | byte(vin>>8)&0x03
		p.data[1] = byte(vin)
		binary.BigEndian.PutUint16(p.data[2:4], iin)
		binary.BigEndian.PutUint16(p.data[4:6], vout)
		p.data[6] = byte(25 + p.counter%20)
	case p.spec.Length > 0:
		p.data[p.counter%p.spec.Length]++
	}
}

// carriesFloats reports whether a packet holds two IEEE-754 singles
func carriesFloats(spec relay.CANPacketSpec) bool {
	switch spec.ID {
	case relay.CANMotorBusVI, relay.CANMotorVelocity, relay.CANMotorHSTemp,
		relay.CANMotorDSPTemp, relay.CANDriverCommand:
		return true
	}
	return false
}

// Run ticks every period until ctx is done
func (s *Simulator) Run(ctx context.Context, tx Sender, period time.Duration, onSend func(relay.Frame)) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f, ok, err := s.Tick(tx)
			if err != nil {
				return err
			}
			if ok && onSend != nil {
				onSend(f)
			}
		}
	}
}

// Sent returns the number of frames sent. Only safe from the Tick goroutine.
func (s *Simulator) Sent() uint64 {
	return s.sent
}
