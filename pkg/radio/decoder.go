// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"fmt"
	"time"
)

// Decoder implements the receiver side telemetry decoder state machine.
// It needs the same length table as the transmitter.
type Decoder struct {
	framing   Framing
	lengths   map[uint8]int
	state     int
	id        uint8
	expected  int
	payload   []byte
	rawBuffer []byte
}

// NewDecoder creates a decoder for the given per-identifier payload lengths
func NewDecoder(framing Framing, lengths map[uint8]int) *Decoder {
	table := make(map[uint8]int, len(lengths))
	for id, n := range lengths {
		table[id] = n
	}
	return &Decoder{
		framing:   framing,
		lengths:   table,
		state:     stateID,
		payload:   make([]byte, 0, MaxPayloadSize),
		rawBuffer: make([]byte, 0, MaxPacketSize),
	}
}

// Reset returns the decoder to waiting for an identifier
func (d *Decoder) Reset() {
	d.state = stateID
	d.expected = 0
	d.payload = d.payload[:0]
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes of the packet being decoded
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// An unknown identifier byte is reported and skipped, which lets the
// decoder resynchronise on the next known identifier.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	d.rawBuffer = append(d.rawBuffer, b)

	switch d.state {
	case stateID:
		n, ok := d.lengths[b]
		if !ok {
			d.Reset()
			return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownTelemetry, b)
		}
		d.id = b
		d.expected = n
		if d.framing == FramingLengthPrefixed {
			d.state = stateLength
			return nil, nil
		}
		return d.afterHeader()

	case stateLength:
		if int(b) != d.expected {
			id := d.id
			d.Reset()
			return nil, fmt.Errorf("%w: 0x%02X declares %d bytes, expected %d", ErrLengthMismatch, id, b, d.expected)
		}
		return d.afterHeader()

	case statePayload:
		d.payload = append(d.payload, b)
		if len(d.payload) >= d.expected {
			return d.complete(), nil
		}
		return nil, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}

func (d *Decoder) afterHeader() (*Packet, error) {
	if d.expected == 0 {
		return d.complete(), nil
	}
	d.state = statePayload
	return nil, nil
}

func (d *Decoder) complete() *Packet {
	p := &Packet{
		id:        d.id,
		payload:   append([]byte(nil), d.payload...),
		timestamp: time.Now(),
	}
	d.Reset()
	return p
}

// Decode feeds a buffer through the decoder and returns every completed
// packet together with the errors met on the way
func (d *Decoder) Decode(data []byte) ([]*Packet, []error) {
	var packets []*Packet
	var errs []error
	for _, b := range data {
		p, err := d.DecodeByte(b)
		if err != nil {
			errs = append(errs, err)
		}
		if p != nil {
			packets = append(packets, p)
		}
	}
	return packets, errs
}
