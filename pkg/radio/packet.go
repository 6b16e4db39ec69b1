// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import "time"

// Packet is one decoded telemetry packet
type Packet struct {
	id        uint8
	payload   []byte
	timestamp time.Time
}

// NewPacket creates a packet stamped with the current time
func NewPacket(id uint8, payload []byte) *Packet {
	return &Packet{
		id:        id,
		payload:   append([]byte(nil), payload...),
		timestamp: time.Now(),
	}
}

// ID returns the telemetry identifier
func (p *Packet) ID() uint8 {
	return p.id
}

// Payload returns the payload bytes
func (p *Packet) Payload() []byte {
	return p.payload
}

// Length returns the payload length
func (p *Packet) Length() int {
	return len(p.payload)
}

// Timestamp returns when the packet was decoded
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsZero reports whether every payload byte is zero. The relay sends an
// all-zero page for a source that went silent.
func (p *Packet) IsZero() bool {
	for _, b := range p.payload {
		if b != 0 {
			return false
		}
	}
	return true
}
