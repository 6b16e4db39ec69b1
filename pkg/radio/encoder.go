// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Encode builds the wire bytes of one telemetry packet
func Encode(framing Framing, id uint8, payload []byte) ([]byte, error) {
	return AppendPacket(nil, framing, id, payload)
}

// AppendPacket appends the wire bytes of one telemetry packet to dst
func AppendPacket(dst []byte, framing Framing, id uint8, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return dst, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	dst = append(dst, id)
	if framing == FramingLengthPrefixed {
		dst = append(dst, uint8(len(payload)))
	}
	return append(dst, payload...), nil
}

// Link writes telemetry packets to the radio modem. One packet is one
// Write call so a packet is never interleaved with another writer.
type Link struct {
	w       io.Writer
	framing Framing
	buf     []byte

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewLink creates a telemetry link over w
func NewLink(w io.Writer, framing Framing) *Link {
	return &Link{w: w, framing: framing, buf: make([]byte, 0, MaxPacketSize)}
}

// SendTelemetry frames and writes one packet
func (l *Link) SendTelemetry(id uint8, payload []byte) error {
	var err error
	l.buf, err = AppendPacket(l.buf[:0], l.framing, id, payload)
	if err != nil {
		return err
	}
	n, err := l.w.Write(l.buf)
	if err != nil {
		return fmt.Errorf("radio write: %w", err)
	}
	if n != len(l.buf) {
		return fmt.Errorf("radio write: short write %d of %d bytes", n, len(l.buf))
	}
	l.packets.Add(1)
	l.bytes.Add(uint64(n))
	return nil
}

// Framing returns the link framing
func (l *Link) Framing() Framing {
	return l.framing
}

// Packets returns the number of packets written
func (l *Link) Packets() uint64 {
	return l.packets.Load()
}

// Bytes returns the number of bytes written
func (l *Link) Bytes() uint64 {
	return l.bytes.Load()
}
