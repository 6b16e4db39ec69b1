// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import "fmt"

// Frame is one CAN frame as captured by the event domain
type Frame struct {
	ID       uint32
	Length   uint8
	Data     [MaxFrameLength]byte
	Remote   bool // remote transmission request
	Extended bool // 29-bit identifier
}

// NewFrame builds a standard data frame
func NewFrame(id uint16, payload []byte) Frame {
	f := Frame{ID: uint32(id)}
	n := copy(f.Data[:], payload)
	f.Length = uint8(n)
	return f
}

// Payload returns the received data bytes
func (f Frame) Payload() []byte {
	n := int(f.Length)
	if n > MaxFrameLength {
		n = MaxFrameLength
	}
	return f.Data[:n]
}

// IsData reports whether the frame carries data on a standard identifier
func (f Frame) IsData() bool {
	return !f.Remote && !f.Extended && f.ID <= MaxStandardID
}

func (f Frame) String() string {
	kind := "data"
	if f.Remote {
		kind = "rtr"
	}
	if f.Extended {
		return fmt.Sprintf("%08X [%d] %s % X", f.ID, f.Length, kind, f.Payload())
	}
	return fmt.Sprintf("%03X [%d] %s % X", f.ID, f.Length, kind, f.Payload())
}
