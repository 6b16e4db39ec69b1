// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package canbus connects the relay core to a SocketCAN interface.
package canbus

import (
	"github.com/brutella/can"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// SocketCAN identifier flags carried in the top bits of can.Frame.ID
const (
	EffFlag uint32 = 1 << 31 // extended frame format
	RtrFlag uint32 = 1 << 30 // remote transmission request
	ErrFlag uint32 = 1 << 29 // error frame

	sffMask uint32 = 0x000007FF
	effMask uint32 = 0x1FFFFFFF
)

// FromCAN converts a SocketCAN frame into a relay frame
func FromCAN(f can.Frame) relay.Frame {
	out := relay.Frame{
		Length:   f.Length,
		Data:     f.Data,
		Remote:   f.ID&RtrFlag != 0,
		Extended: f.ID&EffFlag != 0,
	}
	if out.Extended {
		out.ID = f.ID & effMask
	} else {
		out.ID = f.ID & sffMask
	}
	if out.Length > relay.MaxFrameLength {
		out.Length = relay.MaxFrameLength
	}
	return out
}

// ToCAN converts a relay frame into a SocketCAN frame
func ToCAN(f relay.Frame) can.Frame {
	out := can.Frame{
		ID:     f.ID & sffMask,
		Length: f.Length,
		Data:   f.Data,
	}
	if f.Extended {
		out.ID = f.ID&effMask | EffFlag
	}
	if f.Remote {
		out.ID |= RtrFlag
	}
	return out
}

// RemoteRequest builds a zero-payload remote request for a standard id
func RemoteRequest(id uint16) can.Frame {
	return can.Frame{ID: uint32(id)&sffMask | RtrFlag}
}

// IsError reports whether a SocketCAN frame is an error frame
func IsError(f can.Frame) bool {
	return f.ID&ErrFlag != 0
}
