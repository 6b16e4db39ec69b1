// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records received CAN frames to a CBOR stream and reads
// them back for offline replay.
//
// A capture is a header item followed by one item per frame. Times are
// stored as Unix nanoseconds.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Format identification
const (
	Magic   = "canrelay-capture"
	Version = 1
)

// Entry flag bits
const (
	FlagRemote   = 1 << 0
	FlagExtended = 1 << 1
)

// ErrBadHeader is returned for a stream that is not a capture
var ErrBadHeader = errors.New("not a canrelay capture")

// Header is the first item of a capture
type Header struct {
	Magic     string `cbor:"1,keyasint"`
	Version   int    `cbor:"2,keyasint"`
	Created   int64  `cbor:"3,keyasint"`
	Interface string `cbor:"4,keyasint,omitempty"`
}

// record is the on-disk form of one frame
type record struct {
	Time  int64  `cbor:"1,keyasint"`
	ID    uint32 `cbor:"2,keyasint"`
	Flags uint8  `cbor:"3,keyasint,omitempty"`
	Data  []byte `cbor:"4,keyasint"`
}

// Entry is one captured frame
type Entry struct {
	Time  time.Time
	Frame relay.Frame
}

func toRecord(at time.Time, f relay.Frame) record {
	r := record{
		Time: at.UnixNano(),
		ID:   f.ID,
		Data: append([]byte(nil), f.Payload()...),
	}
	if f.Remote {
		r.Flags |= FlagRemote
	}
	if f.Extended {
		r.Flags |= FlagExtended
	}
	return r
}

func (r record) entry() (Entry, error) {
	if len(r.Data) > relay.MaxFrameLength {
		return Entry{}, fmt.Errorf("frame 0x%X carries %d bytes", r.ID, len(r.Data))
	}
	f := relay.Frame{
		ID:       r.ID,
		Length:   uint8(len(r.Data)),
		Remote:   r.Flags&FlagRemote != 0,
		Extended: r.Flags&FlagExtended != 0,
	}
	copy(f.Data[:], r.Data)
	return Entry{Time: time.Unix(0, r.Time), Frame: f}, nil
}
