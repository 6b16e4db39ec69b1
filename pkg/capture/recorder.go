// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/sasha-s/go-deadlock"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// Recorder appends frames to a capture. Record is safe for concurrent use.
type Recorder struct {
	mu      *deadlock.Mutex
	enc     *cbor.Encoder
	buf     *bufio.Writer
	closer  io.Closer
	now     func() time.Time
	written uint64
}

// NewRecorder writes a header to w and returns a recorder appending to it
func NewRecorder(w io.Writer, iface string) (*Recorder, error) {
	buf := bufio.NewWriter(w)
	r := &Recorder{
		mu:  &deadlock.Mutex{},
		enc: cbor.NewEncoder(buf),
		buf: buf,
		now: time.Now,
	}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}

	hdr := Header{Magic: Magic, Version: Version, Created: r.now().UnixNano(), Interface: iface}
	if err := r.enc.Encode(hdr); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return r, nil
}

// Create creates a capture file at path
func Create(path, iface string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture: %w", err)
	}
	r, err := NewRecorder(f, iface)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Record appends one frame stamped with the current time
func (r *Recorder) Record(f relay.Frame) error {
	return r.RecordAt(r.now(), f)
}

// RecordAt appends one frame with an explicit timestamp
func (r *Recorder) RecordAt(at time.Time, f relay.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return fmt.Errorf("capture closed")
	}
	if err := r.enc.Encode(toRecord(at, f)); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.written++
	return nil
}

// Flush writes buffered frames to the underlying writer
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Flush()
}

// Written returns the number of frames recorded
func (r *Recorder) Written() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes and closes the capture
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	r.enc = nil
	err := r.buf.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
