// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"bytes"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, "vcan0")
	if err != nil {
		t.Fatal(err)
	}

	base := time.Unix(1700000000, 0)
	rtr := relay.NewFrame(0x711, nil)
	rtr.Remote = true
	frames := []relay.Frame{
		relay.NewFrame(0x608, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
		relay.NewFrame(0x60B, []byte{0x42, 0, 0, 0, 0, 0, 0x01}),
		rtr,
	}
	for i, f := range frames {
		if err := rec.RecordAt(base.Add(time.Duration(i)*time.Millisecond), f); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if r.Header().Interface != "vcan0" {
		t.Errorf("expected interface vcan0, got %q", r.Header().Interface)
	}

	entries, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(frames) {
		t.Fatalf("expected %d entries, got %d", len(frames), len(entries))
	}
	for i, e := range entries {
		if e.Frame != frames[i] {
			t.Errorf("entry %d: expected %v, got %v", i, frames[i], e.Frame)
		}
		if !e.Time.Equal(base.Add(time.Duration(i) * time.Millisecond)) {
			t.Errorf("entry %d: unexpected time %v", i, e.Time)
		}
	}
}

func TestRecorder_ConcurrentRecord(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, "")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = rec.Record(relay.NewFrame(uint16(0x600+g), []byte{byte(i)}))
			}
		}(g)
	}
	wg.Wait()

	if rec.Written() != 200 {
		t.Errorf("expected 200 frames, got %d", rec.Written())
	}
	_ = rec.Close()

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 200 {
		t.Errorf("expected 200 entries, got %d", len(entries))
	}
}

func TestRecorder_ClosedRejects(t *testing.T) {
	var buf bytes.Buffer
	rec, _ := NewRecorder(&buf, "")
	_ = rec.Close()
	if err := rec.Record(relay.NewFrame(0x401, nil)); err == nil {
		t.Error("expected error after close")
	}
}

func TestReader_BadHeader(t *testing.T) {
	data, _ := cbor.Marshal(Header{Magic: "something-else", Version: 1})
	if _, err := NewReader(bytes.NewReader(data)); !errors.Is(err, ErrBadHeader) {
		t.Errorf("expected ErrBadHeader, got %v", err)
	}
	if _, err := NewReader(bytes.NewReader(nil)); !errors.Is(err, ErrBadHeader) {
		t.Errorf("expected ErrBadHeader for empty input, got %v", err)
	}
}

func TestCreateOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.cbor")
	rec, err := Create(path, "can0")
	if err != nil {
		t.Fatal(err)
	}
	_ = rec.Record(relay.NewFrame(0x501, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	e, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if e.Frame.ID != 0x501 || e.Frame.Length != 8 {
		t.Errorf("unexpected frame %v", e.Frame)
	}
}
