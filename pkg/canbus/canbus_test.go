// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brutella/can"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// ============================================================
// Test Doubles
// ============================================================

type fakePublisher struct {
	mu     sync.Mutex
	frames []can.Frame
	block  chan struct{}
	fail   error
}

func (p *fakePublisher) Publish(f can.Frame) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.frames = append(p.frames, f)
	return nil
}

func (p *fakePublisher) published() []can.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]can.Frame(nil), p.frames...)
}

type fakeSink struct {
	frames []relay.Frame
}

func (s *fakeSink) Deliver(f relay.Frame) bool {
	s.frames = append(s.frames, f)
	return true
}

type fakeRecorder struct {
	frames []relay.Frame
	fail   error
}

func (r *fakeRecorder) Record(f relay.Frame) error {
	if r.fail != nil {
		return r.fail
	}
	r.frames = append(r.frames, f)
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// ============================================================
// Frame Conversion
// ============================================================

func TestFromCAN(t *testing.T) {
	tests := []struct {
		name     string
		in       can.Frame
		id       uint32
		remote   bool
		extended bool
	}{
		{"standard data", can.Frame{ID: 0x608, Length: 8}, 0x608, false, false},
		{"remote", can.Frame{ID: 0x711 | RtrFlag}, 0x711, true, false},
		{"extended", can.Frame{ID: 0x18FF0001 | EffFlag, Length: 8}, 0x18FF0001, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FromCAN(tt.in)
			if f.ID != tt.id || f.Remote != tt.remote || f.Extended != tt.extended {
				t.Errorf("unexpected frame %+v", f)
			}
		})
	}
}

func TestToCAN_RoundTrip(t *testing.T) {
	in := relay.NewFrame(0x401, []byte{1, 2, 3})
	out := FromCAN(ToCAN(in))
	if out != in {
		t.Errorf("expected %v, got %v", in, out)
	}
}

func TestRemoteRequest(t *testing.T) {
	f := RemoteRequest(0x713)
	if f.ID != 0x713|RtrFlag || f.Length != 0 {
		t.Errorf("unexpected request 0x%08X len %d", f.ID, f.Length)
	}
}

// ============================================================
// Ingress
// ============================================================

func TestIngress_Handle(t *testing.T) {
	sink := &fakeSink{}
	rec := &fakeRecorder{}
	in := NewIngress(sink, rec)

	in.Handle(can.Frame{ID: 0x608, Length: 8, Data: [8]uint8{1, 2, 3, 4, 5, 6, 7, 8}})
	in.Handle(can.Frame{ID: ErrFlag | 0x04, Length: 8})

	if len(sink.frames) != 1 || sink.frames[0].ID != 0x608 {
		t.Errorf("expected one frame 0x608, got %v", sink.frames)
	}
	if len(rec.frames) != 1 {
		t.Errorf("expected one recorded frame, got %d", len(rec.frames))
	}
	if in.Received() != 1 || in.ErrorFrames() != 1 {
		t.Errorf("counters: received=%d errors=%d", in.Received(), in.ErrorFrames())
	}
}

func TestIngress_RecorderFailureStillDelivers(t *testing.T) {
	sink := &fakeSink{}
	in := NewIngress(sink, &fakeRecorder{fail: errors.New("disk full")})

	in.Handle(can.Frame{ID: 0x401, Length: 8})
	in.Handle(can.Frame{ID: 0x402, Length: 8})

	if len(sink.frames) != 2 {
		t.Errorf("expected 2 delivered frames, got %d", len(sink.frames))
	}
}

func TestIngress_IntoRelayInbox(t *testing.T) {
	m, err := relay.NewMachine(relay.Options{})
	if err != nil {
		t.Fatal(err)
	}
	in := NewIngress(m.Inbox(), nil)

	in.Handle(can.Frame{ID: 0x771, Length: 7, Data: [8]uint8{9, 9, 9, 9, 9, 9, 9}})
	m.Drain()

	page := m.Pages().Snapshot(relay.PageMPPT)
	if page[0] != 9 || page[6] != 9 || page[7] != 0 {
		t.Errorf("unexpected MPPT page % X", page)
	}
}

// ============================================================
// Transmitter
// ============================================================

func TestTransmitter_SendRemoteRequest(t *testing.T) {
	pub := &fakePublisher{}
	tx := NewTransmitter(pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tx.Run(ctx)

	if err := tx.SendRemoteRequest(0x711); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return tx.Sent() == 1 && tx.TxReady() })

	frames := pub.published()
	if len(frames) != 1 || frames[0].ID != 0x711|RtrFlag {
		t.Errorf("unexpected frames %v", frames)
	}
}

func TestTransmitter_BusyUntilPublished(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	tx := NewTransmitter(pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tx.Run(ctx)

	if err := tx.SendRemoteRequest(0x40B); err != nil {
		t.Fatal(err)
	}
	if tx.TxReady() {
		t.Error("transmitter ready while a frame is in flight")
	}
	if err := tx.SendRemoteRequest(0x40C); !errors.Is(err, relay.ErrTxNotReady) {
		t.Errorf("expected ErrTxNotReady, got %v", err)
	}

	close(pub.block)
	waitFor(t, tx.TxReady)
}

func TestTransmitter_PollDeferredThroughMachine(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	tx := NewTransmitter(pub)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tx.Run(ctx)

	m, err := relay.NewMachine(relay.Options{Tx: tx})
	if err != nil {
		t.Fatal(err)
	}

	m.RaisePoll()
	if st := m.Step(); st != relay.StateDataPolling {
		t.Fatalf("expected DATA_POLLING, got %s", st)
	}
	m.RaisePoll()
	if st := m.Step(); st != relay.StateIdle {
		t.Errorf("expected deferral while busy, got %s", st)
	}

	close(pub.block)
	waitFor(t, tx.TxReady)
	if st := m.Step(); st != relay.StateDataPolling {
		t.Errorf("expected retry to poll, got %s", st)
	}
	waitFor(t, func() bool { return tx.Sent() == 2 })

	frames := pub.published()
	if frames[0].ID != 0x40B|RtrFlag || frames[1].ID != 0x40C|RtrFlag {
		t.Errorf("unexpected poll order %v", frames)
	}
}
