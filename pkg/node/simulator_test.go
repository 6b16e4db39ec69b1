// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package node

import (
	"encoding/binary"
	"testing"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

type fakeSender struct {
	busy   bool
	frames []relay.Frame
}

func (s *fakeSender) TxReady() bool { return !s.busy }

func (s *fakeSender) Send(f relay.Frame) error {
	s.frames = append(s.frames, f)
	return nil
}

func rtr(id uint16) relay.Frame {
	f := relay.NewFrame(id, nil)
	f.Remote = true
	return f
}

func TestSimulator_PolledPacketsOnlyOnRequest(t *testing.T) {
	sim := New(Options{})
	tx := &fakeSender{}

	for i := 0; i < 100; i++ {
		if _, _, err := sim.Tick(tx); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range tx.frames {
		switch f.ID {
		case 0x40B, 0x40C, 0x771, 0x772, 0x773, 0x774:
			t.Fatalf("polled packet 0x%03X sent without request", f.ID)
		}
	}

	sim.Handle(rtr(0x712))
	tx.frames = nil
	for i := 0; i < 50; i++ {
		_, _, _ = sim.Tick(tx)
	}
	count := 0
	for _, f := range tx.frames {
		if f.ID == 0x772 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one 0x772 response, got %d", count)
	}
}

func TestSimulator_BusyTransmitterWaits(t *testing.T) {
	sim := New(Options{})
	tx := &fakeSender{busy: true}
	if _, ok, _ := sim.Tick(tx); ok {
		t.Error("sent while transmitter busy")
	}
	tx.busy = false
	f, ok, _ := sim.Tick(tx)
	if !ok || f.ID != relay.CANMotorStatus {
		t.Errorf("expected first broadcast 0x401, got %v", f)
	}
}

func TestSimulator_SilentSource(t *testing.T) {
	sim := New(Options{Silent: []relay.Source{relay.SourceBPS}})
	tx := &fakeSender{}
	for i := 0; i < 60; i++ {
		_, _, _ = sim.Tick(tx)
	}
	for _, f := range tx.frames {
		if f.ID >= 0x600 && f.ID <= 0x60E {
			t.Fatalf("silent BPS sent 0x%03X", f.ID)
		}
	}
}

func TestSimulator_MotorFloats(t *testing.T) {
	sim := New(Options{FloatOrder: binary.BigEndian})
	tx := &fakeSender{}
	for i := 0; i < 10; i++ {
		_, _, _ = sim.Tick(tx)
	}
	for _, f := range tx.frames {
		if f.ID != relay.CANMotorBusVI {
			continue
		}
		lo, _, err := relay.DecodeFloatPair(f.Payload(), binary.BigEndian)
		if err != nil {
			t.Fatal(err)
		}
		if lo != 0.5 {
			t.Errorf("expected first bus voltage 0.5, got %v", lo)
		}
		return
	}
	t.Fatal("no bus V/I frame sent")
}

func TestSimulator_FeedsRelay(t *testing.T) {
	m, err := relay.NewMachine(relay.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sim := New(Options{})
	tx := &fakeSender{}

	sim.Handle(rtr(0x711))
	for i := 0; i < 40; i++ {
		f, ok, _ := sim.Tick(tx)
		if ok {
			m.Inbox().Deliver(f)
			m.Drain()
		}
	}

	if m.Pages().IsZero(relay.PageBPSVoltage) {
		t.Error("BPS voltage page still empty")
	}
	mppt := m.Pages().Snapshot(relay.PageMPPT)
	if mppt[0] == 0 {
		t.Error("MPPT1 response not routed")
	}
	for _, b := range mppt[8:] {
		if b != 0 {
			t.Fatal("unpolled MPPT channels should stay empty")
		}
	}
}
