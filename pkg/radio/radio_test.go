// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/canrelay/pkg/relay"
)

// ============================================================
// Encoding
// ============================================================

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		framing  Framing
		id       uint8
		payload  []byte
		expected []byte
	}{
		{"implicit", FramingImplicit, 0x01, []byte{1, 2, 3}, []byte{0x01, 1, 2, 3}},
		{"length-prefixed", FramingLengthPrefixed, 0x11, []byte{1, 2}, []byte{0x11, 2, 1, 2}},
		{"empty implicit", FramingImplicit, 0x05, nil, []byte{0x05}},
		{"empty prefixed", FramingLengthPrefixed, 0x05, nil, []byte{0x05, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.framing, tt.id, tt.payload)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("expected % X, got % X", tt.expected, got)
			}
		})
	}
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(FramingImplicit, 0x0B, make([]byte, 61))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("port closed") }

func TestLink_SendTelemetry(t *testing.T) {
	var buf bytes.Buffer
	link := NewLink(&buf, FramingImplicit)

	if err := link.SendTelemetry(0x01, []byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	if err := link.SendTelemetry(0x0A, []byte{9}); err != nil {
		t.Fatal(err)
	}

	expected := []byte{0x01, 1, 2, 3, 4, 5, 6, 7, 8, 0x0A, 9}
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("expected % X, got % X", expected, buf.Bytes())
	}
	if link.Packets() != 2 || link.Bytes() != uint64(len(expected)) {
		t.Errorf("counters: packets=%d bytes=%d", link.Packets(), link.Bytes())
	}
}

func TestLink_WriteError(t *testing.T) {
	link := NewLink(failWriter{}, FramingImplicit)
	if err := link.SendTelemetry(0x01, []byte{1}); err == nil {
		t.Error("expected write error")
	}
	if link.Packets() != 0 {
		t.Error("failed packet counted")
	}
}

func TestParseFraming(t *testing.T) {
	if f, err := ParseFraming("implicit"); err != nil || f != FramingImplicit {
		t.Errorf("implicit: %v %v", f, err)
	}
	if f, err := ParseFraming("length-prefixed"); err != nil || f != FramingLengthPrefixed {
		t.Errorf("length-prefixed: %v %v", f, err)
	}
	if _, err := ParseFraming("auto"); err == nil {
		t.Error("auto detection must not be accepted")
	}
}

// ============================================================
// Decoding
// ============================================================

func defaultLengths() map[uint8]int {
	return LengthsFromRegistry(relay.DefaultRegistry())
}

func TestDecoder_RoundTrip(t *testing.T) {
	for _, framing := range []Framing{FramingImplicit, FramingLengthPrefixed} {
		t.Run(framing.String(), func(t *testing.T) {
			var stream []byte
			lengths := defaultLengths()
			reg := relay.DefaultRegistry()
			for i := 0; i < reg.TelemetryCount(); i++ {
				spec := reg.TelemetryAt(i)
				payload := bytes.Repeat([]byte{byte(i + 1)}, spec.Length)
				stream, _ = AppendPacket(stream, framing, spec.ID, payload)
			}

			d := NewDecoder(framing, lengths)
			packets, errs := d.Decode(stream)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if len(packets) != reg.TelemetryCount() {
				t.Fatalf("expected %d packets, got %d", reg.TelemetryCount(), len(packets))
			}
			for i, p := range packets {
				spec := reg.TelemetryAt(i)
				if p.ID() != spec.ID || p.Length() != spec.Length {
					t.Errorf("packet %d: id 0x%02X len %d", i, p.ID(), p.Length())
				}
			}
		})
	}
}

func TestDecoder_ResyncAfterGarbage(t *testing.T) {
	d := NewDecoder(FramingImplicit, map[uint8]int{0x01: 2})

	packets, errs := d.Decode([]byte{0xEE, 0xEF, 0x01, 0xAA, 0xBB})
	if len(errs) != 2 {
		t.Errorf("expected 2 unknown id errors, got %d", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrUnknownTelemetry) {
			t.Errorf("expected ErrUnknownTelemetry, got %v", err)
		}
	}
	if len(packets) != 1 || !bytes.Equal(packets[0].Payload(), []byte{0xAA, 0xBB}) {
		t.Errorf("expected one packet AA BB, got %v", packets)
	}
}

func TestDecoder_LengthByteMismatch(t *testing.T) {
	d := NewDecoder(FramingLengthPrefixed, map[uint8]int{0x01: 2})

	_, err := d.DecodeByte(0x01)
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.DecodeByte(5)
	if !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if len(d.GetRawBytes()) != 0 {
		t.Error("decoder not reset after mismatch")
	}
}

func TestDecoder_ZeroLengthPacket(t *testing.T) {
	d := NewDecoder(FramingImplicit, map[uint8]int{0x20: 0})
	p, err := d.DecodeByte(0x20)
	if err != nil || p == nil {
		t.Fatalf("expected packet, got %v %v", p, err)
	}
	if p.Length() != 0 {
		t.Errorf("expected empty payload, got %d bytes", p.Length())
	}
}

// ============================================================
// Bring-up
// ============================================================

func TestBringUp(t *testing.T) {
	var buf bytes.Buffer
	start := time.Now()
	if err := BringUp(context.Background(), &buf, []byte(DefaultHandshake), 5*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "bb" {
		t.Errorf("expected handshake bb, got %q", buf.String())
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("settle delays not applied")
	}
}

func TestBringUp_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	if err := BringUp(ctx, &buf, []byte("bb"), time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("handshake written after cancel")
	}
}

func TestParseHandshake(t *testing.T) {
	b, err := ParseHandshake("hex:2b2b2b")
	if err != nil || string(b) != "+++" {
		t.Errorf("hex: %q %v", b, err)
	}
	b, err = ParseHandshake("bb")
	if err != nil || string(b) != "bb" {
		t.Errorf("literal: %q %v", b, err)
	}
	if _, err := ParseHandshake("hex:zz"); err == nil {
		t.Error("expected error for bad hex")
	}
}

// ============================================================
// Formatting and Validation
// ============================================================

func TestParseMPPT(t *testing.T) {
	m, err := ParseMPPT([]byte{0x52, 0x10, 0x01, 0x20, 0x01, 0x80, 45})
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != 5 || m.VoltIn != 0x210 || m.CurrIn != 0x120 || m.VoltOut != 0x180 || m.Temp != 45 {
		t.Errorf("unexpected reading %+v", m)
	}

	if _, err := ParseMPPT(make([]byte, 6)); err == nil {
		t.Error("6-byte response should be rejected")
	}
}

func TestFormatPacket_BusVoltage(t *testing.T) {
	payload := make([]byte, 8)
	relay.EncodeFloat32(payload[0:4], 96.5, binary.BigEndian)
	relay.EncodeFloat32(payload[4:8], -12.25, binary.BigEndian)

	out := FormatPacket(NewPacket(relay.TelemMotorBusVI, payload), binary.BigEndian)
	if !strings.Contains(out, "MOTOR_BUS_VI") || !strings.Contains(out, "bus_v=96.5V") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestFormatPacket_Stale(t *testing.T) {
	out := FormatPacket(NewPacket(relay.TelemBPSTemperature, make([]byte, 24)), binary.BigEndian)
	if !strings.Contains(out, "no recent data") {
		t.Errorf("expected stale marker, got %s", out)
	}
}

func TestValidatePacket(t *testing.T) {
	lengths := defaultLengths()

	hot := make([]byte, 24)
	hot[3] = 100

	nan := []byte{0x7F, 0xC0, 0, 0, 0x3F, 0x80, 0, 0}

	tests := []struct {
		name    string
		packet  *Packet
		anomaly AnomalyType
		count   int
	}{
		{"valid", NewPacket(relay.TelemMotorStatus, []byte{1, 0, 0, 0, 0, 0, 0, 0}), 0, 0},
		{"stale", NewPacket(relay.TelemPMS, make([]byte, 7)), AnomalyStale, 1},
		{"short", NewPacket(relay.TelemPMS, make([]byte, 4)), AnomalyLengthMismatch, 1},
		{"hot cell", NewPacket(relay.TelemBPSTemperature, hot), AnomalyInvalidTemp, 1},
		{"nan", NewPacket(relay.TelemMotorBusVI, nan), AnomalyInvalidFloat, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidatePacket(tt.packet, lengths, binary.BigEndian)
			if len(errs) != tt.count {
				t.Fatalf("expected %d anomalies, got %v", tt.count, errs)
			}
			if tt.count > 0 && errs[0].Type != tt.anomaly {
				t.Errorf("expected anomaly %d, got %d", tt.anomaly, errs[0].Type)
			}
		})
	}
}

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	s.Update(NewPacket(0x01, []byte{1}), nil, nil)
	s.Update(NewPacket(0x19, make([]byte, 8)), nil, []ValidationError{{Type: AnomalyStale}})
	s.Update(nil, ErrUnknownTelemetry, nil)

	if s.TotalPackets != 2 || s.ValidPackets != 2 || s.StalePackets != 1 || s.UnknownIDs != 1 {
		t.Errorf("unexpected counters: %+v", s)
	}
	if !strings.Contains(s.String(), "Stale Packets") {
		t.Error("summary missing stale line")
	}
}
