// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDecodeFloat32(t *testing.T) {
	tests := []struct {
		name  string
		bytes []byte
		order binary.ByteOrder
		want  float32
	}{
		{"one big-endian", []byte{0x3F, 0x80, 0x00, 0x00}, binary.BigEndian, 1.0},
		{"one little-endian", []byte{0x00, 0x00, 0x80, 0x3F}, binary.LittleEndian, 1.0},
		{"negative", []byte{0xC0, 0x49, 0x0F, 0xDB}, binary.BigEndian, -3.1415927},
		{"zero", []byte{0, 0, 0, 0}, binary.BigEndian, 0},
		{"96.5 volts", []byte{0x42, 0xC1, 0x00, 0x00}, binary.BigEndian, 96.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFloat32(tt.bytes, tt.order)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDecodeFloat32_Short(t *testing.T) {
	if _, err := DecodeFloat32([]byte{1, 2, 3}, binary.BigEndian); err == nil {
		t.Error("expected error for 3 bytes")
	}
}

func TestDecodeFloatPair_RoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	EncodeFloat32(buf[0:4], 12.25, binary.BigEndian)
	EncodeFloat32(buf[4:8], -4.5, binary.BigEndian)

	lo, hi, err := DecodeFloatPair(buf, binary.BigEndian)
	if err != nil {
		t.Fatal(err)
	}
	if lo != 12.25 || hi != -4.5 {
		t.Errorf("expected 12.25/-4.5, got %v/%v", lo, hi)
	}
}

func TestFloatToInt(t *testing.T) {
	tests := []struct {
		in   float32
		want int32
	}{
		{0, 0},
		{1.4, 1},
		{1.5, 2},
		{-1.5, -2},
		{-2.4, -2},
		{float32(math.NaN()), 0},
		{float32(math.Inf(1)), math.MaxInt32},
		{float32(math.Inf(-1)), math.MinInt32},
		{3e9, math.MaxInt32},
		{-3e9, math.MinInt32},
	}

	for _, tt := range tests {
		if got := FloatToInt(tt.in); got != tt.want {
			t.Errorf("FloatToInt(%v): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestParseByteOrder(t *testing.T) {
	if o, err := ParseByteOrder("big-endian"); err != nil || o != binary.BigEndian {
		t.Errorf("big-endian: %v %v", o, err)
	}
	if o, err := ParseByteOrder("little"); err != nil || o != binary.LittleEndian {
		t.Errorf("little: %v %v", o, err)
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Error("expected error")
	}
}
