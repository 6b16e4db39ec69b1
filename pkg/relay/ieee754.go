// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ParseByteOrder accepts "big-endian" or "little-endian" (or "big"/"little")
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "big", "big-endian", "be":
		return binary.BigEndian, nil
	case "little", "little-endian", "le":
		return binary.LittleEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

// DecodeFloat32 decodes a 4-byte IEEE-754 single from its bit pattern
func DecodeFloat32(b []byte, order binary.ByteOrder) (float32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("float32 needs 4 bytes, got %d", len(b))
	}
	return math.Float32frombits(order.Uint32(b[:4])), nil
}

// DecodeFloatPair decodes the two floats carried by an 8-byte motor
// controller frame: bytes 0..3 and bytes 4..7
func DecodeFloatPair(b []byte, order binary.ByteOrder) (lo, hi float32, err error) {
	if len(b) < 8 {
		return 0, 0, fmt.Errorf("float pair needs 8 bytes, got %d", len(b))
	}
	lo = math.Float32frombits(order.Uint32(b[0:4]))
	hi = math.Float32frombits(order.Uint32(b[4:8]))
	return lo, hi, nil
}

// EncodeFloat32 writes f into b[0:4]
func EncodeFloat32(b []byte, f float32, order binary.ByteOrder) {
	order.PutUint32(b, math.Float32bits(f))
}

// FloatToInt rounds half away from zero and saturates at the int32 range.
// NaN maps to 0.
func FloatToInt(f float32) int32 {
	v := math.Round(float64(f))
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
