// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// ParseHandshake decodes a handshake from configuration. A "hex:" prefix
// selects hex notation, anything else is taken literally.
func ParseHandshake(s string) ([]byte, error) {
	const prefix = "hex:"
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		b, err := hex.DecodeString(s[len(prefix):])
		if err != nil {
			return nil, fmt.Errorf("invalid handshake hex: %w", err)
		}
		return b, nil
	}
	return []byte(s), nil
}

// BringUp puts the radio module into transparent relay mode: wait for the
// module to settle, write the handshake, and let it settle again.
// An empty sequence skips the handshake.
func BringUp(ctx context.Context, w io.Writer, seq []byte, settle time.Duration) error {
	if len(seq) == 0 {
		return nil
	}
	if err := sleep(ctx, settle); err != nil {
		return err
	}
	if _, err := w.Write(seq); err != nil {
		return fmt.Errorf("radio handshake: %w", err)
	}
	return sleep(ctx, settle)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
