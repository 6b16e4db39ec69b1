// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// canrelay - CAN to radio telemetry relay
//
// Collects vehicle CAN bus traffic into telemetry pages and streams them
// over a serial radio link.

package main

import (
	"os"

	"github.com/Thermoquad/canrelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
