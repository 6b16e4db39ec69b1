// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/canbus"
	"github.com/Thermoquad/canrelay/pkg/node"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

var (
	simPeriodMs int
	simSilent   []string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate the vehicle CAN nodes for bench testing",
	Long: `Broadcast the packet table on a CAN interface, one frame per period,
and answer remote requests for polled nodes.

Run it on a virtual interface (vcan0) next to "canrelay run --can vcan0" to
exercise the relay without a vehicle. Use --silent to keep a source quiet
and watch its pages go stale on the ground side.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVar(&simPeriodMs, "period", 5, "Milliseconds between simulated frames")
	simulateCmd.Flags().StringSliceVar(&simSilent, "silent", nil, "Sources that never transmit (e.g. bps,mppt3)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	if simPeriodMs <= 0 {
		return fmt.Errorf("--period must be > 0")
	}

	var silent []relay.Source
	for _, name := range simSilent {
		src, err := relay.ParseSource(name)
		if err != nil {
			return err
		}
		silent = append(silent, src)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := canbus.Open(cfg.CAN.Interface)
	if err != nil {
		return err
	}
	tx := canbus.NewTransmitter(bus)

	sim := node.New(node.Options{
		Registry:   reg,
		FloatOrder: cfg.FloatOrder(),
		Silent:     silent,
	})
	ingress := canbus.NewIngress(canbus.SinkFunc(func(f relay.Frame) bool {
		if verbose && f.Remote {
			log.Printf("remote request 0x%03X", f.ID)
		}
		sim.Handle(f)
		return true
	}), nil)
	ingress.Attach(bus)

	fmt.Printf("canrelay - Node Simulator\n")
	fmt.Printf("CAN: %s, one frame every %d ms\n", cfg.CAN.Interface, simPeriodMs)
	if len(silent) > 0 {
		fmt.Printf("Silent: %v\n", silent)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	go tx.Run(ctx)

	busErr := make(chan error, 1)
	go func() {
		busErr <- canbus.Serve(ctx, bus)
	}()

	var onSend func(relay.Frame)
	if verbose {
		onSend = func(f relay.Frame) { log.Printf("sent %s", f) }
	}

	simErr := make(chan error, 1)
	go func() {
		simErr <- sim.Run(ctx, tx, time.Duration(simPeriodMs)*time.Millisecond, onSend)
	}()

	select {
	case err = <-busErr:
		stop()
		<-simErr
	case err = <-simErr:
		stop()
		<-busErr
	}

	fmt.Printf("\nSent %d frames (%d transmit failures)\n", tx.Sent(), tx.Failures())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
