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
	"github.com/Thermoquad/canrelay/pkg/capture"
	"github.com/Thermoquad/canrelay/pkg/radio"
	"github.com/Thermoquad/canrelay/pkg/relay"
)

var (
	recordPath       string
	runStatsInterval int
	skipHandshake    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Relay CAN telemetry over the radio link",
	Long: `Run the relay: bring up the radio, listen on the CAN interface, and send
one telemetry packet every send period while polling request/response nodes
every poll period.

Data from a source that stays silent for longer than its staleness threshold
is zeroed so the ground station never shows old values as current.

Use --record to write every received CAN frame to a capture file that the
replay command can feed back through the relay later.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&recordPath, "record", "", "Record received CAN frames to a capture file")
	runCmd.Flags().IntVar(&runStatsInterval, "stats-interval", 0, "Print relay statistics every N seconds (0 disables)")
	runCmd.Flags().BoolVar(&skipHandshake, "skip-handshake", false, "Do not send the radio bring-up sequence")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	thresholds, err := cfg.Thresholds()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, connInfo, err := openRadio(cfg.Radio)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("canrelay - CAN Telemetry Relay\n")
	fmt.Printf("Radio: %s (%s framing)\n", connInfo, cfg.Framing())
	fmt.Printf("CAN: %s\n", cfg.CAN.Interface)
	fmt.Printf("Send period: %d ms, poll period: %d ms\n", cfg.Timing.SendPeriodMs, cfg.Timing.PollPeriodMs)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if !skipHandshake {
		if err := radio.BringUp(ctx, conn, cfg.Handshake(), cfg.HandshakeSettle()); err != nil {
			return fmt.Errorf("radio bring-up: %w", err)
		}
		if verbose {
			log.Printf("Radio handshake sent (%d bytes)", len(cfg.Handshake()))
		}
	}
	link := radio.NewLink(conn, cfg.Framing())

	bus, err := canbus.Open(cfg.CAN.Interface)
	if err != nil {
		return err
	}
	tx := canbus.NewTransmitter(bus)

	machine, err := relay.NewMachine(relay.Options{
		Registry:   reg,
		Sink:       link,
		Tx:         tx,
		Thresholds: thresholds,
		InboxDepth: cfg.CAN.RxDepth,
		Verbose:    verbose,
	})
	if err != nil {
		return err
	}

	var recorder canbus.FrameRecorder
	if recordPath != "" {
		rec, err := capture.Create(recordPath, cfg.CAN.Interface)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Printf("capture close: %v", err)
			}
			log.Printf("Recorded %d frames to %s", rec.Written(), recordPath)
		}()
		recorder = rec
	}

	ingress := canbus.NewIngress(machine.Inbox(), recorder)
	ingress.Attach(bus)

	go tx.Run(ctx)
	relay.StartTimers(ctx, machine, cfg.SendPeriod(), cfg.PollPeriod())

	busErr := make(chan error, 1)
	go func() {
		busErr <- canbus.Serve(ctx, bus)
	}()

	if runStatsInterval > 0 {
		go printRelayStats(ctx, machine, link, ingress, tx, time.Duration(runStatsInterval)*time.Second)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- machine.Run(ctx)
	}()

	select {
	case err = <-busErr:
		stop()
		<-runErr
	case err = <-runErr:
		<-busErr
	}

	fmt.Println()
	fmt.Print(machine.Stats().String())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printRelayStats prints counters until ctx is done
func printRelayStats(ctx context.Context, m *relay.Machine, link *radio.Link, in *canbus.Ingress, tx *canbus.Transmitter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Println()
			fmt.Print(m.Stats().String())
			fmt.Printf("CAN received:    %8d (error frames %d)\n", in.Received(), in.ErrorFrames())
			fmt.Printf("CAN transmitted: %8d (failures %d)\n", tx.Sent(), tx.Failures())
			fmt.Printf("Radio packets:   %8d (%d bytes)\n", link.Packets(), link.Bytes())
			fmt.Println()
		}
	}
}
