// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/canrelay/pkg/config"
	"github.com/Thermoquad/canrelay/pkg/radio"
)

var linkCheckDuration int

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Check radio link budget and stability",
	Long: `Compare the telemetry bandwidth of the configured tables and send period
against the serial link capacity, then listen on the connection and report
the received byte rate.

Exit codes:
  0 - Link stable for the whole duration
  1 - Connection lost during the test
  2 - Connection error`,
	RunE: runLinkCheck,
}

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().IntVar(&linkCheckDuration, "duration", 30, "Test duration in seconds")
}

// telemetryBudget returns the mean telemetry rate in bytes per second
func telemetryBudget(cfg *config.Config) (float64, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return 0, err
	}
	if reg.TelemetryCount() == 0 {
		return 0, nil
	}

	overhead := 1
	if cfg.Framing() == radio.FramingLengthPrefixed {
		overhead = 2
	}
	total := 0
	for i := 0; i < reg.TelemetryCount(); i++ {
		total += overhead + reg.TelemetryAt(i).Length
	}
	mean := float64(total) / float64(reg.TelemetryCount())
	return mean * 1000 / float64(cfg.Timing.SendPeriodMs), nil
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	budget, err := telemetryBudget(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("canrelay - Link Check\n")
	fmt.Printf("Telemetry: %.0f bytes/s (%s framing, %d ms send period)\n",
		budget, cfg.Framing(), cfg.Timing.SendPeriodMs)
	if cfg.Radio.URL == "" && cfg.Radio.Baud > 0 {
		// 8N1: ten bits per byte
		capacity := float64(cfg.Radio.Baud) / 10
		fmt.Printf("Serial capacity: %.0f bytes/s (%.0f%% used)\n", capacity, budget*100/capacity)
		if budget > capacity {
			fmt.Printf("WARNING: telemetry exceeds the serial link capacity\n")
		}
	}

	conn, connInfo, err := openRadio(cfg.Radio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkCheckDuration)

	readChan := make(chan int, 100)
	errChan := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				readChan <- n
			}
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(linkCheckDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	bytesReceived := 0

	report := func(result string) {
		elapsed := time.Since(start)
		fmt.Printf("\n--- Link Check Results ---\n")
		fmt.Printf("Duration: %.1f s\n", elapsed.Seconds())
		fmt.Printf("Bytes received: %d (%.0f bytes/s)\n", bytesReceived, float64(bytesReceived)/elapsed.Seconds())
		fmt.Printf("Result: %s\n", result)
	}

	for time.Now().Before(endTime) {
		select {
		case n := <-readChan:
			bytesReceived += n

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			report("FAILED (connection error)")
			os.Exit(1)

		case <-heartbeat.C:
			fmt.Printf("[%s] %d bytes so far (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), bytesReceived, time.Until(endTime).Seconds())
		}
	}

	report("PASSED (connection stable)")
	return nil
}
