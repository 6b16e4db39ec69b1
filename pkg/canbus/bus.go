// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package canbus

import (
	"context"
	"fmt"
	"log"
	"net"

	"github.com/brutella/can"
)

// Publisher sends raw SocketCAN frames. *can.Bus satisfies it.
type Publisher interface {
	Publish(frame can.Frame) error
}

// Open opens a SocketCAN interface such as can0 or vcan0
func Open(ifname string) (*can.Bus, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("could not find network interface %s: %w", ifname, err)
	}

	conn, err := can.NewReadWriteCloserForInterface(iface)
	if err != nil {
		return nil, fmt.Errorf("unable to open CAN bus %s: %w", ifname, err)
	}

	return can.NewBus(conn), nil
}

// Serve reads from the bus and dispatches frames to subscribers until ctx
// is done or the bus fails
func Serve(ctx context.Context, bus *can.Bus) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- bus.ConnectAndPublish()
	}()

	select {
	case <-ctx.Done():
		if err := bus.Disconnect(); err != nil {
			log.Printf("CAN disconnect: %v", err)
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("CAN bus: %w", err)
		}
		return nil
	}
}
