// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"
)

// Options configures a Machine
type Options struct {
	Registry   *Registry // DefaultRegistry() when nil
	Sink       TelemetrySink
	Tx         PollTransmitter
	Thresholds map[Source]int // DefaultThresholds() when nil
	InboxDepth int
	Verbose    bool
	Now        func() time.Time
	Stats      *Statistics
}

// Machine is the relay main loop. Step and Run must be called from a
// single goroutine; Inbox().Deliver, RaiseSend and RaisePoll may be
// called from the event goroutines.
type Machine struct {
	reg       *Registry
	pages     *PageStore
	router    *Router
	staleness *StalenessMonitor
	scheduler *Scheduler
	stats     *Statistics
	inbox     *Inbox
	verbose   bool

	wake    chan struct{}
	sendDue atomic.Bool
	pollDue atomic.Bool

	// staleness already ticked for the pending send
	staleTicked bool
	state       State
}

// NewMachine wires the core components together
func NewMachine(opts Options) (*Machine, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}
	thresholds := opts.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	stats := opts.Stats
	if stats == nil {
		stats = NewStatistics()
	}

	pages := NewPageStore(reg)
	staleness, err := NewStalenessMonitor(reg, pages, thresholds)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		reg:       reg,
		pages:     pages,
		staleness: staleness,
		router:    NewRouter(reg, pages, staleness, stats, opts.Now),
		scheduler: NewScheduler(reg, pages, opts.Sink, opts.Tx, stats),
		stats:     stats,
		verbose:   opts.Verbose,
		wake:      make(chan struct{}, 1),
	}
	m.inbox = newInbox(opts.InboxDepth, m.wake, stats)
	return m, nil
}

// Inbox returns the frame handoff for the CAN receive path
func (m *Machine) Inbox() *Inbox {
	return m.inbox
}

// RaiseSend flags a send tick as due
func (m *Machine) RaiseSend() {
	m.sendDue.Store(true)
	signal(m.wake)
}

// RaisePoll flags a poll tick as due
func (m *Machine) RaisePoll() {
	m.pollDue.Store(true)
	signal(m.wake)
}

// Step performs at most one unit of work. A received frame is always
// handled before a due send, and a due send before a due poll. A send or
// poll that could not be performed keeps its flag raised and Step
// reports Idle.
func (m *Machine) Step() State {
	select {
	case f := <-m.inbox.frames:
		m.router.Route(f)
		return m.set(StateDataReceived)
	default:
	}

	if m.sendDue.Swap(false) {
		if !m.staleTicked {
			m.tickStaleness()
			m.staleTicked = true
		}
		err := m.scheduler.TickSend()
		if err == nil {
			m.staleTicked = false
			return m.set(StateDataSending)
		}
		// a failing radio must not hold up CAN polling
		m.sendDue.Store(true)
		m.stats.SendDeferrals.Add(1)
		if m.verbose {
			log.Printf("send deferred: %v", err)
		}
	}

	if m.pollDue.Swap(false) {
		if err := m.scheduler.TickPoll(); err != nil {
			m.pollDue.Store(true)
			m.stats.PollDeferrals.Add(1)
			if m.verbose && !errors.Is(err, ErrTxNotReady) {
				log.Printf("poll deferred: %v", err)
			}
			return m.set(StateIdle)
		}
		return m.set(StateDataPolling)
	}

	return m.set(StateIdle)
}

func (m *Machine) tickStaleness() {
	for _, src := range m.staleness.Tick() {
		m.stats.StaleClears.Add(1)
		if m.verbose {
			log.Printf("%s silent for %d send ticks, cleared", src, m.staleness.Threshold(src)+1)
		}
	}
}

func (m *Machine) set(s State) State {
	m.state = s
	return s
}

// Drain steps until the machine reports Idle and returns the number of
// steps that did work
func (m *Machine) Drain() int {
	n := 0
	for m.Step() != StateIdle {
		n++
	}
	return n
}

// Run steps while work is available and sleeps on the wake channel
// otherwise. It returns ctx.Err() once the context is done.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.Step() != StateIdle {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
		}
	}
}

// State returns the state reported by the last Step
func (m *Machine) State() State {
	return m.state
}

// Pages exposes the page store for inspection. Only safe from the main
// loop goroutine or once Run has returned.
func (m *Machine) Pages() *PageStore {
	return m.pages
}

// Registry returns the packet tables in use
func (m *Machine) Registry() *Registry {
	return m.reg
}

// Staleness returns the staleness monitor
func (m *Machine) Staleness() *StalenessMonitor {
	return m.staleness
}

// Scheduler returns the egress scheduler
func (m *Machine) Scheduler() *Scheduler {
	return m.scheduler
}

// Stats returns the relay statistics
func (m *Machine) Stats() *Statistics {
	return m.stats
}
