// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import "fmt"

// StalenessMonitor zero-fills the page regions of sources that stopped
// producing frames. Counters count send ticks without data.
type StalenessMonitor struct {
	reg        *Registry
	pages      *PageStore
	sources    []Source
	counts     [sourceCount]int
	thresholds [sourceCount]int
}

// NewStalenessMonitor creates a monitor for every source owning a page region.
// Sources missing from thresholds use DefaultStaleThreshold.
func NewStalenessMonitor(reg *Registry, pages *PageStore, thresholds map[Source]int) (*StalenessMonitor, error) {
	m := &StalenessMonitor{
		reg:     reg,
		pages:   pages,
		sources: reg.Sources(),
	}
	for s := range m.thresholds {
		m.thresholds[s] = DefaultStaleThreshold
	}
	for src, th := range thresholds {
		if !src.Valid() {
			return nil, fmt.Errorf("staleness threshold for unknown source %d", src)
		}
		if th < 1 {
			return nil, fmt.Errorf("staleness threshold for %s must be at least 1, got %d", src, th)
		}
		m.thresholds[src] = th
	}
	return m, nil
}

// Reset marks a source as fresh
func (m *StalenessMonitor) Reset(src Source) {
	if src.Valid() {
		m.counts[src] = 0
	}
}

// Tick advances every counter by one send tick. Sources past their
// threshold have their regions cleared and their counter reset, so a
// silent source is cleared once per threshold period. The cleared sources
// are returned.
func (m *StalenessMonitor) Tick() []Source {
	var cleared []Source
	for _, src := range m.sources {
		m.counts[src]++
		if m.counts[src] <= m.thresholds[src] {
			continue
		}
		for _, rg := range m.reg.Regions(src) {
			_ = m.pages.Zero(rg.Page, rg.Offset, rg.Length)
		}
		m.counts[src] = 0
		cleared = append(cleared, src)
	}
	return cleared
}

// Count returns the ticks since a source was last heard
func (m *StalenessMonitor) Count(src Source) int {
	if !src.Valid() {
		return 0
	}
	return m.counts[src]
}

// Threshold returns the configured threshold of a source
func (m *StalenessMonitor) Threshold(src Source) int {
	if !src.Valid() {
		return 0
	}
	return m.thresholds[src]
}
