// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"log"
	"time"
)

// Router copies inbound CAN payloads into their page regions
type Router struct {
	reg       *Registry
	pages     *PageStore
	staleness *StalenessMonitor
	stats     *Statistics
	now       func() time.Time

	// ids whose length mismatch has already been logged
	mismatchLogged map[uint16]bool
}

// NewRouter creates an ingress router
func NewRouter(reg *Registry, pages *PageStore, staleness *StalenessMonitor, stats *Statistics, now func() time.Time) *Router {
	if now == nil {
		now = time.Now
	}
	return &Router{
		reg:            reg,
		pages:          pages,
		staleness:      staleness,
		stats:          stats,
		now:            now,
		mismatchLogged: make(map[uint16]bool),
	}
}

// Route applies one frame. It returns false when the frame was ignored:
// remote requests, extended frames and unknown identifiers have no effect.
//
// A frame whose length differs from the declared length is copied up to
// the shorter of the two. Bytes of the region beyond a short frame keep
// their previous value.
func (r *Router) Route(f Frame) bool {
	if !f.IsData() {
		return false
	}
	id := uint16(f.ID)
	spec, ok := r.reg.Lookup(id)
	if !ok {
		return false
	}

	payload := f.Payload()
	if len(payload) != spec.Length {
		r.stats.LengthMismatches.Add(1)
		if !r.mismatchLogged[id] {
			r.mismatchLogged[id] = true
			log.Printf("can 0x%03X (%s): received %d bytes, expected %d", id, spec.Name, len(payload), spec.Length)
		}
		if len(payload) > spec.Length {
			payload = payload[:spec.Length]
		}
	}

	if err := r.pages.Write(spec.Page, spec.Offset, payload, r.now()); err != nil {
		// unreachable with a validated registry
		log.Printf("can 0x%03X (%s): %v", id, spec.Name, err)
		return false
	}
	r.staleness.Reset(spec.Source)
	r.stats.FramesRouted.Add(1)
	return true
}
