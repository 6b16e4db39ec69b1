// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"fmt"
	"sort"
)

// PageID identifies one page buffer in the Page Store
type PageID uint8

// PageSpec declares a page buffer and its fixed capacity
type PageSpec struct {
	ID   PageID
	Name string
	Size int
}

// CANPacketSpec maps one CAN identifier onto a region of a page
type CANPacketSpec struct {
	Name   string
	ID     uint16
	Length int
	Page   PageID
	Offset int
	Source Source
}

// End returns the first page byte past the packet's region
func (s CANPacketSpec) End() int {
	return s.Offset + s.Length
}

// TelemetryPacketSpec declares one radio packet and the pages it carries.
// Length is the sum of the page sizes and is filled in by NewRegistry.
type TelemetryPacketSpec struct {
	Name   string
	ID     uint8
	Pages  []PageID
	Length int
}

// PollSpec is one entry of the poll rotation. The relay sends a remote
// request to Request; the polled node answers on Response.
type PollSpec struct {
	Name     string
	Request  uint16
	Response uint16
}

// Region is a byte range of one page
type Region struct {
	Page   PageID
	Offset int
	Length int
}

// Registry holds the static packet tables. It is immutable after NewRegistry.
type Registry struct {
	pages     []PageSpec
	pageIndex map[PageID]int
	can       map[uint16]CANPacketSpec
	canOrder  []CANPacketSpec
	telemetry []TelemetryPacketSpec
	telemByID map[uint8]int
	polls     []PollSpec
	regions   map[Source][]Region
	sources   []Source
}

// NewRegistry validates the tables and builds a lookup registry.
// Table order is preserved: it is the transmission order of both rotations.
func NewRegistry(pages []PageSpec, can []CANPacketSpec, telemetry []TelemetryPacketSpec, polls []PollSpec) (*Registry, error) {
	r := &Registry{
		pageIndex: make(map[PageID]int, len(pages)),
		can:       make(map[uint16]CANPacketSpec, len(can)),
		telemByID: make(map[uint8]int, len(telemetry)),
		regions:   make(map[Source][]Region),
	}

	for _, p := range pages {
		if _, exists := r.pageIndex[p.ID]; exists {
			return nil, fmt.Errorf("page %q: duplicate page id %d", p.Name, p.ID)
		}
		if p.Size < 1 || p.Size > MaxPageSize {
			return nil, fmt.Errorf("page %q: size %d out of range 1..%d", p.Name, p.Size, MaxPageSize)
		}
		r.pageIndex[p.ID] = len(r.pages)
		r.pages = append(r.pages, p)
	}

	type span struct {
		start, end int
		name       string
	}
	spans := make(map[PageID][]span)

	for _, c := range can {
		if c.ID > MaxStandardID {
			return nil, fmt.Errorf("can packet %q: id 0x%X exceeds 11 bits", c.Name, c.ID)
		}
		if IsReservedID(c.ID) {
			return nil, fmt.Errorf("can packet %q: id 0x%03X is in the reserved range 0x%03X-0x%03X", c.Name, c.ID, ReservedIDStart, ReservedIDEnd)
		}
		if _, exists := r.can[c.ID]; exists {
			return nil, fmt.Errorf("can packet %q: duplicate id 0x%03X", c.Name, c.ID)
		}
		if c.Length < 0 || c.Length > MaxFrameLength {
			return nil, fmt.Errorf("can packet %q: length %d out of range 0..%d", c.Name, c.Length, MaxFrameLength)
		}
		if !c.Source.Valid() {
			return nil, fmt.Errorf("can packet %q: unknown source %d", c.Name, c.Source)
		}
		idx, ok := r.pageIndex[c.Page]
		if !ok {
			return nil, fmt.Errorf("can packet %q: unknown page %d", c.Name, c.Page)
		}
		page := r.pages[idx]
		if c.Offset < 0 || c.End() > page.Size {
			return nil, fmt.Errorf("can packet %q: region %d-%d exceeds page %q size %d", c.Name, c.Offset, c.End(), page.Name, page.Size)
		}

		// regions inside one page must not overlap (touching is fine)
		for _, s := range spans[c.Page] {
			if c.Offset < s.end && s.start < c.End() {
				return nil, fmt.Errorf("can packet %q: region %d-%d of page %q overlaps %q (%d-%d)",
					c.Name, c.Offset, c.End(), page.Name, s.name, s.start, s.end)
			}
		}
		spans[c.Page] = append(spans[c.Page], span{start: c.Offset, end: c.End(), name: c.Name})

		r.can[c.ID] = c
		r.canOrder = append(r.canOrder, c)
		r.regions[c.Source] = append(r.regions[c.Source], Region{Page: c.Page, Offset: c.Offset, Length: c.Length})
	}

	for _, t := range telemetry {
		if _, exists := r.telemByID[t.ID]; exists {
			return nil, fmt.Errorf("telemetry packet %q: duplicate id 0x%02X", t.Name, t.ID)
		}
		if len(t.Pages) == 0 {
			return nil, fmt.Errorf("telemetry packet %q: no source pages", t.Name)
		}
		length := 0
		for _, pid := range t.Pages {
			idx, ok := r.pageIndex[pid]
			if !ok {
				return nil, fmt.Errorf("telemetry packet %q: unknown page %d", t.Name, pid)
			}
			length += r.pages[idx].Size
		}
		if length > MaxTelemetryLength {
			return nil, fmt.Errorf("telemetry packet %q: length %d exceeds %d", t.Name, length, MaxTelemetryLength)
		}
		t.Pages = append([]PageID(nil), t.Pages...)
		t.Length = length
		r.telemByID[t.ID] = len(r.telemetry)
		r.telemetry = append(r.telemetry, t)
	}

	for _, p := range polls {
		if p.Request > MaxStandardID || IsReservedID(p.Request) {
			return nil, fmt.Errorf("poll %q: request id 0x%03X is not pollable", p.Name, p.Request)
		}
		if _, ok := r.can[p.Response]; !ok {
			return nil, fmt.Errorf("poll %q: response id 0x%03X is not a registered can packet", p.Name, p.Response)
		}
		r.polls = append(r.polls, p)
	}

	for src := range r.regions {
		r.sources = append(r.sources, src)
	}
	sort.Slice(r.sources, func(i, j int) bool { return r.sources[i] < r.sources[j] })

	return r, nil
}

// Lookup returns the spec for a CAN identifier. Unknown identifiers
// report false and are meant to be ignored.
func (r *Registry) Lookup(id uint16) (CANPacketSpec, bool) {
	spec, ok := r.can[id]
	return spec, ok
}

// CANPackets returns the CAN table in declaration order
func (r *Registry) CANPackets() []CANPacketSpec {
	return append([]CANPacketSpec(nil), r.canOrder...)
}

// Telemetry returns the telemetry spec for a radio packet identifier
func (r *Registry) Telemetry(id uint8) (TelemetryPacketSpec, bool) {
	idx, ok := r.telemByID[id]
	if !ok {
		return TelemetryPacketSpec{}, false
	}
	return r.telemetry[idx], true
}

// TelemetryAt returns the i-th entry of the send rotation
func (r *Registry) TelemetryAt(i int) TelemetryPacketSpec {
	return r.telemetry[i]
}

// TelemetryCount returns the length of the send rotation
func (r *Registry) TelemetryCount() int {
	return len(r.telemetry)
}

// PollAt returns the i-th entry of the poll rotation
func (r *Registry) PollAt(i int) PollSpec {
	return r.polls[i]
}

// PollCount returns the length of the poll rotation
func (r *Registry) PollCount() int {
	return len(r.polls)
}

// Pages returns the page declarations
func (r *Registry) Pages() []PageSpec {
	return append([]PageSpec(nil), r.pages...)
}

// Page returns one page declaration
func (r *Registry) Page(id PageID) (PageSpec, bool) {
	idx, ok := r.pageIndex[id]
	if !ok {
		return PageSpec{}, false
	}
	return r.pages[idx], true
}

// Regions returns every page region written by frames of a source
func (r *Registry) Regions(src Source) []Region {
	return append([]Region(nil), r.regions[src]...)
}

// Sources returns the sources that own at least one CAN packet, in source order
func (r *Registry) Sources() []Source {
	return append([]Source(nil), r.sources...)
}

// PolledSources returns the sources whose data arrives only after a poll
func (r *Registry) PolledSources() []Source {
	seen := make(map[Source]bool)
	var out []Source
	for _, p := range r.polls {
		spec := r.can[p.Response]
		if !seen[spec.Source] {
			seen[spec.Source] = true
			out = append(out, spec.Source)
		}
	}
	return out
}

// IsReservedID reports whether a CAN identifier lies in the reserved
// bootloader block that must never be assigned or polled
func IsReservedID(id uint16) bool {
	return id >= ReservedIDStart && id <= ReservedIDEnd
}
