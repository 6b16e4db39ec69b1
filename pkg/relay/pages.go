// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"fmt"
	"time"
)

type page struct {
	spec    PageSpec
	data    []byte
	updated time.Time
}

// PageStore holds the latest known bytes of every logical data group.
// It is owned by the main loop and is not safe for concurrent use.
type PageStore struct {
	pages map[PageID]*page
}

// NewPageStore allocates one zeroed buffer per page of the registry
func NewPageStore(reg *Registry) *PageStore {
	s := &PageStore{pages: make(map[PageID]*page)}
	for _, spec := range reg.Pages() {
		s.pages[spec.ID] = &page{spec: spec, data: make([]byte, spec.Size)}
	}
	return s
}

func (s *PageStore) region(id PageID, offset, length int) (*page, error) {
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("unknown page %d", id)
	}
	if offset < 0 || length < 0 || offset+length > len(p.data) {
		return nil, fmt.Errorf("region %d+%d exceeds page %q size %d", offset, length, p.spec.Name, len(p.data))
	}
	return p, nil
}

// Write copies data into a page at offset and stamps the page
func (s *PageStore) Write(id PageID, offset int, data []byte, at time.Time) error {
	p, err := s.region(id, offset, len(data))
	if err != nil {
		return err
	}
	copy(p.data[offset:], data)
	p.updated = at
	return nil
}

// Zero clears a byte range of a page. The timestamp is left alone.
func (s *PageStore) Zero(id PageID, offset, length int) error {
	p, err := s.region(id, offset, length)
	if err != nil {
		return err
	}
	clear(p.data[offset : offset+length])
	return nil
}

// Snapshot returns a copy of a page's bytes, nil for unknown pages
func (s *PageStore) Snapshot(id PageID) []byte {
	p, ok := s.pages[id]
	if !ok {
		return nil
	}
	return append([]byte(nil), p.data...)
}

// AppendPage appends a page's bytes to dst
func (s *PageStore) AppendPage(dst []byte, id PageID) []byte {
	p, ok := s.pages[id]
	if !ok {
		return dst
	}
	return append(dst, p.data...)
}

// Updated returns the time of the last write to a page
func (s *PageStore) Updated(id PageID) time.Time {
	if p, ok := s.pages[id]; ok {
		return p.updated
	}
	return time.Time{}
}

// IsZero reports whether every byte of a page is zero
func (s *PageStore) IsZero(id PageID) bool {
	p, ok := s.pages[id]
	if !ok {
		return true
	}
	for _, b := range p.data {
		if b != 0 {
			return false
		}
	}
	return true
}
