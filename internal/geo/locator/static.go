package locator

import (
	"context"
	"net/netip"
	"sync"

	"signinguard/internal/geo"
)

// Static resolves from a fixed table. Used for local development and tests.
type Static struct {
	mu      sync.RWMutex
	entries map[netip.Addr]*geo.Location
	lookups int
}

func NewStatic() *Static {
	return &Static{entries: make(map[netip.Addr]*geo.Location)}
}

// Set registers the location for addr, replacing any previous entry.
func (s *Static) Set(addr netip.Addr, loc *geo.Location) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[addr.Unmap()] = loc
	return s
}

func (s *Static) Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	loc, ok := s.entries[addr.Unmap()]
	if !ok || loc == nil {
		return nil, nil
	}
	cp := *loc
	return &cp, nil
}

// Lookups returns how many times Locate ran.
func (s *Static) Lookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}
