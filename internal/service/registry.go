package service

import (
	"net"
	"sync"

	"github.com/sdnlb/vip-switch/internal/domain"
)

// ClientRegistry is the incrementally built mapping from client address to
// client identity and backend assignment. A client address appears at most
// once; records are never removed.
//
// The registry keeps a map keyed by address for lookups plus an
// insertion-order slice, so the "address maps to a unique position"
// invariant is structural rather than convention.
type ClientRegistry struct {
	mu    sync.RWMutex
	pool  *ServerPool
	byIP  map[string]*domain.ClientRecord
	order []*domain.ClientRecord
}

// NewClientRegistry creates an empty registry drawing assignments from pool
func NewClientRegistry(pool *ServerPool) *ClientRegistry {
	return &ClientRegistry{
		pool: pool,
		byIP: make(map[string]*domain.ClientRecord),
	}
}

// LookupByAddress returns the record for the given client address, if any.
// Pure query, no mutation.
func (r *ClientRegistry) LookupByAddress(ip net.IP) (*domain.ClientRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byIP[ip.To4().String()]
	return rec, ok
}

// RegisterIfAbsent returns the existing record for the given address, or
// registers a new one assigned to the pool's next backend. The returned
// bool reports whether a new record was created. Registration and backend
// assignment happen under one lock, so two back-to-back requests from the
// same unseen address cannot both advance the cursor.
func (r *ClientRegistry) RegisterIfAbsent(ip net.IP, mac net.HardwareAddr) (*domain.ClientRecord, bool) {
	key := ip.To4().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.byIP[key]; ok {
		return rec, false
	}

	_, index := r.pool.Next()
	rec := &domain.ClientRecord{
		IP:           ip.To4(),
		MAC:          mac,
		BackendIndex: index,
		Position:     len(r.order),
	}
	r.byIP[key] = rec
	r.order = append(r.order, rec)

	return rec, true
}

// Len returns the number of registered clients
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns the registered clients in insertion order
func (r *ClientRegistry) Snapshot() []domain.ClientRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ClientRecord, 0, len(r.order))
	for _, rec := range r.order {
		out = append(out, *rec)
	}
	return out
}
