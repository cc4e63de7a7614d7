package service

import (
	"github.com/sdnlb/vip-switch/internal/domain"
	"github.com/sdnlb/vip-switch/internal/errors"
)

// ServerPool is the fixed, ordered set of real servers behind the virtual
// address, plus the round-robin cursor selecting the next assignment.
//
// The pool performs no locking of its own: Next mutates the cursor and is
// only ever called from within the Controller's serialized event path.
type ServerPool struct {
	backends []domain.Backend
	cursor   int
}

// NewServerPool creates a server pool over the given ordered backend list
func NewServerPool(backends []domain.Backend) (*ServerPool, error) {
	if len(backends) == 0 {
		return nil, errors.NewNoBackendsError()
	}

	pool := make([]domain.Backend, len(backends))
	copy(pool, backends)

	return &ServerPool{backends: pool}, nil
}

// Next returns the backend at the current cursor position together with its
// pool index, then advances the cursor by one position mod pool size.
func (p *ServerPool) Next() (domain.Backend, int) {
	index := p.cursor
	p.cursor = (p.cursor + 1) % len(p.backends)
	return p.backends[index], index
}

// Backend returns the backend at the given pool index
func (p *ServerPool) Backend(index int) domain.Backend {
	return p.backends[index]
}

// Len returns the number of backends in the pool
func (p *ServerPool) Len() int {
	return len(p.backends)
}

// Cursor returns the current round-robin cursor position
func (p *ServerPool) Cursor() int {
	return p.cursor
}

// Snapshot returns a copy of the ordered backend list
func (p *ServerPool) Snapshot() []domain.Backend {
	out := make([]domain.Backend, len(p.backends))
	copy(out, p.backends)
	return out
}
