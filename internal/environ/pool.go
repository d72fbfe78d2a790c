package environ

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Pool tracks which environment schemas hold a data-plane connection lease.
// Leases are handed to the API layer while an environment is live and
// released for recycling by the reaper when the environment is deleted.
type Pool struct {
	mu     sync.Mutex
	leases map[string]*lease
	logger *slog.Logger
}

type lease struct {
	inUse      bool
	acquiredAt time.Time
	recycles   int
}

func NewPool(logger *slog.Logger) *Pool {
	return &Pool{
		leases: make(map[string]*lease),
		logger: logger,
	}
}

// Acquire marks the schema's connection lease as in use.
func (p *Pool) Acquire(schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.leases[schema]
	if !ok {
		l = &lease{}
		p.leases[schema] = l
	}
	if l.inUse {
		return fmt.Errorf("schema %s is already leased", schema)
	}
	l.inUse = true
	l.acquiredAt = time.Now()
	return nil
}

// Release returns the schema's lease. With recycle set, the lease slot is
// made available for reuse and its recycle count advances; otherwise the
// lease is discarded entirely.
func (p *Pool) Release(schema string, recycle bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.leases[schema]
	if !ok {
		return fmt.Errorf("schema %s has no lease", schema)
	}
	if !recycle {
		delete(p.leases, schema)
		return nil
	}
	l.inUse = false
	l.recycles++
	p.logger.Debug("released schema lease for recycling", "schema", schema, "recycles", l.recycles)
	return nil
}

// InUse reports whether the schema currently holds a lease.
func (p *Pool) InUse(schema string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.leases[schema]
	return ok && l.inUse
}

// Available returns the schemas with a recycled, currently unused lease.
func (p *Pool) Available() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for schema, l := range p.leases {
		if !l.inUse {
			out = append(out, schema)
		}
	}
	return out
}
