package keeper

import (
	"sync/atomic"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// PoolSet is the active pool list. Readers get an immutable snapshot;
// Replace swaps the whole list atomically.
type PoolSet struct {
	pools atomic.Pointer[[]domain.Pool]
}

// NewPoolSet returns an empty PoolSet.
func NewPoolSet() *PoolSet {
	s := &PoolSet{}
	empty := []domain.Pool{}
	s.pools.Store(&empty)
	return s
}

// Replace installs pools as the new set.
func (s *PoolSet) Replace(pools []domain.Pool) {
	cp := append([]domain.Pool(nil), pools...)
	s.pools.Store(&cp)
}

// List returns the current snapshot in document order. Callers must not
// modify it.
func (s *PoolSet) List() []domain.Pool {
	return *s.pools.Load()
}

// Get finds a pool by ID.
func (s *PoolSet) Get(id string) (domain.Pool, bool) {
	for _, p := range s.List() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Pool{}, false
}

// Len reports the number of pools.
func (s *PoolSet) Len() int {
	return len(s.List())
}
