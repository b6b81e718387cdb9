// Package inventory reads sellable units from the inventory owned by the
// sales system.
package inventory

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/ghsales/discount-engine/internal/domain"
)

// Reader supplies unit price, area and status. GetUnit returns a domain
// ENOTFOUND error for unknown ids.
type Reader interface {
	GetUnit(ctx context.Context, id int64) (*domain.Unit, error)
	ListCandidates(ctx context.Context, filter Filter) ([]domain.Unit, error)
}

// Filter narrows ListCandidates. Zero fields do not filter.
type Filter struct {
	Category domain.Category
	Project  string
	Statuses []string
	// MinPrice excludes units priced at or below it.
	MinPrice float64
}

// Match reports whether the unit passes the filter.
func (f Filter) Match(u domain.Unit) bool {
	if f.Category != 0 && u.Category != f.Category {
		return false
	}
	if f.Project != "" && u.Project != f.Project {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, u.Status) {
		return false
	}
	return u.Price > f.MinPrice
}

// MemoryReader serves units from memory.
type MemoryReader struct {
	mu    sync.RWMutex
	units map[int64]domain.Unit
}

var _ Reader = (*MemoryReader)(nil)

// NewMemoryReader indexes the given units by id.
func NewMemoryReader(units ...domain.Unit) *MemoryReader {
	r := &MemoryReader{units: make(map[int64]domain.Unit, len(units))}
	for _, u := range units {
		r.units[u.ID] = u
	}
	return r
}

// Put adds or replaces a unit.
func (r *MemoryReader) Put(u domain.Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[u.ID] = u
}

func (r *MemoryReader) GetUnit(ctx context.Context, id int64) (*domain.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[id]
	if !ok {
		return nil, domain.NotFound("inventory.GetUnit", "unit", strconv.FormatInt(id, 10))
	}
	return &u, nil
}

func (r *MemoryReader) ListCandidates(ctx context.Context, filter Filter) ([]domain.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Unit
	for _, u := range r.units {
		if filter.Match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
