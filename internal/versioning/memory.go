package versioning

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ghsales/discount-engine/internal/domain"
)

// MemoryStore is an in-process Store. Transactions copy the state, run
// against the copy and swap it in on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type memoryState struct {
	nextID      int64
	nextNumber  int
	versions    map[int64]domain.Version
	rows        map[int64]map[domain.RateKey]domain.RateRow
	annotations map[int64]map[string]string
	settings    *domain.CalculatorSettings
}

// NewMemoryStore returns an empty store seeded with default calculator settings.
func NewMemoryStore() *MemoryStore {
	settings := domain.DefaultCalculatorSettings()
	return &MemoryStore{
		state: &memoryState{
			nextID:      1,
			nextNumber:  1,
			versions:    map[int64]domain.Version{},
			rows:        map[int64]map[domain.RateKey]domain.RateRow{},
			annotations: map[int64]map[string]string{},
			settings:    &settings,
		},
		now: time.Now,
	}
}

// WithTx implements Store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(&memoryTx{state: working, now: m.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *MemoryStore) view(fn func(tx *memoryTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryTx{state: m.state, now: m.now})
}

// CreateVersion implements Store.
func (m *MemoryStore) CreateVersion(ctx context.Context, label string) (*domain.Version, error) {
	var out *domain.Version
	err := m.WithTx(ctx, func(tx Store) error {
		v, err := tx.CreateVersion(ctx, label)
		out = v
		return err
	})
	return out, err
}

// GetVersion implements Store.
func (m *MemoryStore) GetVersion(ctx context.Context, id int64) (*domain.Version, error) {
	var out *domain.Version
	err := m.view(func(tx *memoryTx) error {
		v, err := tx.GetVersion(ctx, id)
		out = v
		return err
	})
	return out, err
}

// ActiveVersion implements Store.
func (m *MemoryStore) ActiveVersion(ctx context.Context) (*domain.Version, error) {
	var out *domain.Version
	err := m.view(func(tx *memoryTx) error {
		v, err := tx.ActiveVersion(ctx)
		out = v
		return err
	})
	return out, err
}

// ListVersions implements Store.
func (m *MemoryStore) ListVersions(ctx context.Context) ([]domain.Version, error) {
	var out []domain.Version
	err := m.view(func(tx *memoryTx) error {
		v, err := tx.ListVersions(ctx)
		out = v
		return err
	})
	return out, err
}

// UpdateVersion implements Store.
func (m *MemoryStore) UpdateVersion(ctx context.Context, v domain.Version) error {
	return m.WithTx(ctx, func(tx Store) error { return tx.UpdateVersion(ctx, v) })
}

// DeleteVersion implements Store.
func (m *MemoryStore) DeleteVersion(ctx context.Context, id int64) error {
	return m.WithTx(ctx, func(tx Store) error { return tx.DeleteVersion(ctx, id) })
}

// Rows implements Store.
func (m *MemoryStore) Rows(ctx context.Context, versionID int64) ([]domain.RateRow, error) {
	var out []domain.RateRow
	err := m.view(func(tx *memoryTx) error {
		rows, err := tx.Rows(ctx, versionID)
		out = rows
		return err
	})
	return out, err
}

// PutRows implements Store.
func (m *MemoryStore) PutRows(ctx context.Context, versionID int64, rows []domain.RateRow) error {
	return m.WithTx(ctx, func(tx Store) error { return tx.PutRows(ctx, versionID, rows) })
}

// Annotations implements Store.
func (m *MemoryStore) Annotations(ctx context.Context, versionID int64) ([]domain.ProjectAnnotation, error) {
	var out []domain.ProjectAnnotation
	err := m.view(func(tx *memoryTx) error {
		a, err := tx.Annotations(ctx, versionID)
		out = a
		return err
	})
	return out, err
}

// PutAnnotation implements Store.
func (m *MemoryStore) PutAnnotation(ctx context.Context, a domain.ProjectAnnotation) error {
	return m.WithTx(ctx, func(tx Store) error { return tx.PutAnnotation(ctx, a) })
}

// Settings implements installment.SettingsStore.
func (m *MemoryStore) Settings(ctx context.Context) (*domain.CalculatorSettings, error) {
	var out *domain.CalculatorSettings
	err := m.view(func(tx *memoryTx) error {
		s, err := tx.Settings(ctx)
		out = s
		return err
	})
	return out, err
}

// SaveSettings implements installment.SettingsStore.
func (m *MemoryStore) SaveSettings(ctx context.Context, s domain.CalculatorSettings) error {
	return m.WithTx(ctx, func(tx Store) error { return tx.SaveSettings(ctx, s) })
}

// ClearSettings removes the settings record. Used to exercise the missing
// singleton path.
func (m *MemoryStore) ClearSettings() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.settings = nil
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		nextID:      s.nextID,
		nextNumber:  s.nextNumber,
		versions:    make(map[int64]domain.Version, len(s.versions)),
		rows:        make(map[int64]map[domain.RateKey]domain.RateRow, len(s.rows)),
		annotations: make(map[int64]map[string]string, len(s.annotations)),
	}
	for id, v := range s.versions {
		out.versions[id] = v.Clone()
	}
	for id, rows := range s.rows {
		copied := make(map[domain.RateKey]domain.RateRow, len(rows))
		for k, r := range rows {
			copied[k] = r.Clone()
		}
		out.rows[id] = copied
	}
	for id, notes := range s.annotations {
		copied := make(map[string]string, len(notes))
		for k, v := range notes {
			copied[k] = v
		}
		out.annotations[id] = copied
	}
	if s.settings != nil {
		settings := s.settings.Clone()
		out.settings = &settings
	}
	return out
}

// memoryTx operates on a state the caller holds exclusively.
type memoryTx struct {
	state *memoryState
	now   func() time.Time
}

func (t *memoryTx) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memoryTx) CreateVersion(ctx context.Context, label string) (*domain.Version, error) {
	v := domain.Version{
		ID:        t.state.nextID,
		Number:    t.state.nextNumber,
		Label:     label,
		CreatedAt: t.now().UTC(),
	}
	t.state.nextID++
	t.state.nextNumber++
	t.state.versions[v.ID] = v
	out := v.Clone()
	return &out, nil
}

func (t *memoryTx) GetVersion(ctx context.Context, id int64) (*domain.Version, error) {
	v, ok := t.state.versions[id]
	if !ok {
		return nil, domain.NotFound("versioning.GetVersion", "version", strconv.FormatInt(id, 10))
	}
	out := v.Clone()
	return &out, nil
}

func (t *memoryTx) ActiveVersion(ctx context.Context) (*domain.Version, error) {
	for _, v := range t.state.versions {
		if v.Active {
			out := v.Clone()
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) ListVersions(ctx context.Context) ([]domain.Version, error) {
	out := make([]domain.Version, 0, len(t.state.versions))
	for _, v := range t.state.versions {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (t *memoryTx) UpdateVersion(ctx context.Context, v domain.Version) error {
	if _, ok := t.state.versions[v.ID]; !ok {
		return domain.NotFound("versioning.UpdateVersion", "version", strconv.FormatInt(v.ID, 10))
	}
	if v.Active {
		for id, other := range t.state.versions {
			if id != v.ID && other.Active {
				return domain.Internal(
					fmt.Errorf("version %d is still active", id),
					"versioning.UpdateVersion", "only one version may be active",
				)
			}
		}
	}
	t.state.versions[v.ID] = v.Clone()
	return nil
}

func (t *memoryTx) DeleteVersion(ctx context.Context, id int64) error {
	if _, ok := t.state.versions[id]; !ok {
		return domain.NotFound("versioning.DeleteVersion", "version", strconv.FormatInt(id, 10))
	}
	delete(t.state.versions, id)
	delete(t.state.rows, id)
	delete(t.state.annotations, id)
	return nil
}

func (t *memoryTx) Rows(ctx context.Context, versionID int64) ([]domain.RateRow, error) {
	rows := t.state.rows[versionID]
	out := make([]domain.RateRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}
	SortRows(out)
	return out, nil
}

func (t *memoryTx) PutRows(ctx context.Context, versionID int64, rows []domain.RateRow) error {
	if _, ok := t.state.versions[versionID]; !ok {
		return domain.NotFound("versioning.PutRows", "version", strconv.FormatInt(versionID, 10))
	}
	table := t.state.rows[versionID]
	if table == nil {
		table = map[domain.RateKey]domain.RateRow{}
		t.state.rows[versionID] = table
	}
	for _, r := range rows {
		r = r.Clone()
		r.VersionID = versionID
		table[r.Key] = r
	}
	return nil
}

func (t *memoryTx) Annotations(ctx context.Context, versionID int64) ([]domain.ProjectAnnotation, error) {
	notes := t.state.annotations[versionID]
	out := make([]domain.ProjectAnnotation, 0, len(notes))
	for project, comment := range notes {
		out = append(out, domain.ProjectAnnotation{VersionID: versionID, Project: project, Comment: comment})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}

func (t *memoryTx) PutAnnotation(ctx context.Context, a domain.ProjectAnnotation) error {
	if _, ok := t.state.versions[a.VersionID]; !ok {
		return domain.NotFound("versioning.PutAnnotation", "version", strconv.FormatInt(a.VersionID, 10))
	}
	notes := t.state.annotations[a.VersionID]
	if a.Comment == "" {
		delete(notes, a.Project)
		return nil
	}
	if notes == nil {
		notes = map[string]string{}
		t.state.annotations[a.VersionID] = notes
	}
	notes[a.Project] = a.Comment
	return nil
}

func (t *memoryTx) Settings(ctx context.Context) (*domain.CalculatorSettings, error) {
	if t.state.settings == nil {
		return nil, domain.ErrSettingsNotFound
	}
	s := t.state.settings.Clone()
	return &s, nil
}

func (t *memoryTx) SaveSettings(ctx context.Context, s domain.CalculatorSettings) error {
	copied := s.Clone()
	t.state.settings = &copied
	return nil
}

// SortRows orders rows by project, category and payment method.
func SortRows(rows []domain.RateRow) {
	sort.Slice(rows, func(i, j int) bool {
		return lessKey(rows[i].Key, rows[j].Key)
	})
}

func lessKey(a, b domain.RateKey) bool {
	if a.Project != b.Project {
		return a.Project < b.Project
	}
	if a.Category != b.Category {
		return a.Category < b.Category
	}
	return a.Method < b.Method
}
