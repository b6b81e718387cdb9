// Package versioning manages discount rate versions: drafts, activation,
// deletion and the diff sent out when the active version changes.
package versioning

import (
	"context"

	"github.com/ghsales/discount-engine/internal/domain"
)

// Store persists versions, their rows and annotations, and the calculator
// settings singleton.
//
// Methods that look up a single record return a domain ENOTFOUND error when
// it does not exist. ActiveVersion returns nil, nil when nothing is active.
type Store interface {
	// WithTx runs fn against a transactional view of the store. Changes made
	// through the view are committed when fn returns nil and discarded
	// otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	CreateVersion(ctx context.Context, label string) (*domain.Version, error)
	GetVersion(ctx context.Context, id int64) (*domain.Version, error)
	ActiveVersion(ctx context.Context) (*domain.Version, error)
	ListVersions(ctx context.Context) ([]domain.Version, error)
	UpdateVersion(ctx context.Context, v domain.Version) error
	DeleteVersion(ctx context.Context, id int64) error

	Rows(ctx context.Context, versionID int64) ([]domain.RateRow, error)
	PutRows(ctx context.Context, versionID int64, rows []domain.RateRow) error

	Annotations(ctx context.Context, versionID int64) ([]domain.ProjectAnnotation, error)
	PutAnnotation(ctx context.Context, a domain.ProjectAnnotation) error

	SettingsStore
}

// SettingsStore reads and writes the calculator settings singleton.
type SettingsStore interface {
	Settings(ctx context.Context) (*domain.CalculatorSettings, error)
	SaveSettings(ctx context.Context, s domain.CalculatorSettings) error
}

// Snapshot is everything a version owns.
type Snapshot struct {
	Version     domain.Version
	Rows        []domain.RateRow
	Annotations []domain.ProjectAnnotation
}

func loadSnapshot(ctx context.Context, s Store, v domain.Version) (Snapshot, error) {
	rows, err := s.Rows(ctx, v.ID)
	if err != nil {
		return Snapshot{}, err
	}
	annotations, err := s.Annotations(ctx, v.ID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Version: v, Rows: rows, Annotations: annotations}, nil
}
