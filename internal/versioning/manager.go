package versioning

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/mathutil"
	"go.uber.org/zap"
)

// Manager drives the version lifecycle: Draft -> Active -> Archived. A
// version never returns to Draft once it has been active.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager creates a lifecycle manager over store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// CreateDraft allocates the next version number and persists an empty draft.
func (m *Manager) CreateDraft(ctx context.Context, label string) (*domain.Version, error) {
	v, err := m.store.CreateVersion(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("creating draft: %w", err)
	}
	m.logger.Info("draft created",
		zap.String("op", "versioning.CreateDraft"),
		zap.Int64("version_id", v.ID),
		zap.Int("number", v.Number),
	)
	return v, nil
}

// CloneForEditing creates a draft holding a deep copy of the active version's
// rows and annotations.
func (m *Manager) CloneForEditing(ctx context.Context, label string) (*domain.Version, error) {
	const op = "versioning.CloneForEditing"

	var draft *domain.Version
	var copied int
	err := m.store.WithTx(ctx, func(tx Store) error {
		active, err := tx.ActiveVersion(ctx)
		if err != nil {
			return err
		}
		if active == nil {
			return &domain.Error{Code: domain.ESTATE, Op: op, Message: domain.ErrNoActiveVersion.Message}
		}

		snap, err := loadSnapshot(ctx, tx, *active)
		if err != nil {
			return err
		}

		draft, err = tx.CreateVersion(ctx, label)
		if err != nil {
			return err
		}
		if err := tx.PutRows(ctx, draft.ID, domain.CloneRows(snap.Rows)); err != nil {
			return err
		}
		for _, a := range snap.Annotations {
			a.VersionID = draft.ID
			if err := tx.PutAnnotation(ctx, a); err != nil {
				return err
			}
		}
		copied = len(snap.Rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("draft cloned from active version",
		zap.String("op", op),
		zap.Int64("version_id", draft.ID),
		zap.Int("rows", copied),
	)
	return draft, nil
}

// UpdateDraftRates applies rate and cutoff edits to a draft and records them
// in its change log. It returns the number of values that actually changed;
// edits within constants.RateEpsilon of the stored value are not counted.
// Edits addressing a missing row create it with zero rates.
func (m *Manager) UpdateDraftRates(ctx context.Context, versionID int64, update domain.DraftUpdate) (int, error) {
	const op = "versioning.UpdateDraftRates"

	modified := 0
	err := m.store.WithTx(ctx, func(tx Store) error {
		v, err := editableVersion(ctx, tx, versionID, op)
		if err != nil {
			return err
		}

		rows, err := tx.Rows(ctx, versionID)
		if err != nil {
			return err
		}
		table := domain.NewRateTable(rows)
		changed := map[domain.RateKey]bool{}

		log := domain.ChangeLog{}
		if v.ChangeLog != nil {
			log = v.ChangeLog.Clone()
		}

		for i, edit := range update.Edits {
			if err := validateKey(edit.Key); err != nil {
				return domain.Errorf(domain.EINVALID, op, "edit %d: %v", i+1, err)
			}
			if _, err := domain.ParseRateName(string(edit.Field)); err != nil {
				return domain.Errorf(domain.EINVALID, op, "edit %d: %v", i+1, err)
			}
			if edit.Value < 0 || edit.Value > 1 {
				return domain.Errorf(domain.EINVALID, op, "edit %d: rate %s must be within [0,1], got %v", i+1, edit.Field, edit.Value)
			}

			row, ok := table[edit.Key]
			if !ok {
				row = domain.RateRow{VersionID: versionID, Key: edit.Key}
			}
			before := row.Rates.Get(edit.Field)
			if mathutil.SameRate(before, edit.Value) {
				if !ok {
					table[edit.Key] = row
					changed[edit.Key] = true
				}
				continue
			}
			if err := row.Rates.Set(edit.Field, edit.Value); err != nil {
				return domain.Errorf(domain.EINVALID, op, "edit %d: %v", i+1, err)
			}
			table[edit.Key] = row
			changed[edit.Key] = true
			modified++
			log.Edits = append(log.Edits, domain.AppliedEdit{Key: edit.Key, Field: edit.Field, Before: before, After: edit.Value})
		}

		for i, edit := range update.Cutoffs {
			if err := validateKey(edit.Key); err != nil {
				return domain.Errorf(domain.EINVALID, op, "cutoff edit %d: %v", i+1, err)
			}
			row, ok := table[edit.Key]
			if !ok {
				row = domain.RateRow{VersionID: versionID, Key: edit.Key}
			}
			if sameCutoff(row, edit) {
				continue
			}
			row.Cutoff = nil
			if edit.Cutoff != nil {
				d := *edit.Cutoff
				row.Cutoff = &d
			}
			table[edit.Key] = row
			changed[edit.Key] = true
			modified++
			log.Cutoffs = append(log.Cutoffs, domain.CutoffEdit{Key: edit.Key, Cutoff: row.Clone().Cutoff})
		}

		if len(update.Notes) > 0 {
			if log.Notes == nil {
				log.Notes = map[string]string{}
			}
			for project, note := range update.Notes {
				log.Notes[project] = note
			}
		}

		toWrite := make([]domain.RateRow, 0, len(changed))
		for key := range changed {
			toWrite = append(toWrite, table[key])
		}
		if err := tx.PutRows(ctx, versionID, toWrite); err != nil {
			return err
		}

		v.ChangeLog = &log
		return tx.UpdateVersion(ctx, *v)
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info("draft rates updated",
		zap.String("op", op),
		zap.Int64("version_id", versionID),
		zap.Int("requested", len(update.Edits)+len(update.Cutoffs)),
		zap.Int("modified", modified),
	)
	return modified, nil
}

// ImportRows upserts rows into a draft in one transaction. Either every row
// is written or none is.
func (m *Manager) ImportRows(ctx context.Context, versionID int64, rows []domain.RateRow) error {
	const op = "versioning.ImportRows"

	for _, r := range rows {
		if err := validateKey(r.Key); err != nil {
			return domain.Errorf(domain.EINVALID, op, "%s: %v", r.Key, err)
		}
		if err := r.Rates.Validate(); err != nil {
			return domain.Errorf(domain.EINVALID, op, "%s: %v", r.Key, err)
		}
	}

	err := m.store.WithTx(ctx, func(tx Store) error {
		if _, err := editableVersion(ctx, tx, versionID, op); err != nil {
			return err
		}
		return tx.PutRows(ctx, versionID, rows)
	})
	if err != nil {
		return err
	}

	m.logger.Info("rows imported into draft",
		zap.String("op", op),
		zap.Int64("version_id", versionID),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// SetAnnotation sets the comment of a project within a draft. An empty
// comment removes it.
func (m *Manager) SetAnnotation(ctx context.Context, versionID int64, project, comment string) error {
	const op = "versioning.SetAnnotation"
	if project == "" {
		return domain.Invalid(op, "project is required")
	}
	return m.store.WithTx(ctx, func(tx Store) error {
		if _, err := editableVersion(ctx, tx, versionID, op); err != nil {
			return err
		}
		return tx.PutAnnotation(ctx, domain.ProjectAnnotation{VersionID: versionID, Project: project, Comment: comment})
	})
}

// Activate makes the version the single active one and returns the message to
// send about it. Activating the already-active version is a no-op returning
// nil. The previous version is deactivated in the same transaction.
func (m *Manager) Activate(ctx context.Context, versionID int64, label string) (*domain.Notification, error) {
	const op = "versioning.Activate"

	var (
		target   domain.Version
		previous *domain.Version
		diff     domain.VersionDiff
		rowCount int
		noop     bool
	)

	err := m.store.WithTx(ctx, func(tx Store) error {
		v, err := tx.GetVersion(ctx, versionID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return domain.Errorf(domain.ESTATE, op, "version %d does not exist", versionID)
			}
			return err
		}
		if v.Active {
			noop = true
			return nil
		}

		incoming, err := loadSnapshot(ctx, tx, *v)
		if err != nil {
			return err
		}
		rowCount = len(incoming.Rows)

		previous, err = tx.ActiveVersion(ctx)
		if err != nil {
			return err
		}
		if previous != nil {
			outgoing, err := loadSnapshot(ctx, tx, *previous)
			if err != nil {
				return err
			}
			diff = Diff(outgoing, incoming)

			deactivated := *previous
			deactivated.Active = false
			if err := tx.UpdateVersion(ctx, deactivated); err != nil {
				return err
			}
		} else {
			diff = Diff(Snapshot{}, incoming)
		}

		v.Active = true
		v.EverActivated = true
		if label != "" {
			v.Label = label
		}
		v.Diff = &diff
		target = *v
		return tx.UpdateVersion(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	if noop {
		m.logger.Debug("version already active",
			zap.String("op", op),
			zap.Int64("version_id", versionID),
		)
		return nil, nil
	}

	var notes map[string]string
	if target.ChangeLog != nil {
		notes = target.ChangeLog.Notes
	}
	n, err := RenderNotification(target, previous, diff, rowCount, notes)
	if err != nil {
		return nil, domain.Internal(err, op, "version activated but notification could not be rendered")
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.Int64("version_id", target.ID),
		zap.Int("added", len(diff.Added)),
		zap.Int("removed", len(diff.Removed)),
		zap.Int("modified", len(diff.Modified)),
	}
	if previous != nil {
		fields = append(fields, zap.Int64("previous_version_id", previous.ID))
	}
	m.logger.Info("version activated", fields...)
	return n, nil
}

// DeleteDraft deletes a version that was never activated together with its
// rows and annotations.
func (m *Manager) DeleteDraft(ctx context.Context, versionID int64) error {
	const op = "versioning.DeleteDraft"

	err := m.store.WithTx(ctx, func(tx Store) error {
		v, err := tx.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if v.EverActivated {
			return &domain.Error{Code: domain.ESTATE, Op: op, Message: domain.ErrImmutableVersion.Message}
		}
		return tx.DeleteVersion(ctx, versionID)
	})
	if err != nil {
		return err
	}

	m.logger.Info("draft deleted",
		zap.String("op", op),
		zap.Int64("version_id", versionID),
	)
	return nil
}

// ListVersions returns all versions, newest first.
func (m *Manager) ListVersions(ctx context.Context) ([]domain.Version, error) {
	return m.store.ListVersions(ctx)
}

// GetVersion returns one version.
func (m *Manager) GetVersion(ctx context.Context, versionID int64) (*domain.Version, error) {
	return m.store.GetVersion(ctx, versionID)
}

// VersionSnapshot returns a version with its stored rows and annotations.
func (m *Manager) VersionSnapshot(ctx context.Context, versionID int64) (*Snapshot, error) {
	var out Snapshot
	err := m.store.WithTx(ctx, func(tx Store) error {
		v, err := tx.GetVersion(ctx, versionID)
		if err != nil {
			return err
		}
		out, err = loadSnapshot(ctx, tx, *v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ActiveTable returns the active version and its rate table. It fails with a
// state error when nothing is active.
func (m *Manager) ActiveTable(ctx context.Context) (*domain.Version, domain.RateTable, error) {
	const op = "versioning.ActiveTable"

	v, err := m.store.ActiveVersion(ctx)
	if err != nil {
		return nil, nil, err
	}
	if v == nil {
		return nil, nil, &domain.Error{Code: domain.ESTATE, Op: op, Message: domain.ErrNoActiveVersion.Message}
	}
	rows, err := m.store.Rows(ctx, v.ID)
	if err != nil {
		return nil, nil, err
	}
	return v, domain.NewRateTable(rows), nil
}

func editableVersion(ctx context.Context, tx Store, versionID int64, op string) (*domain.Version, error) {
	v, err := tx.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !v.Editable() {
		return nil, &domain.Error{
			Code:    domain.ESTATE,
			Op:      op,
			Message: domain.ErrVersionNotEditable.Message + " (version " + strconv.FormatInt(versionID, 10) + ")",
		}
	}
	return v, nil
}

func validateKey(key domain.RateKey) error {
	if key.Project == "" {
		return fmt.Errorf("project is required")
	}
	if !key.Category.Valid() {
		return fmt.Errorf("invalid category %d", int(key.Category))
	}
	if key.Method != domain.MethodFullPayment && key.Method != domain.MethodMortgage {
		return fmt.Errorf("rates are stored for %s and %s only, got %s",
			domain.MethodFullPayment, domain.MethodMortgage, key.Method)
	}
	return nil
}

func sameCutoff(row domain.RateRow, edit domain.CutoffEdit) bool {
	switch {
	case row.Cutoff == nil && edit.Cutoff == nil:
		return true
	case row.Cutoff == nil || edit.Cutoff == nil:
		return false
	default:
		return *row.Cutoff == *edit.Cutoff
	}
}
