package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/versioning"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Store implements versioning.Store. A Store created by WithTx runs every
// statement on its transaction.
type Store struct {
	db     dbtx
	logger *zap.Logger
}

var _ versioning.Store = (*Store)(nil)

// NewStore wraps a pool or transaction.
func NewStore(db dbtx, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// WithTx implements versioning.Store. Nested calls run in a savepoint.
func (s *Store) WithTx(ctx context.Context, fn func(tx versioning.Store) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

const versionColumns = `id, version_number, label, is_active, was_ever_activated, created_at, changes_summary, diff`

func scanVersion(row pgx.Row) (*domain.Version, error) {
	var (
		v               domain.Version
		changes, diffJS []byte
	)
	if err := row.Scan(&v.ID, &v.Number, &v.Label, &v.Active, &v.EverActivated, &v.CreatedAt, &changes, &diffJS); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	if len(changes) > 0 {
		var cl domain.ChangeLog
		if err := json.Unmarshal(changes, &cl); err != nil {
			return nil, fmt.Errorf("version %d: invalid change log: %w", v.ID, err)
		}
		v.ChangeLog = &cl
	}
	if len(diffJS) > 0 {
		var d domain.VersionDiff
		if err := json.Unmarshal(diffJS, &d); err != nil {
			return nil, fmt.Errorf("version %d: invalid diff: %w", v.ID, err)
		}
		v.Diff = &d
	}
	return &v, nil
}

func (s *Store) CreateVersion(ctx context.Context, label string) (*domain.Version, error) {
	const op = "postgres.CreateVersion"
	row := s.db.QueryRow(ctx, `
		INSERT INTO discount_versions (version_number, label)
		SELECT COALESCE(MAX(version_number), 0) + 1, $1 FROM discount_versions
		RETURNING `+versionColumns, label)
	v, err := scanVersion(row)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create version")
	}
	return v, nil
}

func (s *Store) GetVersion(ctx context.Context, id int64) (*domain.Version, error) {
	const op = "postgres.GetVersion"
	v, err := scanVersion(s.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM discount_versions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "version", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load version")
	}
	return v, nil
}

func (s *Store) ActiveVersion(ctx context.Context) (*domain.Version, error) {
	const op = "postgres.ActiveVersion"
	v, err := scanVersion(s.db.QueryRow(ctx, `SELECT `+versionColumns+` FROM discount_versions WHERE is_active`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load active version")
	}
	return v, nil
}

func (s *Store) ListVersions(ctx context.Context) ([]domain.Version, error) {
	const op = "postgres.ListVersions"
	rows, err := s.db.Query(ctx, `SELECT `+versionColumns+` FROM discount_versions ORDER BY version_number DESC`)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list versions")
	}
	defer rows.Close()

	var out []domain.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to list versions")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list versions")
	}
	return out, nil
}

func (s *Store) UpdateVersion(ctx context.Context, v domain.Version) error {
	const op = "postgres.UpdateVersion"

	changes, err := marshalOptional(v.ChangeLog)
	if err != nil {
		return domain.Internal(err, op, "failed to encode change log")
	}
	diff, err := marshalOptional(v.Diff)
	if err != nil {
		return domain.Internal(err, op, "failed to encode diff")
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE discount_versions
		SET label = $2, is_active = $3, was_ever_activated = $4, changes_summary = $5, diff = $6
		WHERE id = $1`,
		v.ID, v.Label, v.Active, v.EverActivated, changes, diff)
	if isCode(err, codeUniqueViolation) {
		return domain.Internal(err, op, "only one version may be active")
	}
	if err != nil {
		return domain.Internal(err, op, "failed to update version")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "version", strconv.FormatInt(v.ID, 10))
	}
	return nil
}

func (s *Store) DeleteVersion(ctx context.Context, id int64) error {
	const op = "postgres.DeleteVersion"
	tag, err := s.db.Exec(ctx, `DELETE FROM discount_versions WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, op, "failed to delete version")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "version", strconv.FormatInt(id, 10))
	}
	return nil
}

const rowColumns = `version_id, complex_name, property_type, payment_method,
	mpp, rop, kd, opt, gd, holding, shareholder, action, cadastre_date`

func (s *Store) Rows(ctx context.Context, versionID int64) ([]domain.RateRow, error) {
	const op = "postgres.Rows"
	rows, err := s.db.Query(ctx, `
		SELECT `+rowColumns+` FROM discounts
		WHERE version_id = $1`, versionID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load rows")
	}
	defer rows.Close()

	var out []domain.RateRow
	for rows.Next() {
		var (
			r                domain.RateRow
			category, method string
			cutoff           *time.Time
		)
		if err := rows.Scan(&r.VersionID, &r.Key.Project, &category, &method,
			&r.Rates.MPP, &r.Rates.ROP, &r.Rates.KD, &r.Rates.OPT, &r.Rates.GD,
			&r.Rates.Holding, &r.Rates.Shareholder, &r.Rates.Action, &cutoff); err != nil {
			return nil, domain.Internal(err, op, "failed to load rows")
		}
		if r.Key.Category, err = domain.ParseCategory(category); err != nil {
			return nil, domain.Internal(err, op, "stored row has an unknown category")
		}
		if r.Key.Method, err = domain.ParsePaymentMethod(method); err != nil {
			return nil, domain.Internal(err, op, "stored row has an unknown payment method")
		}
		if cutoff != nil {
			d := civil.DateOf(*cutoff)
			r.Cutoff = &d
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to load rows")
	}
	versioning.SortRows(out)
	return out, nil
}

func (s *Store) PutRows(ctx context.Context, versionID int64, rows []domain.RateRow) error {
	const op = "postgres.PutRows"
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		var cutoff *time.Time
		if r.Cutoff != nil {
			t := r.Cutoff.In(time.UTC)
			cutoff = &t
		}
		batch.Queue(`
			INSERT INTO discounts (`+rowColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (version_id, complex_name, property_type, payment_method) DO UPDATE SET
				mpp = EXCLUDED.mpp, rop = EXCLUDED.rop, kd = EXCLUDED.kd, opt = EXCLUDED.opt,
				gd = EXCLUDED.gd, holding = EXCLUDED.holding, shareholder = EXCLUDED.shareholder,
				action = EXCLUDED.action, cadastre_date = EXCLUDED.cadastre_date`,
			versionID, r.Key.Project, r.Key.Category.String(), r.Key.Method.String(),
			r.Rates.MPP, r.Rates.ROP, r.Rates.KD, r.Rates.OPT, r.Rates.GD,
			r.Rates.Holding, r.Rates.Shareholder, r.Rates.Action, cutoff)
	}

	results := s.db.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isCode(err, codeForeignKeyViolation) {
				return domain.NotFound(op, "version", strconv.FormatInt(versionID, 10))
			}
			return domain.Internal(err, op, "failed to store rows")
		}
	}
	if err := results.Close(); err != nil {
		return domain.Internal(err, op, "failed to store rows")
	}
	return nil
}

func (s *Store) Annotations(ctx context.Context, versionID int64) ([]domain.ProjectAnnotation, error) {
	const op = "postgres.Annotations"
	rows, err := s.db.Query(ctx, `
		SELECT version_id, complex_name, comment FROM complex_comments
		WHERE version_id = $1 ORDER BY complex_name`, versionID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load annotations")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ProjectAnnotation, error) {
		var a domain.ProjectAnnotation
		err := row.Scan(&a.VersionID, &a.Project, &a.Comment)
		return a, err
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load annotations")
	}
	return out, nil
}

func (s *Store) PutAnnotation(ctx context.Context, a domain.ProjectAnnotation) error {
	const op = "postgres.PutAnnotation"

	var err error
	if a.Comment == "" {
		_, err = s.db.Exec(ctx, `DELETE FROM complex_comments WHERE version_id = $1 AND complex_name = $2`, a.VersionID, a.Project)
	} else {
		_, err = s.db.Exec(ctx, `
			INSERT INTO complex_comments (version_id, complex_name, comment) VALUES ($1, $2, $3)
			ON CONFLICT (version_id, complex_name) DO UPDATE SET comment = EXCLUDED.comment`,
			a.VersionID, a.Project, a.Comment)
	}
	if isCode(err, codeForeignKeyViolation) {
		return domain.NotFound(op, "version", strconv.FormatInt(a.VersionID, 10))
	}
	if err != nil {
		return domain.Internal(err, op, "failed to store annotation")
	}
	return nil
}

func (s *Store) Settings(ctx context.Context) (*domain.CalculatorSettings, error) {
	const op = "postgres.Settings"
	var cs domain.CalculatorSettings
	err := s.db.QueryRow(ctx, `
		SELECT standard_installment_whitelist, dp_installment_whitelist, dp_installment_max_term,
		       time_value_rate_annual, standard_installment_min_dp_percent
		FROM calculator_settings WHERE id = 1`).Scan(
		&cs.StandardWhitelist, &cs.DownPaymentWhitelist, &cs.DownPaymentMaxTerm,
		&cs.TimeValueRateAnnual, &cs.StandardMinDownPaymentPercent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load calculator settings")
	}
	return &cs, nil
}

func (s *Store) SaveSettings(ctx context.Context, cs domain.CalculatorSettings) error {
	const op = "postgres.SaveSettings"
	cs = cs.Clone()
	_, err := s.db.Exec(ctx, `
		INSERT INTO calculator_settings (id, standard_installment_whitelist, dp_installment_whitelist,
			dp_installment_max_term, time_value_rate_annual, standard_installment_min_dp_percent)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			standard_installment_whitelist = EXCLUDED.standard_installment_whitelist,
			dp_installment_whitelist = EXCLUDED.dp_installment_whitelist,
			dp_installment_max_term = EXCLUDED.dp_installment_max_term,
			time_value_rate_annual = EXCLUDED.time_value_rate_annual,
			standard_installment_min_dp_percent = EXCLUDED.standard_installment_min_dp_percent`,
		cs.StandardWhitelist, cs.DownPaymentWhitelist, cs.DownPaymentMaxTerm,
		cs.TimeValueRateAnnual, cs.StandardMinDownPaymentPercent)
	if err != nil {
		return domain.Internal(err, op, "failed to store calculator settings")
	}
	return nil
}

func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
