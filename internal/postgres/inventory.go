package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/inventory"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Inventory reads units from the sales system's estate_sells and
// estate_houses tables. The engine never writes them.
type Inventory struct {
	db     dbtx
	logger *zap.Logger
}

var _ inventory.Reader = (*Inventory)(nil)

// NewInventory creates an inventory reader.
func NewInventory(db dbtx, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{db: db, logger: logger}
}

// inventoryCategory is the category name the inventory feed stores.
func inventoryCategory(c domain.Category) string {
	switch c {
	case domain.CategoryCommercial:
		return "comm"
	case domain.CategoryStorage:
		return "storageroom"
	}
	return c.String()
}

const unitQuery = `
	SELECT s.id, h.complex_name, COALESCE(s.estate_sell_category, ''),
	       COALESCE(s.estate_price, 0), COALESCE(s.estate_area, 0),
	       COALESCE(s.estate_floor, 0), COALESCE(s.estate_rooms, 0),
	       COALESCE(s.estate_sell_status_name, '')
	FROM estate_sells s
	JOIN estate_houses h ON h.id = s.house_id`

type unitRow struct {
	unit     domain.Unit
	category string
}

func scanUnit(row pgx.Row) (unitRow, error) {
	var r unitRow
	err := row.Scan(&r.unit.ID, &r.unit.Project, &r.category,
		&r.unit.Price, &r.unit.Area, &r.unit.Floor, &r.unit.Rooms, &r.unit.Status)
	return r, err
}

func (i *Inventory) GetUnit(ctx context.Context, id int64) (*domain.Unit, error) {
	const op = "postgres.Inventory.GetUnit"
	r, err := scanUnit(i.db.QueryRow(ctx, unitQuery+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound(op, "unit", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load unit")
	}
	if r.unit.Category, err = domain.ParseCategory(r.category); err != nil {
		return nil, domain.Errorf(domain.EINVALID, op, "unit %d has an unsupported category %q", id, r.category)
	}
	return &r.unit, nil
}

func (i *Inventory) ListCandidates(ctx context.Context, filter inventory.Filter) ([]domain.Unit, error) {
	const op = "postgres.Inventory.ListCandidates"

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	where = append(where, "s.estate_price > "+arg(filter.MinPrice))
	if filter.Category != 0 {
		where = append(where, "s.estate_sell_category = "+arg(inventoryCategory(filter.Category)))
	}
	if filter.Project != "" {
		where = append(where, "h.complex_name = "+arg(filter.Project))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "s.estate_sell_status_name = ANY("+arg(filter.Statuses)+")")
	}

	rows, err := i.db.Query(ctx, unitQuery+" WHERE "+strings.Join(where, " AND ")+" ORDER BY s.id", args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list units")
	}
	defer rows.Close()

	var out []domain.Unit
	for rows.Next() {
		r, err := scanUnit(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to list units")
		}
		if r.unit.Category, err = domain.ParseCategory(r.category); err != nil {
			i.logger.Warn("skipping unit with unsupported category",
				zap.String("op", op),
				zap.Int64("unit_id", r.unit.ID),
				zap.String("category", r.category),
			)
			continue
		}
		out = append(out, r.unit)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to list units")
	}
	return out, nil
}
