package pricing

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/currency"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/inventory"
	"github.com/ghsales/discount-engine/pkg/datetime"
	"go.uber.org/zap"
)

// RateSource supplies the active version and its rates.
type RateSource interface {
	ActiveTable(ctx context.Context) (*domain.Version, domain.RateTable, error)
}

// Service prices units from the inventory against the active version.
type Service struct {
	rates     RateSource
	inventory inventory.Reader
	fx        currency.Provider
	params    domain.PricingParams
	logger    *zap.Logger
	today     func() civil.Date
}

// NewService wires a pricing service.
func NewService(rates RateSource, inv inventory.Reader, fx currency.Provider, params domain.PricingParams, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rates:     rates,
		inventory: inv,
		fx:        fx,
		params:    params,
		logger:    logger,
		today:     func() civil.Date { return datetime.Today(time.Local) },
	}
}

// Params returns the pricing constants in use.
func (s *Service) Params() domain.PricingParams {
	return s.params
}

// activeTable returns the active rates. With nothing active every unit is
// priced from all-zero rows.
func (s *Service) activeTable(ctx context.Context, op string) (int64, domain.RateTable, error) {
	v, table, err := s.rates.ActiveTable(ctx)
	if err != nil {
		if domain.IsCode(err, domain.ESTATE) {
			s.logger.Warn("no active discount version, pricing without discounts",
				zap.String("op", op),
			)
			return 0, domain.RateTable{}, nil
		}
		return 0, nil, err
	}
	return v.ID, table, nil
}

// UnitPricing is the price of one unit under every offered method.
type UnitPricing struct {
	Unit      domain.Unit `json:"unit"`
	VersionID int64       `json:"versionId"`
	Options   []Option    `json:"options"`
}

// PricingOptions prices one unit.
func (s *Service) PricingOptions(ctx context.Context, unitID int64) (*UnitPricing, error) {
	const op = "pricing.PricingOptions"

	unit, err := s.inventory.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	versionID, table, err := s.activeTable(ctx, op)
	if err != nil {
		return nil, err
	}
	options, err := ComputeOptions(s.params, *unit, table)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("unit priced",
		zap.String("op", op),
		zap.Int64("unit_id", unitID),
		zap.Int64("version_id", versionID),
	)
	return &UnitPricing{Unit: *unit, VersionID: versionID, Options: options}, nil
}

// Summarize builds the per-project discount overview of the active version.
func (s *Service) Summarize(ctx context.Context) ([]ProjectSummary, error) {
	const op = "pricing.Summarize"

	_, table, err := s.activeTable(ctx, op)
	if err != nil {
		return nil, err
	}
	units, err := s.inventory.ListCandidates(ctx, inventory.Filter{
		Category: domain.CategoryFlat,
		Statuses: s.params.AvailableStatuses,
		MinPrice: s.params.Deduction,
	})
	if err != nil {
		return nil, err
	}
	rate, err := s.fx.USDRate(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "exchange rate unavailable")
	}
	return Summarize(s.params, s.today(), table, units, rate), nil
}

func sortedProjects(table domain.RateTable) []string {
	seen := map[string]bool{}
	var out []string
	for key := range table {
		if !seen[key.Project] {
			seen[key.Project] = true
			out = append(out, key.Project)
		}
	}
	sort.Strings(out)
	return out
}
