package installment

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/currency"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/inventory"
	"github.com/ghsales/discount-engine/internal/pricing"
	"github.com/ghsales/discount-engine/pkg/datetime"
	"go.uber.org/zap"
)

// SettingsStore reads and writes the calculator settings.
type SettingsStore interface {
	Settings(ctx context.Context) (*domain.CalculatorSettings, error)
	SaveSettings(ctx context.Context, s domain.CalculatorSettings) error
}

// Service gathers unit, rates, settings and exchange rate for each quote and
// hands them to the pure calculators.
type Service struct {
	settings  SettingsStore
	rates     pricing.RateSource
	inventory inventory.Reader
	fx        currency.Provider
	params    domain.PricingParams
	logger    *zap.Logger
	today     func() civil.Date
}

// NewService wires an installment service.
func NewService(settings SettingsStore, rates pricing.RateSource, inv inventory.Reader, fx currency.Provider, params domain.PricingParams, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		settings:  settings,
		rates:     rates,
		inventory: inv,
		fx:        fx,
		params:    params,
		logger:    logger,
		today:     func() civil.Date { return datetime.Today(time.Local) },
	}
}

// StandardRequest asks for a standard installment quote. AdditionalDiscounts
// maps tag rate names to percents, so {"kd": 1} grants 1%.
type StandardRequest struct {
	UnitID              int64              `json:"unitId" validate:"required,gt=0"`
	TermMonths          int                `json:"termMonths" validate:"gte=1"`
	AdditionalDiscounts map[string]float64 `json:"additionalDiscounts,omitempty" validate:"omitempty,dive,gte=0,lte=100"`
	Upfront             float64            `json:"upfront" validate:"gte=0"`
	StartDate           string             `json:"startDate,omitempty"`
}

// DownPaymentRequest asks for a down-payment installment quote. Additional
// discounts are percents as in StandardRequest.
type DownPaymentRequest struct {
	UnitID              int64              `json:"unitId" validate:"required,gt=0"`
	TermMonths          int                `json:"termMonths" validate:"gte=1"`
	DownPayment         float64            `json:"downPayment" validate:"gt=0"`
	Unit                string             `json:"unit" validate:"omitempty,oneof=percent local uzs usd"`
	AdditionalDiscounts map[string]float64 `json:"additionalDiscounts,omitempty" validate:"omitempty,dive,gte=0,lte=100"`
	StartDate           string             `json:"startDate,omitempty"`
}

// Settings returns the current calculator settings.
func (s *Service) Settings(ctx context.Context) (*domain.CalculatorSettings, error) {
	return s.settings.Settings(ctx)
}

// UpdateSettings validates and stores new calculator settings.
func (s *Service) UpdateSettings(ctx context.Context, settings domain.CalculatorSettings) error {
	const op = "installment.UpdateSettings"
	if err := settings.Validate(); err != nil {
		return domain.Errorf(domain.EINVALID, op, "%v", err)
	}
	if err := s.settings.SaveSettings(ctx, settings); err != nil {
		return err
	}
	s.logger.Info("calculator settings updated",
		zap.String("op", op),
		zap.Int("standard_whitelist", len(settings.StandardWhitelist)),
		zap.Int("down_payment_whitelist", len(settings.DownPaymentWhitelist)),
		zap.Int("down_payment_max_term", settings.DownPaymentMaxTerm),
		zap.Float64("time_value_rate_annual", settings.TimeValueRateAnnual),
	)
	return nil
}

type quoteContext struct {
	settings domain.CalculatorSettings
	unit     domain.Unit
	row      domain.RateRow
	start    civil.Date
	today    civil.Date
	extra    map[domain.RateName]float64
}

func (s *Service) load(ctx context.Context, op string, unitID int64, method domain.PaymentMethod, startDate string, discounts map[string]float64) (*quoteContext, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, err
	}
	extra, err := ParseDiscounts(discounts)
	if err != nil {
		return nil, domain.Errorf(domain.EINVALID, op, "%v", err)
	}
	today := s.today()
	start := today
	if startDate != "" {
		d, err := civil.ParseDate(startDate)
		if err != nil {
			return nil, domain.Errorf(domain.EINVALID, op, "invalid start date %q", startDate)
		}
		start = d
	}

	unit, err := s.inventory.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	_, table, err := s.rates.ActiveTable(ctx)
	if err != nil && !domain.IsCode(err, domain.ESTATE) {
		return nil, err
	}
	row := table.Lookup(domain.RateKey{Project: unit.Project, Category: unit.Category, Method: method})

	return &quoteContext{
		settings: *settings,
		unit:     *unit,
		row:      row,
		start:    start,
		today:    today,
		extra:    extra,
	}, nil
}

// Standard quotes a standard installment plan for a unit.
func (s *Service) Standard(ctx context.Context, req StandardRequest) (*StandardPlan, error) {
	const op = "installment.Standard"

	q, err := s.load(ctx, op, req.UnitID, domain.MethodFullPayment, req.StartDate, req.AdditionalDiscounts)
	if err != nil {
		return nil, err
	}
	plan, err := CalculateStandard(q.settings, s.params, StandardInput{
		UnitID:              q.unit.ID,
		ListPrice:           q.unit.Price,
		Row:                 q.row,
		TermMonths:          req.TermMonths,
		AdditionalDiscounts: q.extra,
		Upfront:             req.Upfront,
		Today:               q.today,
		StartDate:           q.start,
	})
	if err != nil {
		s.logger.Debug("standard installment rejected",
			zap.String("op", op),
			zap.Int64("unit_id", req.UnitID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("standard installment calculated",
		zap.String("op", op),
		zap.Int64("unit_id", req.UnitID),
		zap.Int("term_months", req.TermMonths),
		zap.Float64("floored_discount", plan.FlooredDiscount),
	)
	return plan, nil
}

// DownPayment quotes a down-payment installment plan for a unit.
func (s *Service) DownPayment(ctx context.Context, req DownPaymentRequest) (*DownPaymentPlan, error) {
	const op = "installment.DownPayment"

	unit, err := ParseAmountUnit(req.Unit)
	if err != nil {
		return nil, domain.Errorf(domain.EINVALID, op, "%v", err)
	}
	q, err := s.load(ctx, op, req.UnitID, domain.MethodMortgage, req.StartDate, req.AdditionalDiscounts)
	if err != nil {
		return nil, err
	}

	var usdRate float64
	if unit == AmountUSD {
		usdRate, err = s.fx.USDRate(ctx)
		if err != nil {
			return nil, domain.Internal(err, op, "exchange rate unavailable")
		}
	}

	plan, err := CalculateDownPayment(q.settings, s.params, DownPaymentInput{
		UnitID:              q.unit.ID,
		ListPrice:           q.unit.Price,
		Row:                 q.row,
		TermMonths:          req.TermMonths,
		AdditionalDiscounts: q.extra,
		DownPayment:         req.DownPayment,
		Unit:                unit,
		USDRate:             usdRate,
		StartDate:           q.start,
	})
	if err != nil {
		s.logger.Debug("down payment installment rejected",
			zap.String("op", op),
			zap.Int64("unit_id", req.UnitID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("down payment installment calculated",
		zap.String("op", op),
		zap.Int64("unit_id", req.UnitID),
		zap.Int("term_months", req.TermMonths),
		zap.Float64("floored_discount", plan.FlooredDiscount),
	)
	return plan, nil
}
