package pricing

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/ghsales/discount-engine/internal/currency"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/inventory"
	"github.com/ghsales/discount-engine/pkg/constants"
	"go.uber.org/zap"
)

// BudgetQuery searches units a buyer can afford.
type BudgetQuery struct {
	Budget   float64         `json:"budget" validate:"gt=0"`
	Currency string          `json:"currency" validate:"omitempty,oneof=UZS USD uzs usd"`
	Category domain.Category `json:"category" validate:"required"`
	// Methods restricts the search; empty means every offered method.
	Methods []domain.PaymentMethod `json:"methods,omitempty"`
}

// BudgetMatch is a unit affordable under one method.
type BudgetMatch struct {
	UnitID           int64   `json:"unitId"`
	Floor            int     `json:"floor"`
	Area             float64 `json:"area"`
	ListPrice        float64 `json:"listPrice"`
	FinalPrice       float64 `json:"finalPrice"`
	DownPayment      float64 `json:"downPayment,omitempty"`
	FirstInstallment float64 `json:"firstInstallment,omitempty"`
}

// RoomGroup holds matches with the same room count.
type RoomGroup struct {
	Rooms string        `json:"rooms"`
	Units []BudgetMatch `json:"units"`
}

// MethodGroup holds matches under one payment method.
type MethodGroup struct {
	Method domain.PaymentMethod `json:"method"`
	Total  int                  `json:"total"`
	Rooms  []RoomGroup          `json:"rooms"`
}

// ProjectGroup holds matches within one project.
type ProjectGroup struct {
	Project string        `json:"project"`
	Total   int           `json:"total"`
	Methods []MethodGroup `json:"methods"`
}

// BudgetResult groups matches by project, method and room count.
type BudgetResult struct {
	BudgetLocal float64        `json:"budgetLocal"`
	Total       int            `json:"total"`
	Projects    []ProjectGroup `json:"projects"`
}

// FindByBudget prices every available unit of the category and keeps those
// whose up-front amount fits the budget. USD budgets are converted with the
// current exchange rate.
func (s *Service) FindByBudget(ctx context.Context, q BudgetQuery) (*BudgetResult, error) {
	const op = "pricing.FindByBudget"

	if q.Budget <= 0 {
		return nil, domain.Invalid(op, "budget must be positive")
	}
	if !q.Category.Valid() {
		return nil, domain.Invalid(op, "category is required")
	}

	switch strings.ToUpper(q.Currency) {
	case "", constants.CurrencyLocal, constants.CurrencyUSD:
	default:
		return nil, domain.Errorf(domain.EINVALID, op, "unsupported currency %q", q.Currency)
	}

	offered := MethodsFor(q.Category)
	methods := q.Methods
	if len(methods) == 0 {
		methods = offered
	}
	for _, m := range methods {
		if !slices.Contains(offered, m) {
			return nil, domain.Errorf(domain.EINVALID, op, "%s is not offered for %s", m, q.Category)
		}
	}

	budget, err := currency.ToLocal(ctx, s.fx, q.Budget, q.Currency)
	if err != nil {
		return nil, domain.Internal(err, op, "exchange rate unavailable")
	}

	_, table, err := s.activeTable(ctx, op)
	if err != nil {
		return nil, err
	}
	units, err := s.inventory.ListCandidates(ctx, inventory.Filter{
		Category: q.Category,
		Statuses: s.params.AvailableStatuses,
		MinPrice: s.params.Deduction,
	})
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		project string
		method  domain.PaymentMethod
		rooms   string
	}
	groups := map[groupKey][]BudgetMatch{}

	for _, u := range units {
		for _, method := range methods {
			row := table.Lookup(domain.RateKey{Project: u.Project, Category: u.Category, Method: method})
			opt, err := ComputeOption(s.params, u.Price, method, row)
			if err != nil {
				return nil, err
			}
			if budget < opt.UpFront() {
				continue
			}
			k := groupKey{project: u.Project, method: method, rooms: u.RoomsLabel()}
			groups[k] = append(groups[k], BudgetMatch{
				UnitID:           u.ID,
				Floor:            u.Floor,
				Area:             u.Area,
				ListPrice:        u.Price,
				FinalPrice:       opt.FinalPrice,
				DownPayment:      opt.DownPayment,
				FirstInstallment: opt.FirstInstallment,
			})
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.project != b.project {
			return a.project < b.project
		}
		if a.method != b.method {
			return a.method < b.method
		}
		return roomOrder(a.rooms) < roomOrder(b.rooms)
	})

	result := &BudgetResult{BudgetLocal: budget}
	for _, k := range keys {
		matches := groups[k]
		sort.Slice(matches, func(i, j int) bool { return matches[i].FinalPrice < matches[j].FinalPrice })

		if n := len(result.Projects); n == 0 || result.Projects[n-1].Project != k.project {
			result.Projects = append(result.Projects, ProjectGroup{Project: k.project})
		}
		project := &result.Projects[len(result.Projects)-1]
		if n := len(project.Methods); n == 0 || project.Methods[n-1].Method != k.method {
			project.Methods = append(project.Methods, MethodGroup{Method: k.method})
		}
		method := &project.Methods[len(project.Methods)-1]

		method.Rooms = append(method.Rooms, RoomGroup{Rooms: k.rooms, Units: matches})
		method.Total += len(matches)
		project.Total += len(matches)
		result.Total += len(matches)
	}

	s.logger.Info("budget search completed",
		zap.String("op", op),
		zap.Float64("budget_local", budget),
		zap.String("category", q.Category.String()),
		zap.Int("candidates", len(units)),
		zap.Int("matches", result.Total),
	)
	return result, nil
}

// roomOrder sorts studios first, then by room count.
func roomOrder(label string) int {
	n, err := strconv.Atoi(label)
	if err != nil {
		return 0
	}
	return n
}
