// Package domain holds the rate tables, versions and errors shared by the
// versioning, pricing and installment packages.
package domain

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

// Category is the kind of unit a rate row applies to.
type Category int

const (
	CategoryFlat Category = iota + 1
	CategoryCommercial
	CategoryGarage
	CategoryStorage
)

// AllCategories lists every category in display order.
var AllCategories = []Category{CategoryFlat, CategoryCommercial, CategoryGarage, CategoryStorage}

// String returns the stable machine name used in storage and APIs.
func (c Category) String() string {
	switch c {
	case CategoryFlat:
		return "flat"
	case CategoryCommercial:
		return "commercial"
	case CategoryGarage:
		return "garage"
	case CategoryStorage:
		return "storage"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Label returns the name used by the sales team and in spreadsheets.
func (c Category) Label() string {
	switch c {
	case CategoryFlat:
		return "Квартира"
	case CategoryCommercial:
		return "Коммерческое помещение"
	case CategoryGarage:
		return "Парковка"
	case CategoryStorage:
		return "Кладовое помещение"
	}
	return c.String()
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= CategoryFlat && c <= CategoryStorage
}

// ParseCategory accepts either the machine name or the spreadsheet label.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range AllCategories {
		if strings.EqualFold(s, c.String()) || s == c.Label() {
			return c, nil
		}
	}
	// The inventory feed uses "comm" and "storageroom".
	switch strings.ToLower(s) {
	case "comm":
		return CategoryCommercial, nil
	case "storageroom":
		return CategoryStorage, nil
	}
	return 0, fmt.Errorf("unknown unit category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// PaymentMethod selects how a unit is paid for.
type PaymentMethod int

const (
	MethodFullPayment PaymentMethod = iota + 1
	MethodMortgage
	MethodTrancheFull
	MethodTrancheMortgage
)

// AllPaymentMethods lists every payment method in display order.
var AllPaymentMethods = []PaymentMethod{MethodFullPayment, MethodMortgage, MethodTrancheFull, MethodTrancheMortgage}

// StoredPaymentMethods lists the methods that own rate rows. Tranche methods
// are derived from them on read.
var StoredPaymentMethods = []PaymentMethod{MethodFullPayment, MethodMortgage}

func (m PaymentMethod) String() string {
	switch m {
	case MethodFullPayment:
		return "full_payment"
	case MethodMortgage:
		return "mortgage"
	case MethodTrancheFull:
		return "tranche_full"
	case MethodTrancheMortgage:
		return "tranche_mortgage"
	}
	return fmt.Sprintf("PaymentMethod(%d)", int(m))
}

// Label returns the name used by the sales team and in spreadsheets.
func (m PaymentMethod) Label() string {
	switch m {
	case MethodFullPayment:
		return "100% оплата"
	case MethodMortgage:
		return "Ипотека"
	case MethodTrancheFull:
		return "100% оплата (3 транша)"
	case MethodTrancheMortgage:
		return "Ипотека (3 транша)"
	}
	return m.String()
}

// Valid reports whether m is one of the declared methods.
func (m PaymentMethod) Valid() bool {
	return m >= MethodFullPayment && m <= MethodTrancheMortgage
}

// Financed reports whether the method is paid with a down payment plus a mortgage.
func (m PaymentMethod) Financed() bool {
	return m == MethodMortgage || m == MethodTrancheMortgage
}

// Tranche reports whether the method is a derived tranche variant.
func (m PaymentMethod) Tranche() bool {
	return m == MethodTrancheFull || m == MethodTrancheMortgage
}

// Base returns the stored method a tranche variant is derived from. Stored
// methods return themselves.
func (m PaymentMethod) Base() PaymentMethod {
	switch m {
	case MethodTrancheFull:
		return MethodFullPayment
	case MethodTrancheMortgage:
		return MethodMortgage
	}
	return m
}

// ParsePaymentMethod accepts either the machine name or the spreadsheet label.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	s = strings.TrimSpace(s)
	for _, m := range AllPaymentMethods {
		if strings.EqualFold(s, m.String()) || s == m.Label() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown payment method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m PaymentMethod) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid payment method %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PaymentMethod) UnmarshalText(text []byte) error {
	parsed, err := ParsePaymentMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// RateName identifies one of the named discount rates of a row.
type RateName string

const (
	RateMPP         RateName = "mpp"
	RateROP         RateName = "rop"
	RateKD          RateName = "kd"
	RateOPT         RateName = "opt"
	RateGD          RateName = "gd"
	RateHolding     RateName = "holding"
	RateShareholder RateName = "shareholder"
	RateAction      RateName = "action"
)

// AllRateNames lists the named rates in spreadsheet column order.
var AllRateNames = []RateName{RateMPP, RateROP, RateKD, RateOPT, RateGD, RateHolding, RateShareholder, RateAction}

// TagRateNames are the optional discounts a manager may grant on top of the
// base stack; a project advertises a tag for every one with a positive rate.
var TagRateNames = []RateName{RateKD, RateOPT, RateGD, RateHolding, RateShareholder}

// ParseRateName validates a rate name.
func ParseRateName(s string) (RateName, error) {
	n := RateName(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllRateNames {
		if n == known {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown rate %q", s)
}

// Label returns the spreadsheet column header of the rate.
func (n RateName) Label() string {
	switch n {
	case RateMPP:
		return "МПП"
	case RateROP:
		return "РОП"
	case RateKD:
		return "КД"
	case RateOPT:
		return "ОПТ"
	case RateGD:
		return "ГД"
	case RateHolding:
		return "Холдинг"
	case RateShareholder:
		return "Акционер"
	case RateAction:
		return "Акция"
	}
	return string(n)
}

// Rates holds the named discount rates of a row as fractions in [0,1].
type Rates struct {
	MPP         float64 `json:"mpp" yaml:"mpp"`
	ROP         float64 `json:"rop" yaml:"rop"`
	KD          float64 `json:"kd" yaml:"kd"`
	OPT         float64 `json:"opt" yaml:"opt"`
	GD          float64 `json:"gd" yaml:"gd"`
	Holding     float64 `json:"holding" yaml:"holding"`
	Shareholder float64 `json:"shareholder" yaml:"shareholder"`
	Action      float64 `json:"action" yaml:"action"`
}

// Get returns the value of the named rate.
func (r Rates) Get(name RateName) float64 {
	switch name {
	case RateMPP:
		return r.MPP
	case RateROP:
		return r.ROP
	case RateKD:
		return r.KD
	case RateOPT:
		return r.OPT
	case RateGD:
		return r.GD
	case RateHolding:
		return r.Holding
	case RateShareholder:
		return r.Shareholder
	case RateAction:
		return r.Action
	}
	return 0
}

// Set assigns the named rate. Unknown names are rejected.
func (r *Rates) Set(name RateName, value float64) error {
	switch name {
	case RateMPP:
		r.MPP = value
	case RateROP:
		r.ROP = value
	case RateKD:
		r.KD = value
	case RateOPT:
		r.OPT = value
	case RateGD:
		r.GD = value
	case RateHolding:
		r.Holding = value
	case RateShareholder:
		r.Shareholder = value
	case RateAction:
		r.Action = value
	default:
		return fmt.Errorf("unknown rate %q", name)
	}
	return nil
}

// Sum adds the named rates. Rates stack by addition, never compounding.
func (r Rates) Sum(names ...RateName) float64 {
	total := 0.0
	for _, n := range names {
		total += r.Get(n)
	}
	return total
}

// Validate checks every rate is within [0,1].
func (r Rates) Validate() error {
	for _, n := range AllRateNames {
		if v := r.Get(n); v < 0 || v > 1 {
			return fmt.Errorf("rate %s must be within [0,1], got %v", n, v)
		}
	}
	return nil
}

// RateKey is the business key of a rate row within a version.
type RateKey struct {
	Project  string        `json:"project" yaml:"project"`
	Category Category      `json:"category" yaml:"category"`
	Method   PaymentMethod `json:"method" yaml:"method"`
}

func (k RateKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Project, k.Category, k.Method)
}

// RateRow is one row of a version's rate table.
type RateRow struct {
	VersionID int64       `json:"versionId" yaml:"-"`
	Key       RateKey     `json:"key" yaml:"key"`
	Rates     Rates       `json:"rates" yaml:"rates"`
	Cutoff    *civil.Date `json:"cutoff,omitempty" yaml:"cutoff,omitempty"`
}

// Clone returns a deep copy of the row so drafts never alias the rows of
// another version.
func (r RateRow) Clone() RateRow {
	out := r
	if r.Cutoff != nil {
		d := *r.Cutoff
		out.Cutoff = &d
	}
	return out
}

// Derive returns the tranche variant of a stored full-payment or mortgage row:
// the same rates with the cadastre-linked rate (kd) zeroed. ok is false for
// rows that have no tranche variant.
func (r RateRow) Derive() (RateRow, bool) {
	var method PaymentMethod
	switch r.Key.Method {
	case MethodFullPayment:
		method = MethodTrancheFull
	case MethodMortgage:
		method = MethodTrancheMortgage
	default:
		return RateRow{}, false
	}
	out := r.Clone()
	out.Key.Method = method
	out.Rates.KD = 0
	return out, true
}

// RateTable indexes rows by business key.
type RateTable map[RateKey]RateRow

// NewRateTable indexes rows, deep copying each.
func NewRateTable(rows []RateRow) RateTable {
	t := make(RateTable, len(rows))
	for _, r := range rows {
		t[r.Key] = r.Clone()
	}
	return t
}

// Lookup returns the row for the key. Tranche keys resolve through their base
// row. Missing rows degrade to an all-zero row so pricing stays total.
func (t RateTable) Lookup(key RateKey) RateRow {
	if key.Method.Tranche() {
		base := t.Lookup(RateKey{Project: key.Project, Category: key.Category, Method: key.Method.Base()})
		derived, _ := base.Derive()
		return derived
	}
	if row, ok := t[key]; ok {
		return row.Clone()
	}
	return RateRow{Key: key}
}

// Has reports whether a stored row exists for the key.
func (t RateTable) Has(key RateKey) bool {
	_, ok := t[key.base()]
	return ok
}

func (k RateKey) base() RateKey {
	k.Method = k.Method.Base()
	return k
}
