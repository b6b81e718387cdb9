// Package installment implements the developer's own financing products: a
// standard installment plan on the discounted price and an installment plan
// on the down payment followed by a mortgage.
package installment

import (
	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/pkg/datetime"
)

// EntryKind tells what a schedule entry pays for.
type EntryKind string

const (
	EntryUpfront      EntryKind = "upfront"
	EntryMonthly      EntryKind = "monthly"
	EntryMortgageBody EntryKind = "mortgage_body"
)

// ScheduleEntry is one dated payment.
type ScheduleEntry struct {
	Number int        `json:"number"`
	Date   civil.Date `json:"date"`
	Kind   EntryKind  `json:"kind"`
	Amount float64    `json:"amount"`
}

// scheduleBuilder numbers entries as they are appended.
type scheduleBuilder struct {
	start   civil.Date
	entries []ScheduleEntry
}

func newSchedule(start civil.Date, capacity int) *scheduleBuilder {
	return &scheduleBuilder{start: start, entries: make([]ScheduleEntry, 0, capacity)}
}

func (b *scheduleBuilder) add(monthOffset int, kind EntryKind, amount float64) {
	b.entries = append(b.entries, ScheduleEntry{
		Number: len(b.entries) + 1,
		Date:   datetime.AddMonths(b.start, monthOffset),
		Kind:   kind,
		Amount: amount,
	})
}

// monthly appends n equal payments one month apart, the first one month
// after the start.
func (b *scheduleBuilder) monthly(n int, amount float64) {
	for i := 1; i <= n; i++ {
		b.add(i, EntryMonthly, amount)
	}
}

func (b *scheduleBuilder) build() []ScheduleEntry {
	return b.entries
}

// Total sums the amounts of the given entries.
func Total(entries []ScheduleEntry) float64 {
	total := 0.0
	for _, e := range entries {
		total += e.Amount
	}
	return total
}
