// Package testutil provides common lookups for tests against priced results.
package testutil

import (
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/pricing"
)

// FindOption finds the option priced under method.
// Returns a pointer into options if found, nil otherwise.
func FindOption(options []pricing.Option, method domain.PaymentMethod) *pricing.Option {
	for i := range options {
		if options[i].Method == method {
			return &options[i]
		}
	}
	return nil
}

// EntriesOfKind returns the schedule entries of one kind in order.
func EntriesOfKind(schedule []installment.ScheduleEntry, kind installment.EntryKind) []installment.ScheduleEntry {
	var out []installment.ScheduleEntry
	for _, e := range schedule {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
