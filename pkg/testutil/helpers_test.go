package testutil

import (
	"testing"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/pricing"
)

func TestFindOption(t *testing.T) {
	options := []pricing.Option{
		{Method: domain.MethodFullPayment, FinalPrice: 90},
		{Method: domain.MethodMortgage, FinalPrice: 95},
	}

	tests := []struct {
		name          string
		method        domain.PaymentMethod
		expectFound   bool
		expectedPrice float64
	}{
		{"Full payment", domain.MethodFullPayment, true, 90},
		{"Mortgage", domain.MethodMortgage, true, 95},
		{"Method not priced", domain.MethodTrancheFull, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindOption(options, tt.method)
			if !tt.expectFound {
				if result != nil {
					t.Errorf("FindOption() expected nil for method %v but got %+v", tt.method, *result)
				}
				return
			}
			if result == nil {
				t.Fatalf("FindOption() expected to find method %v but got nil", tt.method)
			}
			if result.FinalPrice != tt.expectedPrice {
				t.Errorf("FindOption() returned price %v, expected %v", result.FinalPrice, tt.expectedPrice)
			}
		})
	}

	if FindOption(nil, domain.MethodFullPayment) != nil {
		t.Error("FindOption() with nil options should return nil")
	}
}

func TestEntriesOfKind(t *testing.T) {
	schedule := []installment.ScheduleEntry{
		{Number: 1, Kind: installment.EntryUpfront},
		{Number: 2, Kind: installment.EntryMonthly},
		{Number: 3, Kind: installment.EntryMonthly},
		{Number: 4, Kind: installment.EntryMortgageBody},
	}

	monthly := EntriesOfKind(schedule, installment.EntryMonthly)
	if len(monthly) != 2 || monthly[0].Number != 2 || monthly[1].Number != 3 {
		t.Errorf("EntriesOfKind(monthly) = %+v, expected entries 2 and 3", monthly)
	}
	if got := EntriesOfKind(schedule, installment.EntryMortgageBody); len(got) != 1 {
		t.Errorf("EntriesOfKind(mortgage_body) returned %d entries, expected 1", len(got))
	}
	if got := EntriesOfKind(nil, installment.EntryUpfront); got != nil {
		t.Errorf("EntriesOfKind(nil) = %v, expected nil", got)
	}
}
