package output

import (
	"bytes"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/installment"
)

func testQuote() Quote {
	return Quote{
		Title:   "Standard installment for unit 42, 2 months",
		Figures: []Figure{{"Monthly payment", "250,000,000 UZS"}},
		Schedule: []installment.ScheduleEntry{
			{Number: 1, Date: civil.Date{Year: 2026, Month: 1, Day: 15}, Kind: installment.EntryUpfront, Amount: 0},
			{Number: 2, Date: civil.Date{Year: 2026, Month: 2, Day: 15}, Kind: installment.EntryMonthly, Amount: 250_000_000},
			{Number: 3, Date: civil.Date{Year: 2026, Month: 3, Day: 15}, Kind: installment.EntryMonthly, Amount: 250_000_000.5},
		},
	}
}

func TestPrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyFormat(&buf, testQuote()); err != nil {
		t.Fatalf("PrettyFormat() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"--- Standard installment for unit 42, 2 months ---",
		"Monthly payment:       250,000,000 UZS",
		"1   | 2026-01-15 | upfront       | 0",
		"2   | 2026-02-15 | monthly       | 250,000,000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCsvFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, testQuote()); err != nil {
		t.Fatalf("CsvFormat() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "number,date,kind,amount" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[3] != "3,2026-03-15,monthly,250000000.50" {
		t.Errorf("unexpected row %q", lines[3])
	}
}

func TestFromStandard(t *testing.T) {
	q := FromStandard(&installment.StandardPlan{
		UnitID:              7,
		TermMonths:          12,
		ListPrice:           500_000_000,
		PriceAfterDiscounts: 447_300_000,
		FlooredDiscount:     3,
		FinalMonthlyPayment: 40_000_000,
	})
	if q.Title != "Standard installment for unit 7, 12 months" {
		t.Errorf("unexpected title %q", q.Title)
	}
	if len(q.Figures) != 6 || q.Figures[3].Value != "3.00%" {
		t.Errorf("unexpected figures %+v", q.Figures)
	}
}

func TestFromDownPayment(t *testing.T) {
	q := FromDownPayment(&installment.DownPaymentPlan{UnitID: 7, TermMonths: 6, MortgageBody: 357_840_000})
	if q.Figures[3].Label != "Mortgage body" || q.Figures[3].Value != "357,840,000 UZS" {
		t.Errorf("unexpected figures %+v", q.Figures)
	}
}
