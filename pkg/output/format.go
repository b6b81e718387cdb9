// Package output renders installment quotes for the command line.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/pkg/format"
	"github.com/ghsales/discount-engine/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Figure is one labelled headline number of a quote.
type Figure struct {
	Label string
	Value string
}

// Quote is a priced plan ready for rendering.
type Quote struct {
	Title    string
	Figures  []Figure
	Schedule []installment.ScheduleEntry
}

// FromStandard builds a quote from a standard installment plan.
func FromStandard(plan *installment.StandardPlan) Quote {
	return Quote{
		Title: fmt.Sprintf("Standard installment for unit %d, %d months", plan.UnitID, plan.TermMonths),
		Figures: []Figure{
			{"List price", format.Local(plan.ListPrice)},
			{"Price after discounts", format.Local(plan.PriceAfterDiscounts)},
			{"Upfront", format.Local(plan.Upfront)},
			{"Discount", format.Percent(plan.FlooredDiscount)},
			{"Contract value", format.Local(plan.FinalContractValue)},
			{"Monthly payment", format.Local(plan.FinalMonthlyPayment)},
		},
		Schedule: plan.Schedule,
	}
}

// FromDownPayment builds a quote from a down-payment installment plan.
func FromDownPayment(plan *installment.DownPaymentPlan) Quote {
	return Quote{
		Title: fmt.Sprintf("Down payment installment for unit %d, %d months", plan.UnitID, plan.TermMonths),
		Figures: []Figure{
			{"List price", format.Local(plan.ListPrice)},
			{"Price after discounts", format.Local(plan.PriceAfterDiscounts)},
			{"Down payment", format.Local(plan.DownPayment)},
			{"Mortgage body", format.Local(plan.MortgageBody)},
			{"Discount", format.Percent(plan.FlooredDiscount)},
			{"Contract value", format.Local(plan.FinalContractValue)},
			{"Monthly down payment", format.Local(plan.FinalMonthlyDownPayment)},
		},
		Schedule: plan.Schedule,
	}
}

// PrettyFormat writes a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, q Quote) error {
	p := message.NewPrinter(language.English)
	if _, err := fmt.Fprintf(w, "--- %s ---\n", q.Title); err != nil {
		return err
	}
	for _, f := range q.Figures {
		if _, err := fmt.Fprintf(w, "%-22s %s\n", f.Label+":", f.Value); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n#   | Date       | Kind          | Amount\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "___ | __________ | _____________ | ______\n"); err != nil {
		return err
	}
	for _, e := range q.Schedule {
		if _, err := p.Fprintf(w, "%-3d | %s | %-13s | %.0f\n", e.Number, e.Date, e.Kind, e.Amount); err != nil {
			return err
		}
	}
	return nil
}

// CsvFormat writes the schedule in comma-separated value format.
func CsvFormat(w io.Writer, q Quote) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"number", "date", "kind", "amount"}); err != nil {
		return err
	}
	for _, e := range q.Schedule {
		record := []string{
			strconv.Itoa(e.Number),
			e.Date.String(),
			string(e.Kind),
			strconv.FormatFloat(mathutil.Round(e.Amount), 'f', 2, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
