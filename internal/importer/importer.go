// Package importer reads and writes rate tables as xlsx spreadsheets in the
// layout the sales team maintains.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/pkg/mathutil"
	"github.com/xuri/excelize/v2"
)

// SheetName is the sheet written by Template and Export.
const SheetName = "Шаблон скидок"

const (
	colProject  = "ЖК"
	colCategory = "Тип недвижимости"
	colMethod   = "Тип оплаты"
	colCutoff   = "Дата кадастра"
)

// Headers returns the spreadsheet header row.
func Headers() []string {
	headers := []string{colProject, colCategory, colMethod, colCutoff}
	for _, name := range domain.AllRateNames {
		headers = append(headers, name.Label())
	}
	return headers
}

// RowError is a rejected spreadsheet row. Row is 1-based as shown by
// spreadsheet editors, so the first data row is 2.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// RowErrors collects every rejected row of an import.
type RowErrors []RowError

func (e RowErrors) Error() string {
	parts := make([]string, len(e))
	for i, re := range e {
		parts[i] = re.String()
	}
	return strings.Join(parts, "; ")
}

// Import parses the first sheet of an xlsx workbook into rate rows. Any
// rejected row fails the whole import; the returned error wraps RowErrors
// naming each of them.
func Import(r io.Reader) ([]domain.RateRow, error) {
	const op = "importer.Import"

	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &domain.Error{Code: domain.EINVALID, Op: op, Message: "file is not a readable xlsx workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.Invalid(op, "workbook has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read sheet")
	}
	if len(records) == 0 {
		return nil, domain.Invalid(op, "sheet is empty")
	}

	columns, err := indexHeader(records[0])
	if err != nil {
		return nil, &domain.Error{Code: domain.EINVALID, Op: op, Message: err.Error(), Err: err}
	}

	var (
		rows     []domain.RateRow
		rejected RowErrors
		seen     = make(map[domain.RateKey]int)
	)
	for i, record := range records[1:] {
		line := i + 2
		if blank(record) {
			continue
		}
		row, err := parseRow(record, columns)
		if err != nil {
			rejected = append(rejected, RowError{Row: line, Message: err.Error()})
			continue
		}
		if first, dup := seen[row.Key]; dup {
			rejected = append(rejected, RowError{Row: line, Message: fmt.Sprintf("duplicates row %d (%s)", first, row.Key)})
			continue
		}
		seen[row.Key] = line
		rows = append(rows, row)
	}

	if len(rejected) > 0 {
		return nil, &domain.Error{
			Code:    domain.EINVALID,
			Op:      op,
			Message: fmt.Sprintf("%d rows rejected: %s", len(rejected), rejected.Error()),
			Err:     rejected,
		}
	}
	if len(rows) == 0 {
		return nil, domain.Invalid(op, "sheet has no rate rows")
	}
	return rows, nil
}

type columnIndex struct {
	project, category, method, cutoff int
	rates                             map[domain.RateName]int
}

func indexHeader(header []string) (columnIndex, error) {
	idx := columnIndex{project: -1, category: -1, method: -1, cutoff: -1, rates: make(map[domain.RateName]int)}
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch h {
		case colProject:
			idx.project = i
		case colCategory:
			idx.category = i
		case colMethod:
			idx.method = i
		case colCutoff:
			idx.cutoff = i
		default:
			for _, name := range domain.AllRateNames {
				if h == name.Label() || strings.EqualFold(h, string(name)) {
					idx.rates[name] = i
				}
			}
		}
	}

	var missing []string
	if idx.project < 0 {
		missing = append(missing, colProject)
	}
	if idx.category < 0 {
		missing = append(missing, colCategory)
	}
	if idx.method < 0 {
		missing = append(missing, colMethod)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(record []string, columns columnIndex) (domain.RateRow, error) {
	project := cell(record, columns.project)
	if project == "" {
		return domain.RateRow{}, fmt.Errorf("project is empty")
	}
	category, err := domain.ParseCategory(cell(record, columns.category))
	if err != nil {
		return domain.RateRow{}, err
	}
	method, err := domain.ParsePaymentMethod(cell(record, columns.method))
	if err != nil {
		return domain.RateRow{}, err
	}
	if method.Tranche() {
		return domain.RateRow{}, fmt.Errorf("%s rows are derived and cannot be imported", method.Label())
	}

	row := domain.RateRow{Key: domain.RateKey{Project: project, Category: category, Method: method}}
	for name, i := range columns.rates {
		raw := cell(record, i)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSuffix(strings.ReplaceAll(raw, ",", "."), "%"), 64)
		if err != nil {
			return domain.RateRow{}, fmt.Errorf("%s: %q is not a number", name.Label(), raw)
		}
		if err := row.Rates.Set(name, mathutil.NormalizeRate(value)); err != nil {
			return domain.RateRow{}, err
		}
	}
	if err := row.Rates.Validate(); err != nil {
		return domain.RateRow{}, err
	}

	if columns.cutoff >= 0 {
		cutoff, err := parseCutoff(cell(record, columns.cutoff))
		if err != nil {
			return domain.RateRow{}, err
		}
		row.Cutoff = cutoff
	}
	return row, nil
}

// parseCutoff accepts an Excel serial date, an ISO date or a dd.mm.yyyy date.
func parseCutoff(raw string) (*civil.Date, error) {
	if raw == "" {
		return nil, nil
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", colCutoff, err)
		}
		d := civil.DateOf(t)
		return &d, nil
	}
	for _, layout := range []string{"2006-01-02", "02.01.2006", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d := civil.DateOf(t)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("%s: %q is not a date", colCutoff, raw)
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Export writes rows as a workbook in the import layout. Rates are written as
// fractions.
func Export(w io.Writer, rows []domain.RateRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, 0, len(Headers()))
	for _, h := range Headers() {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		values := []interface{}{row.Key.Project, row.Key.Category.Label(), row.Key.Method.Label(), ""}
		if row.Cutoff != nil {
			values[3] = row.Cutoff.String()
		}
		for _, name := range domain.AllRateNames {
			values = append(values, row.Rates.Get(name))
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cellName, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Template writes an empty rate sheet with one row per project, category and
// stored payment method.
func Template(w io.Writer, projects []string) error {
	rows := make([]domain.RateRow, 0, len(projects)*len(domain.AllCategories)*len(domain.StoredPaymentMethods))
	for _, project := range projects {
		for _, category := range domain.AllCategories {
			for _, method := range domain.StoredPaymentMethods {
				rows = append(rows, domain.RateRow{Key: domain.RateKey{Project: project, Category: category, Method: method}})
			}
		}
	}
	return Export(w, rows)
}
