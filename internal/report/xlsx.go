// Package report exports a comparison set as a review workbook.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pim-enrich/internal/model"
)

// Sheet names of the workbook.
const (
	SheetComparisons = "Comparisons"
	SheetSummary     = "Summary"
)

var comparisonHeader = []string{
	"Selected", "Code", "Label", "Locale", "Scope", "Type",
	"Current", "Proposed", "Edited", "Confidence", "Changed", "Reasoning",
}

// WriteXLSX writes a workbook with one row per comparison and a summary
// sheet for the product.
func WriteXLSX(w io.Writer, product *model.Product, cs []model.Comparison) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetComparisons)
	if err != nil {
		return eris.Wrap(err, "report: add comparisons sheet")
	}
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true
	addRow(sheet, bold, comparisonHeader...)
	for _, c := range cs {
		addRow(sheet, nil,
			mark(c.IsSelected),
			c.Code,
			c.Label,
			c.Locale,
			c.Scope,
			string(c.AttributeType),
			deref(c.CurrentValue),
			c.ProposedValue,
			deref(c.EditedValue),
			strconv.FormatFloat(c.Confidence, 'f', 2, 64),
			mark(c.DiffersFrom(c.EffectiveValue())),
			c.Reasoning,
		)
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	if product != nil {
		addRow(summary, bold, "Product")
		addRow(summary, nil, "UUID", product.UUID)
		addRow(summary, nil, "Identifier", product.Identifier)
		addRow(summary, nil, "Family", product.Family)
	}
	addRow(summary, nil, "Proposals", strconv.Itoa(len(cs)))
	addRow(summary, nil, "Selected", strconv.Itoa(model.CountSelected(cs)))

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, product *model.Product, cs []model.Comparison) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	if err := WriteXLSX(out, product, cs); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(out.Close(), fmt.Sprintf("report: close %s", path))
}

func addRow(sheet *xlsx.Sheet, style *xlsx.Style, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		cell.SetString(v)
		if style != nil {
			cell.SetStyle(style)
		}
	}
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
