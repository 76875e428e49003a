package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/products"
)

// SheetName is the worksheet holding the listing.
const SheetName = "EPIs"

var xlsxColumnWidths = []float64{6, 32, 14, 10, 12, 13, 13, 20, 13, 11, 22}

// WriteXLSX renders rows as a single-sheet workbook with a filterable header.
// ID, quantity and days remaining are stored as numbers.
func WriteXLSX(w io.Writer, rows []products.EnrichedProduct) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: xlsx sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E6E6E6"}},
	})
	if err != nil {
		return fmt.Errorf("export: xlsx header style: %w", err)
	}
	fills := map[expiry.Status]int{}
	for _, status := range []expiry.Status{expiry.StatusExpired, expiry.StatusNearExpiry} {
		r, g, b := statusFill(status)
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{fmt.Sprintf("%02X%02X%02X", r, g, b)}},
		})
		if err != nil {
			return fmt.Errorf("export: xlsx status style: %w", err)
		}
		fills[status] = id
	}

	headerRow := make([]any, len(Columns))
	for i, col := range Columns {
		headerRow[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, header); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}

	for i, row := range rows {
		line := i + 2
		start, _ := excelize.CoordinatesToCellName(1, line)
		end, _ := excelize.CoordinatesToCellName(len(Columns), line)
		values := xlsxValues(row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", row.ID, err)
		}
		if style, ok := fills[row.Status]; ok {
			if err := f.SetCellStyle(SheetName, start, end, style); err != nil {
				return fmt.Errorf("export: xlsx row %d: %w", row.ID, err)
			}
		}
	}

	for i, width := range xlsxColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("export: xlsx width: %w", err)
		}
	}
	if err := f.AutoFilter(SheetName, "A1:"+last, nil); err != nil {
		return fmt.Errorf("export: xlsx filter: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: xlsx write: %w", err)
	}
	return nil
}

func xlsxValues(p products.EnrichedProduct) []any {
	cells := Cells(p)
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	values[0] = p.ID
	values[4] = p.Quantity
	if p.DaysRemaining != nil {
		values[9] = *p.DaysRemaining
	}
	return values
}
