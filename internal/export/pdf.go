package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/products"
)

var pdfColumnWidths = []float64{12, 55, 28, 18, 22, 24, 24, 28, 24, 18, 24}

// WritePDF renders rows as a landscape A4 table. generatedOn is printed in the header.
func WritePDF(w io.Writer, title string, generatedOn calendar.Date, rows []products.EnrichedProduct) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(false, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Gerado em %s - %d produto(s)", generatedOn.Display(), len(rows))), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range Columns {
			pdf.CellFormat(pdfColumnWidths[i], 6, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
		}
		r, g, b := statusFill(row.Status)
		pdf.SetFillColor(r, g, b)
		for i, cell := range Cells(row) {
			align := "L"
			if i == 0 || i == 4 || i == 9 {
				align = "R"
			}
			pdf.CellFormat(pdfColumnWidths[i], 6, tr(cell), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("export: pdf output: %w", err)
	}
	return nil
}

func statusFill(s expiry.Status) (int, int, int) {
	switch s {
	case expiry.StatusExpired:
		return 255, 200, 200
	case expiry.StatusNearExpiry:
		return 255, 255, 200
	default:
		return 255, 255, 255
	}
}
