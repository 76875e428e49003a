// Package export renders enriched product listings for reports.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/products"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// Columns is the header shared by every export format.
var Columns = []string{"ID", "Nome", "Lote", "CA", "Quantidade", "Data Compra", "Data Fab.", "Val. Dias", "Data Val.", "Dias Rest.", "Status"}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV streams rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []products.EnrichedProduct) error {
	s := newCSVStreamer(w)
	if err := s.writeRow(Columns); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, row := range rows {
		if err := s.writeRow(Cells(row)); err != nil {
			return fmt.Errorf("export: csv row %d: %w", row.ID, err)
		}
	}
	if err := s.Flush(); err != nil {
		return fmt.Errorf("export: csv flush: %w", err)
	}
	return nil
}

// Cells formats one row in column order.
func Cells(p products.EnrichedProduct) []string {
	approval := ""
	if p.ApprovalCode != nil {
		approval = strconv.FormatInt(*p.ApprovalCode, 10)
	}
	shelfLife := ""
	if p.ShelfLifeDays != nil {
		shelfLife = expiry.FormatShelfLife(*p.ShelfLifeDays)
	}
	days := ""
	if p.DaysRemaining != nil {
		days = strconv.Itoa(*p.DaysRemaining)
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		p.Batch,
		approval,
		strconv.Itoa(p.Quantity),
		calendar.FormatOptional(p.PurchaseDate),
		calendar.FormatOptional(p.ManufactureDate),
		shelfLife,
		calendar.FormatOptional(p.ExpiryDate),
		days,
		p.Status.Label(),
	}
}
