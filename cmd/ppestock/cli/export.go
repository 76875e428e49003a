package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/export"
	"github.com/odyssey-erp/ppestock/internal/products"
)

// Lister returns the filtered, classified product listing.
type Lister interface {
	Filter(ctx context.Context, filter products.Filter, today calendar.Date) ([]products.EnrichedProduct, error)
}

// ExportCLI writes product listings to CSV, PDF or XLSX files.
type ExportCLI struct {
	lister Lister
	today  func() calendar.Date
}

// NewExportCLI builds the helper around lister.
func NewExportCLI(lister Lister) (*ExportCLI, error) {
	if lister == nil {
		return nil, errors.New("export cli: lister required")
	}
	return &ExportCLI{lister: lister, today: calendar.Today}, nil
}

// ExportOptions defines flags for the export command.
type ExportOptions struct {
	Format string
	Output string
	Status string
	Term   string
	Today  string
	Stdout io.Writer
	Stderr io.Writer
}

// ExportCommand renders the listing. Output "-" or empty writes to Stdout.
func (c *ExportCLI) ExportCommand(ctx context.Context, opts ExportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	today := c.today()
	if raw := strings.TrimSpace(opts.Today); raw != "" {
		d, err := calendar.ParseAny(raw)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "export: invalid --today %q\n", raw)
			return 1
		}
		today = d
	}
	filter := products.Filter{Term: opts.Term}
	if raw := strings.TrimSpace(opts.Status); raw != "" {
		status, err := expiry.ParseStatus(raw)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
			return 1
		}
		filter.Status = status
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" && format != "xlsx" {
		_, _ = fmt.Fprintf(opts.Stderr, "export: unsupported format %q (csv, pdf or xlsx)\n", opts.Format)
		return 1
	}

	rows, err := c.lister.Filter(ctx, filter, today)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 1
	}

	out := opts.Stdout
	var file *os.File
	if opts.Output != "" && opts.Output != "-" {
		file, err = os.Create(opts.Output)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
			return 1
		}
		out = file
	}
	switch format {
	case "pdf":
		err = export.WritePDF(out, "Controle de EPIs", today, rows)
	case "xlsx":
		err = export.WriteXLSX(out, rows)
	default:
		err = export.WriteCSV(out, rows)
	}
	if file != nil {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "export: %v\n", err)
		return 1
	}
	if file != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "exported %d products to %s\n", len(rows), opts.Output)
	}
	return 0
}
