package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/export"
	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
	"github.com/odyssey-erp/ppestock/internal/products"
)

// Lister returns products classified for a given day.
type Lister interface {
	FilterByStatus(ctx context.Context, status expiry.Status, today calendar.Date) ([]products.EnrichedProduct, error)
}

// Digest mails the near-expiry products of a day to a fixed recipient list.
type Digest struct {
	lister  Lister
	sender  Sender
	to      []string
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewDigest builds a Digest.
func NewDigest(lister Lister, sender Sender, to []string, logger *slog.Logger, metrics *jobmetrics.Metrics) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{lister: lister, sender: sender, to: to, logger: logger.With(slog.String("component", "notify")), metrics: metrics}
}

// Send mails the digest for today and returns how many products it listed.
// Nothing is sent when no product is near expiry.
func (d *Digest) Send(ctx context.Context, today calendar.Date) (int, error) {
	if len(d.to) == 0 {
		return 0, fmt.Errorf("notify: no recipients configured")
	}
	rows, err := d.lister.FilterByStatus(ctx, expiry.StatusNearExpiry, today)
	if err != nil {
		return 0, fmt.Errorf("notify: list near expiry: %w", err)
	}
	if len(rows) == 0 {
		d.logger.Debug("no products near expiry", slog.String("today", today.String()))
		return 0, nil
	}

	attachment := &bytes.Buffer{}
	if err := export.WriteCSV(attachment, rows); err != nil {
		return 0, err
	}
	msg := Message{
		To:      d.to,
		Subject: subject(rows),
		Text:    body(rows, today),
		Attachments: []Attachment{{
			Filename:    "epis_proximos_do_vencimento_" + today.String() + ".csv",
			ContentType: "text/csv; charset=utf-8",
			Content:     attachment.Bytes(),
		}},
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return 0, err
	}
	d.metrics.AddNotified(len(rows))
	d.logger.Info("near expiry digest sent", slog.Int("products", len(rows)), slog.Int("recipients", len(d.to)))
	return len(rows), nil
}

func subject(rows []products.EnrichedProduct) string {
	if len(rows) == 1 {
		return fmt.Sprintf("Aviso: Produto %s próximo do vencimento", rows[0].Name)
	}
	return fmt.Sprintf("Aviso: %d produtos próximos do vencimento", len(rows))
}

func body(rows []products.EnrichedProduct, today calendar.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produtos a até %d dias do vencimento em %s:\n\n", expiry.NearExpiryWindow, today.Display())
	for _, p := range rows {
		fmt.Fprintf(&b, "- %s (Lote: %s) vence em %s, faltam %d dia(s)\n",
			p.Name, p.Batch, calendar.FormatOptional(p.ExpiryDate), *p.DaysRemaining)
	}
	return b.String()
}
