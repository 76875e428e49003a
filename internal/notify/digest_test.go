package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	jobmetrics "github.com/odyssey-erp/ppestock/internal/jobs"
	"github.com/odyssey-erp/ppestock/internal/products"
)

type stubLister struct {
	rows []products.Product
	err  error
}

func (s stubLister) FilterByStatus(_ context.Context, status expiry.Status, today calendar.Date) ([]products.EnrichedProduct, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []products.EnrichedProduct
	for _, p := range s.rows {
		if e := products.Enrich(p, today); e.Status == status {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func product(id int64, name string, exp calendar.Date) products.Product {
	return products.Product{ID: id, Fields: products.Fields{Name: name, Batch: "B" + name, Quantity: 1, ExpiryDate: calendar.Ptr(exp)}}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDigestSendsOnlyNearExpiry(t *testing.T) {
	today := calendar.New(2026, time.October, 1)
	lister := stubLister{rows: []products.Product{
		product(1, "Luva", today.AddDays(10)),
		product(2, "Capacete", today.AddDays(90)),
		product(3, "Bota", today.AddDays(-1)),
	}}
	sender := &recordingSender{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	digest := NewDigest(lister, sender, []string{"seguranca@example.com"}, quiet, metrics)

	n, err := digest.Send(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	require.Equal(t, "Aviso: Produto Luva próximo do vencimento", msg.Subject)
	require.Contains(t, msg.Text, "Luva (Lote: BLuva) vence em 11/10/2026, faltam 10 dia(s)")
	require.NotContains(t, msg.Text, "Capacete")
	require.Len(t, msg.Attachments, 1)
	require.True(t, strings.HasSuffix(msg.Attachments[0].Filename, "2026-10-01.csv"))
	require.Contains(t, string(msg.Attachments[0].Content), "Luva")
}

func TestDigestSkipsWhenNothingIsNearExpiry(t *testing.T) {
	today := calendar.New(2026, time.October, 1)
	sender := &recordingSender{}
	digest := NewDigest(stubLister{rows: []products.Product{product(1, "Luva", today.AddDays(200))}}, sender, []string{"a@example.com"}, quiet, nil)

	n, err := digest.Send(context.Background(), today)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, sender.sent)
}

func TestDigestPropagatesFailures(t *testing.T) {
	today := calendar.New(2026, time.October, 1)
	boom := errors.New("smtp down")
	digest := NewDigest(stubLister{rows: []products.Product{product(1, "Luva", today)}}, &recordingSender{err: boom}, []string{"a@example.com"}, quiet, nil)
	_, err := digest.Send(context.Background(), today)
	require.ErrorIs(t, err, boom)

	digest = NewDigest(stubLister{err: boom}, &recordingSender{}, []string{"a@example.com"}, quiet, nil)
	_, err = digest.Send(context.Background(), today)
	require.ErrorIs(t, err, boom)

	digest = NewDigest(stubLister{}, &recordingSender{}, nil, quiet, nil)
	_, err = digest.Send(context.Background(), today)
	require.Error(t, err)
}

func TestDigestCountsNotifiedProducts(t *testing.T) {
	today := calendar.New(2026, time.October, 1)
	lister := stubLister{rows: []products.Product{
		product(1, "Luva", today.AddDays(1)),
		product(2, "Mascara", today.AddDays(30)),
	}}
	sender := &recordingSender{}
	registry := prometheus.NewRegistry()
	digest := NewDigest(lister, sender, []string{"a@example.com"}, quiet, jobmetrics.NewMetrics(registry))

	_, err := digest.Send(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, "Aviso: 2 produtos próximos do vencimento", sender.sent[0].Subject)

	count, err := testutil.GatherAndCount(registry, "ppestock_near_expiry_notified_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
