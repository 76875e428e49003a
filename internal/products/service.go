package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

// RecordStore abstracts persistence used by the service.
type RecordStore interface {
	Create(ctx context.Context, f Fields) (int64, error)
	Update(ctx context.Context, id int64, f Fields) error
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Delete(ctx context.Context, id int64) error
}

// Service combines the record store with expiry classification. Every product
// it returns carries derived fields computed for the evaluation date passed in.
type Service struct {
	store  RecordStore
	logger *slog.Logger
}

// NewService builds Service.
func NewService(store RecordStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger.With(slog.String("component", "products"))}
}

// AddProduct validates input and stores a new product.
func (s *Service) AddProduct(ctx context.Context, input ProductInput) (int64, error) {
	fields, err := ParseInput(input)
	if err != nil {
		return 0, err
	}
	id, err := s.store.Create(ctx, fields)
	if err != nil {
		s.logger.Error("add product", slog.String("batch", fields.Batch), slog.Any("error", err))
		return 0, err
	}
	s.logger.Info("product added", slog.Int64("id", id), slog.String("batch", fields.Batch))
	return id, nil
}

// UpdateProduct re-validates the full record and overwrites product id.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) error {
	fields, err := ParseInput(input)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, fields); err != nil {
		s.logger.Error("update product", slog.Int64("id", id), slog.Any("error", err))
		return err
	}
	return nil
}

// DeleteProduct removes product id.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Error("delete product", slog.Int64("id", id), slog.Any("error", err))
		return err
	}
	return nil
}

// GetProduct loads product id enriched for today.
func (s *Service) GetProduct(ctx context.Context, id int64, today calendar.Date) (EnrichedProduct, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return EnrichedProduct{}, err
	}
	return Enrich(p, today), nil
}

// ListProducts returns every product enriched for today.
func (s *Service) ListProducts(ctx context.Context, today calendar.Date) ([]EnrichedProduct, error) {
	return s.Filter(ctx, Filter{}, today)
}

// FilterByStatus returns products whose freshly computed status equals status.
func (s *Service) FilterByStatus(ctx context.Context, status expiry.Status, today calendar.Date) ([]EnrichedProduct, error) {
	if !status.Valid() {
		return nil, shared.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.Filter(ctx, Filter{Status: status}, today)
}

// SearchByNameOrBatch matches term case-insensitively against name or batch.
func (s *Service) SearchByNameOrBatch(ctx context.Context, term string, today calendar.Date) ([]EnrichedProduct, error) {
	return s.Filter(ctx, Filter{Term: term}, today)
}

// Filter applies term and status together.
func (s *Service) Filter(ctx context.Context, filter Filter, today calendar.Date) ([]EnrichedProduct, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("list products", slog.Any("error", err))
		return nil, err
	}
	folder := cases.Fold()
	term := folder.String(strings.TrimSpace(filter.Term))
	out := make([]EnrichedProduct, 0, len(items))
	for _, p := range items {
		if term != "" && !strings.Contains(folder.String(p.Name), term) && !strings.Contains(folder.String(p.Batch), term) {
			continue
		}
		enriched := Enrich(p, today)
		if filter.Status != "" && enriched.Status != filter.Status {
			continue
		}
		out = append(out, enriched)
	}
	return out, nil
}
