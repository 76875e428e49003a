package products

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ppestock/internal/calendar"
	"github.com/odyssey-erp/ppestock/internal/expiry"
	"github.com/odyssey-erp/ppestock/internal/shared"
)

type memoryStore struct {
	items   map[int64]Product
	order   []int64
	nextID  int64
	listErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: make(map[int64]Product)}
}

func (m *memoryStore) Create(ctx context.Context, f Fields) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	m.nextID++
	m.items[m.nextID] = Product{ID: m.nextID, Fields: f}
	m.order = append(m.order, m.nextID)
	return m.nextID, nil
}

func (m *memoryStore) Update(ctx context.Context, id int64, f Fields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if _, ok := m.items[id]; !ok {
		return shared.NewNotFoundError("product", id)
	}
	m.items[id] = Product{ID: id, Fields: f}
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.items[id]
	if !ok {
		return Product{}, shared.NewNotFoundError("product", id)
	}
	return p, nil
}

func (m *memoryStore) List(ctx context.Context) ([]Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Product, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return shared.NewNotFoundError("product", id)
	}
	delete(m.items, id)
	return nil
}

var testToday = calendar.New(2026, time.October, 19)

func TestAddProductNearExpiryScenario(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	id, err := svc.AddProduct(ctx, ProductInput{
		Name:       "Luva X",
		Batch:      "L100",
		Quantity:   50,
		ExpiryDate: testToday.AddDays(10).Display(),
	})
	require.NoError(t, err)

	items, err := svc.ListProducts(ctx, testToday)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, id, items[0].ID)
	require.Equal(t, expiry.StatusNearExpiry, items[0].Status)
	require.NotNil(t, items[0].DaysRemaining)
	require.Equal(t, 10, *items[0].DaysRemaining)
}

func TestUpdateRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	id, err := svc.AddProduct(ctx, ProductInput{Name: "Luva X", Batch: "L100", Quantity: 50})
	require.NoError(t, err)

	err = svc.UpdateProduct(ctx, id, ProductInput{Name: "Luva X", Batch: "L100", Quantity: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "quantity", verr.Field)

	got, err := svc.GetProduct(ctx, id, testToday)
	require.NoError(t, err)
	require.Equal(t, 50, got.Quantity)
}

func TestDeleteTwiceFailsNotFound(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	id, err := svc.AddProduct(ctx, ProductInput{Name: "Luva X", Batch: "L100", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, id))
	require.ErrorIs(t, svc.DeleteProduct(ctx, id), shared.ErrNotFound)
}

func TestListRecomputesStatusAsTodayAdvances(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, ProductInput{Name: "Respirador", Batch: "R1", Quantity: 5, ExpiryDate: testToday.AddDays(31).Display()})
	require.NoError(t, err)

	first, err := svc.ListProducts(ctx, testToday)
	require.NoError(t, err)
	again, err := svc.ListProducts(ctx, testToday)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Equal(t, expiry.StatusNormal, first[0].Status)

	later, err := svc.ListProducts(ctx, testToday.AddDays(1))
	require.NoError(t, err)
	require.Equal(t, expiry.StatusNearExpiry, later[0].Status)

	muchLater, err := svc.ListProducts(ctx, testToday.AddDays(32))
	require.NoError(t, err)
	require.Equal(t, expiry.StatusExpired, muchLater[0].Status)
	require.Equal(t, -1, *muchLater[0].DaysRemaining)
}

func TestFilterByStatusUsesFreshClassification(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	inputs := []ProductInput{
		{Name: "Luva", Batch: "A", Quantity: 1, ExpiryDate: testToday.AddDays(-1).Display()},
		{Name: "Bota", Batch: "B", Quantity: 1, ExpiryDate: testToday.AddDays(30).Display()},
		{Name: "Capacete", Batch: "C", Quantity: 1, ExpiryDate: testToday.AddDays(400).Display()},
		{Name: "Avental", Batch: "D", Quantity: 1},
	}
	for _, in := range inputs {
		_, err := svc.AddProduct(ctx, in)
		require.NoError(t, err)
	}

	expect := map[expiry.Status]string{
		expiry.StatusExpired:    "Luva",
		expiry.StatusNearExpiry: "Bota",
		expiry.StatusNormal:     "Capacete",
		expiry.StatusUntracked:  "Avental",
	}
	for status, name := range expect {
		items, err := svc.FilterByStatus(ctx, status, testToday)
		require.NoError(t, err)
		require.Len(t, items, 1, status)
		require.Equal(t, name, items[0].Name)
	}

	_, err := svc.FilterByStatus(ctx, expiry.Status("SOON"), testToday)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSearchByNameOrBatchIsCaseInsensitive(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	for _, in := range []ProductInput{
		{Name: "Máscara PFF2", Batch: "mx-900", Quantity: 10},
		{Name: "Óculos", Batch: "OC-1", Quantity: 10},
		{Name: "Luva", Batch: "LV-MX", Quantity: 10},
	} {
		_, err := svc.AddProduct(ctx, in)
		require.NoError(t, err)
	}

	items, err := svc.SearchByNameOrBatch(ctx, "MX", testToday)
	require.NoError(t, err)
	require.Len(t, items, 2)

	items, err = svc.SearchByNameOrBatch(ctx, "máscara", testToday)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Máscara PFF2", items[0].Name)

	items, err = svc.SearchByNameOrBatch(ctx, "  ", testToday)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestFilterCombinesTermAndStatus(t *testing.T) {
	svc := NewService(newMemoryStore(), nil)
	ctx := context.Background()

	_, err := svc.AddProduct(ctx, ProductInput{Name: "Luva A", Batch: "1", Quantity: 1, ExpiryDate: testToday.AddDays(5).Display()})
	require.NoError(t, err)
	_, err = svc.AddProduct(ctx, ProductInput{Name: "Luva B", Batch: "2", Quantity: 1, ExpiryDate: testToday.AddDays(90).Display()})
	require.NoError(t, err)

	items, err := svc.Filter(ctx, Filter{Term: "luva", Status: expiry.StatusNearExpiry}, testToday)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Luva A", items[0].Name)
}

func TestListSurfacesStorageError(t *testing.T) {
	store := newMemoryStore()
	store.listErr = shared.NewStorageError("products: list", errors.New("disk gone"))
	svc := NewService(store, nil)

	items, err := svc.ListProducts(context.Background(), testToday)
	require.ErrorIs(t, err, shared.ErrStorage)
	require.Nil(t, items)
}

func TestAddProductWithOversizedShelfLifeKeepsListingReadable(t *testing.T) {
	repo, _ := newTestRepository(t)
	svc := NewService(repo, nil)
	ctx := context.Background()

	huge := 3000000
	_, err := svc.AddProduct(ctx, ProductInput{Name: "Capacete", Batch: "C1", Quantity: 1, ManufactureDate: "01/01/2020", ShelfLifeDays: &huge})
	requireFieldError(t, err, "shelf_life_days")

	_, err = svc.AddProduct(ctx, ProductInput{Name: "Luva", Batch: "L1", Quantity: 1, ExpiryDate: "31/12/2999"})
	require.NoError(t, err)

	items, err := svc.ListProducts(ctx, testToday)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 355454, *items[0].DaysRemaining)
}
