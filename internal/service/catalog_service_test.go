package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository"
)

func TestCatalogService_GetStock(t *testing.T) {
	store := repository.NewMemoryStore()
	p := createProduct(t, store, "Shirt", 100, entity.Variant{Color: "Red", Sizes: sizes("M", 3, "L", 0)})
	catalog := NewCatalogService(store, nil)

	level, err := catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, &StockLevel{ProductID: p.ID.Hex(), Color: "Red", Size: "M", Stock: 3}, level)

	// a sold-out size is still a valid answer
	level, err = catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "L")
	require.NoError(t, err)
	assert.Equal(t, 0, level.Stock)

	_, err = catalog.GetStock(context.Background(), p.ID.Hex(), "Blue", "M")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = catalog.GetStock(context.Background(), primitive.NewObjectID().Hex(), "Red", "M")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = catalog.GetStock(context.Background(), "garbage", "Red", "M")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogService_ServesFromCacheUntilInvalidated(t *testing.T) {
	store := repository.NewMemoryStore()
	p := createProduct(t, store, "Shirt", 100, entity.Variant{Color: "Red", Sizes: sizes("M", 3)})
	cache := newFakeCache()
	catalog := NewCatalogService(store, cache)
	svc := NewOrderService(OrderServiceConfig{Store: store, StockCache: cache})

	level, err := catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, level.Stock)
	assert.Contains(t, cache.products, p.ID.Hex())

	_, err = svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Items:    []entity.LineItem{line(p, 2, "Red", "M")},
		Customer: customer(),
	})
	require.NoError(t, err)

	level, err = catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 1, level.Stock)
}

func TestCatalogService_OrdersIgnoreStaleCache(t *testing.T) {
	store := repository.NewMemoryStore()
	p := createProduct(t, store, "Shirt", 100, entity.Variant{Color: "Red", Sizes: sizes("M", 1)})
	cache := newFakeCache()

	stale := p.Clone()
	stale.Variants[0].Sizes[0].Stock = 50
	require.NoError(t, cache.Set(context.Background(), stale))

	svc := NewOrderService(OrderServiceConfig{Store: store, StockCache: cache})
	_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Items:    []entity.LineItem{line(p, 2, "Red", "M")},
		Customer: customer(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, stockAt(t, store, p, "Red", "M"))
}

// readHookStore runs afterRead once, between reading a product and returning it.
type readHookStore struct {
	repository.Store
	afterRead func()
}

func (s *readHookStore) GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	p, err := s.Store.GetProductByID(ctx, id)
	if hook := s.afterRead; hook != nil {
		s.afterRead = nil
		hook()
	}
	return p, err
}

func TestCatalogService_LateCacheFillStaysAdvisory(t *testing.T) {
	store := repository.NewMemoryStore()
	p := createProduct(t, store, "Shirt", 100, entity.Variant{Color: "Red", Sizes: sizes("M", 3)})
	cache := newFakeCache()
	svc := NewOrderService(OrderServiceConfig{Store: store, StockCache: cache})

	// the order commits and invalidates while the storefront read is in flight
	hooked := &readHookStore{Store: store, afterRead: func() {
		_, err := svc.CreateOrder(context.Background(), &CreateOrderRequest{
			Items:    []entity.LineItem{line(p, 2, "Red", "M")},
			Customer: customer(),
		})
		require.NoError(t, err)
	}}
	catalog := NewCatalogService(hooked, cache)

	level, err := catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, level.Stock)

	level, err = catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 3, level.Stock, "stale until the entry expires or is invalidated")

	_, err = svc.CreateOrder(context.Background(), &CreateOrderRequest{
		Items:    []entity.LineItem{line(p, 2, "Red", "M")},
		Customer: customer(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.ErrorContains(t, err, "available: 1")

	require.NoError(t, cache.Invalidate(context.Background(), p.ID.Hex()))
	level, err = catalog.GetStock(context.Background(), p.ID.Hex(), "Red", "M")
	require.NoError(t, err)
	assert.Equal(t, 1, level.Stock)
}

func TestCatalogService_SeedProducts(t *testing.T) {
	store := repository.NewMemoryStore()
	catalog := NewCatalogService(store, nil)

	input := `[
		{"title": " Shirt ", "price": 100, "category": "Apparel",
		 "variants": [{"color": "Red", "sizes": [{"size": "M", "stock": 3}]}]},
		{"title": "Cap", "price": 20, "category": "Accessories",
		 "variants": [{"color": "Black", "sizes": [{"size": "OS", "stock": 10}]}]}
	]`

	products, err := catalog.SeedProducts(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Shirt", products[0].Title)
	assert.Equal(t, entity.CategoryRef("Apparel"), products[0].Category)

	got, err := catalog.GetProduct(context.Background(), products[1].ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 10, got.Variants[0].Sizes[0].Stock)
}

func TestCatalogService_SeedProductsRejectsInvalid(t *testing.T) {
	catalog := NewCatalogService(repository.NewMemoryStore(), nil)

	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: `{`},
		{name: "missing title", input: `[{"price": 1, "variants": []}]`},
		{name: "negative stock", input: `[{"title": "x", "price": 1, "variants": [{"color": "Red", "sizes": [{"size": "M", "stock": -1}]}]}]`},
		{name: "negative price", input: `[{"title": "x", "price": -1}]`},
		{name: "variant without sizes", input: `[{"title": "x", "price": 1, "variants": [{"color": "Red", "sizes": []}]}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := catalog.SeedProducts(context.Background(), strings.NewReader(tc.input))
			assert.Error(t, err)
		})
	}
}
