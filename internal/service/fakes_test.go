package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository"
	"storefront-service/internal/verification"
)

type fakeVerifier struct {
	result verification.Result
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) (verification.Result, error) {
	f.calls++
	if token == "" {
		return verification.NotAttempted, nil
	}
	return f.result, f.err
}

type fakeGuard struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{keys: make(map[string]bool)}
}

func (g *fakeGuard) Claim(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[key] {
		return false, nil
	}
	g.keys[key] = true
	return true, nil
}

func (g *fakeGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	g.released = append(g.released, key)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[string]*entity.Product
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: make(map[string]*entity.Product)}
}

func (c *fakeCache) Get(ctx context.Context, productID string) (*entity.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	return p.Clone(), ok, nil
}

func (c *fakeCache) Set(ctx context.Context, product *entity.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID.Hex()] = product.Clone()
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, productIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range productIDs {
		delete(c.products, id)
	}
	c.invalidated = append(c.invalidated, productIDs...)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (p *fakePublisher) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

// failingStore makes every transaction fail after fn succeeds.
type failingStore struct {
	repository.Store
}

var errCommitFailed = errors.New("commit failed")

func (s failingStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errCommitFailed
	})
}

func createProduct(t *testing.T, store repository.Store, title string, price float64, variants ...entity.Variant) *entity.Product {
	t.Helper()
	p, err := store.CreateProduct(context.Background(), &entity.Product{
		Title:    title,
		Price:    price,
		Category: "Apparel",
		Variants: variants,
	})
	require.NoError(t, err)
	return p
}

func sizes(pairs ...interface{}) []entity.SizeStock {
	out := make([]entity.SizeStock, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, entity.SizeStock{Size: pairs[i].(string), Stock: pairs[i+1].(int)})
	}
	return out
}

func stockAt(t *testing.T, store repository.Store, p *entity.Product, color, size string) int {
	t.Helper()
	got, err := store.GetProductByID(context.Background(), p.ID)
	require.NoError(t, err)
	vi, si := got.FindSize(color, size)
	require.GreaterOrEqual(t, vi, 0)
	require.GreaterOrEqual(t, si, 0)
	return got.Variants[vi].Sizes[si].Stock
}

func customer() entity.Customer {
	return entity.Customer{
		Name:    "Asha",
		Phone:   "9999999999",
		Address: "12 Lake Road",
		City:    "Pune",
		State:   "MH",
		Pincode: "411001",
	}
}

func line(p *entity.Product, qty int, color, size string) entity.LineItem {
	return entity.LineItem{ProductID: p.ID.Hex(), Quantity: qty, Color: color, Size: size}
}

// hangingPublisher blocks until the publish context ends.
type hangingPublisher struct {
	calls       int
	hadDeadline bool
}

func (p *hangingPublisher) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	p.calls++
	_, p.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}
