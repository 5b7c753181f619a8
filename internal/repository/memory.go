package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/entity"
)

const defaultMemoryTxAttempts = 8

type productRecord struct {
	mu      sync.Mutex
	product *entity.Product
	version uint64
}

// MemoryStore keeps products and orders in process memory. Transactions are
// optimistic: writes are buffered per transaction and applied at commit
// under per-product locks taken in id order, after checking that nothing the
// transaction read has changed since.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[primitive.ObjectID]*productRecord
	orders   map[primitive.ObjectID]*entity.Order

	maxAttempts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:    make(map[primitive.ObjectID]*productRecord),
		orders:      make(map[primitive.ObjectID]*entity.Order),
		maxAttempts: defaultMemoryTxAttempts,
	}
}

func (s *MemoryStore) record(id primitive.ObjectID) *productRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}

func (s *MemoryStore) GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	rec := s.record(id)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.product.Clone(), nil
}

func (s *MemoryStore) CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return nil, fmt.Errorf("product %s already exists", product.ID.Hex())
	}
	s.products[product.ID] = &productRecord{product: product.Clone()}
	return product, nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error) {
	rec := s.record(product.ID)
	if rec == nil {
		return nil, ErrNotFound
	}
	product.UpdatedAt = time.Now().UTC()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.product = product.Clone()
	rec.version++
	return product, nil
}

func (s *MemoryStore) GetOrderByID(ctx context.Context, id primitive.ObjectID) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]*entity.Order, error) {
	s.mu.RLock()
	orders := make([]*entity.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	s.mu.RUnlock()

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.Hex() > orders[j].ID.Hex()
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if filter.Skip > 0 {
		if filter.Skip >= int64(len(orders)) {
			return []*entity.Order{}, nil
		}
		orders = orders[filter.Skip:]
	}
	if filter.Limit > 0 && filter.Limit < int64(len(orders)) {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status entity.OrderStatus) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	return cloneOrder(order), nil
}

func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := &memoryTx{
			store:  s,
			reads:  make(map[primitive.ObjectID]uint64),
			writes: make(map[primitive.ObjectID]*entity.Product),
		}
		if err := fn(ctx, tx); err != nil {
			// buffered writes are simply dropped
			return err
		}

		err := tx.commit()
		if errors.Is(err, ErrTxConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.maxAttempts, ErrTxConflict)
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

type memoryTx struct {
	store  *MemoryStore
	reads  map[primitive.ObjectID]uint64
	writes map[primitive.ObjectID]*entity.Product
	orders []*entity.Order
}

func (tx *memoryTx) load(id primitive.ObjectID) (*entity.Product, error) {
	if p, ok := tx.writes[id]; ok {
		return p, nil
	}
	rec := tx.store.record(id)
	if rec == nil {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	p := rec.product.Clone()
	version := rec.version
	rec.mu.Unlock()

	tx.reads[id] = version
	tx.writes[id] = p
	return p, nil
}

func (tx *memoryTx) GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	p, err := tx.load(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func (tx *memoryTx) DecrementStock(ctx context.Context, productID primitive.ObjectID, color, size string, quantity int) error {
	p, err := tx.load(productID)
	if err != nil {
		return err
	}
	vi, si := p.FindSize(color, size)
	if vi < 0 || si < 0 {
		return ErrStockChanged
	}
	stock := &p.Variants[vi].Sizes[si].Stock
	if *stock < quantity {
		return ErrStockChanged
	}
	*stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (tx *memoryTx) CreateOrder(ctx context.Context, order *entity.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	tx.orders = append(tx.orders, cloneOrder(order))
	return nil
}

func (tx *memoryTx) commit() error {
	ids := make([]primitive.ObjectID, 0, len(tx.reads))
	for id := range tx.reads {
		ids = append(ids, id)
	}
	// fixed lock order, so two committing transactions cannot deadlock
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	recs := make([]*productRecord, len(ids))
	for i, id := range ids {
		rec := tx.store.record(id)
		if rec == nil {
			return ErrTxConflict
		}
		recs[i] = rec
	}
	for _, rec := range recs {
		rec.mu.Lock()
		defer rec.mu.Unlock()
	}

	for i, id := range ids {
		if recs[i].version != tx.reads[id] {
			return ErrTxConflict
		}
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, o := range tx.orders {
		if _, exists := tx.store.orders[o.ID]; exists {
			return fmt.Errorf("order %s already exists", o.ID.Hex())
		}
		if o.IdempotencyKey != "" {
			for _, existing := range tx.store.orders {
				if existing.IdempotencyKey == o.IdempotencyKey {
					return fmt.Errorf("order with idempotency key %q already exists: %w", o.IdempotencyKey, ErrDuplicateKey)
				}
			}
		}
	}

	for i, id := range ids {
		if p := tx.writes[id]; p != nil && !productEqual(p, recs[i].product) {
			recs[i].product = p
			recs[i].version++
		}
	}
	for _, o := range tx.orders {
		tx.store.orders[o.ID] = o
	}
	return nil
}

func productEqual(a, b *entity.Product) bool {
	if len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		if len(a.Variants[i].Sizes) != len(b.Variants[i].Sizes) {
			return false
		}
		for j := range a.Variants[i].Sizes {
			if a.Variants[i].Sizes[j] != b.Variants[i].Sizes[j] {
				return false
			}
		}
	}
	return true
}

func cloneOrder(o *entity.Order) *entity.Order {
	cp := *o
	cp.Items = append([]entity.OrderItem(nil), o.Items...)
	return &cp
}
