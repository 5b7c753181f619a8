package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/entity"
)

var (
	// ErrNotFound is returned when a product or order document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrTxConflict is returned when a transaction lost a race with a
	// concurrent commit and may be retried from scratch.
	ErrTxConflict = errors.New("transaction conflict")
	// ErrStockChanged is returned by DecrementStock when the targeted size no
	// longer holds enough stock for the decrement.
	ErrStockChanged = errors.New("stock changed during transaction")
	// ErrDuplicateKey is returned when an order reuses an idempotency key.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Tx is the unit of work handed to WithTransaction callbacks. Reads observe
// the transaction's own earlier writes.
type Tx interface {
	GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error)
	DecrementStock(ctx context.Context, productID primitive.ObjectID, color, size string, quantity int) error
	CreateOrder(ctx context.Context, order *entity.Order) error
}

// Store is the data-access dependency shared by every request. It is opened
// once at process start and closed at shutdown.
type Store interface {
	GetProductByID(ctx context.Context, id primitive.ObjectID) (*entity.Product, error)
	CreateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)
	UpdateProduct(ctx context.Context, product *entity.Product) (*entity.Product, error)

	GetOrderByID(ctx context.Context, id primitive.ObjectID) (*entity.Order, error)
	ListOrders(ctx context.Context, filter entity.OrderFilter) ([]*entity.Order, error)
	UpdateOrderStatus(ctx context.Context, id primitive.ObjectID, status entity.OrderStatus) (*entity.Order, error)

	// WithTransaction runs fn atomically. If fn returns an error nothing it
	// wrote survives. Conflicts with concurrent transactions are retried by
	// re-running fn.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close(ctx context.Context) error
}
