package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository"
	"storefront-service/internal/verification"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	DefaultOrderTxTimeout = 30 * time.Second
	DefaultEventTimeout   = 3 * time.Second
	defaultListLimit      = 50
	maxListLimit          = 200
)

// IdempotencyGuard remembers idempotency keys of order submissions.
type IdempotencyGuard interface {
	// Claim reports false when key is already held by an earlier request.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// StockCache holds storefront stock reads. It is never consulted when
// validating an order.
type StockCache interface {
	Get(ctx context.Context, productID string) (*entity.Product, bool, error)
	Set(ctx context.Context, product *entity.Product) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

type OrderServiceConfig struct {
	Store        repository.Store
	Verifier     verification.Verifier
	Idempotency  IdempotencyGuard
	StockCache   StockCache
	Events       EventPublisher
	TxTimeout    time.Duration
	EventTimeout time.Duration // bounds each publish made on the request path
}

// OrderService places orders against inventory and drives order status.
type OrderService struct {
	store        repository.Store
	verifier     verification.Verifier
	idempotency  IdempotencyGuard
	stockCache   StockCache
	events       EventPublisher
	txTimeout    time.Duration
	eventTimeout time.Duration
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		store:        cfg.Store,
		verifier:     cfg.Verifier,
		idempotency:  cfg.Idempotency,
		stockCache:   cfg.StockCache,
		events:       cfg.Events,
		txTimeout:    cfg.TxTimeout,
		eventTimeout: cfg.EventTimeout,
	}
	if s.verifier == nil {
		s.verifier = verification.Noop{}
	}
	if s.txTimeout <= 0 {
		s.txTimeout = DefaultOrderTxTimeout
	}
	if s.eventTimeout <= 0 {
		s.eventTimeout = DefaultEventTimeout
	}
	return s
}

type CreateOrderRequest struct {
	Items             []entity.LineItem `json:"items"`
	Customer          entity.Customer   `json:"customer"`
	VerificationToken string            `json:"verificationToken,omitempty"`
	IdempotencyKey    string            `json:"-"`
}

// CreateOrder validates the cart against current stock, then deducts stock
// and stores the order in a single transaction. Nothing is written unless
// every line can be fulfilled.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*entity.Order, error) {
	productIDs, err := normalizeOrderRequest(req)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected malformed order request")
		return nil, err
	}

	if err := s.verify(ctx, req.VerificationToken); err != nil {
		return nil, err
	}

	claimed := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		ok, err := s.idempotency.Claim(ctx, req.IdempotencyKey)
		if err != nil {
			logger.Error().Err(err).Msgf("Error claiming idempotency key %s", req.IdempotencyKey)
			return nil, err
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
		claimed = true
	}

	order, err := s.placeOrder(ctx, req, productIDs)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// an earlier order already holds the key, so keep the claim
		logger.Warn().Msgf("Order with idempotency key %s already stored", req.IdempotencyKey)
		return nil, ErrDuplicateRequest
	}
	if err != nil {
		if claimed {
			// let the client retry the same submission
			if rerr := s.idempotency.Release(context.WithoutCancel(ctx), req.IdempotencyKey); rerr != nil {
				logger.Error().Err(rerr).Msgf("Error releasing idempotency key %s", req.IdempotencyKey)
			}
		}
		return nil, err
	}

	logger.Info().Msgf("Order %s placed with %d items, total %.2f", order.ID.Hex(), len(order.Items), order.TotalAmount)
	s.afterOrderPlaced(ctx, order)
	return order, nil
}

func (s *OrderService) verify(ctx context.Context, token string) error {
	result, err := s.verifier.Verify(ctx, token)
	if err != nil {
		// a supplied token that cannot be checked is a failure
		logger.Error().Err(err).Msg("Error verifying order token")
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	switch result {
	case verification.NotAttempted:
		logger.Debug().Msg("Order verification skipped, no token supplied")
		return nil
	case verification.Passed:
		return nil
	default:
		logger.Warn().Msg("Order verification token rejected")
		return ErrVerificationFailed
	}
}

func (s *OrderService) placeOrder(ctx context.Context, req *CreateOrderRequest, productIDs []primitive.ObjectID) (*entity.Order, error) {
	// pre-validation, outside the transaction
	items := make([]entity.OrderItem, len(req.Items))
	total := decimal.Zero
	for i, line := range req.Items {
		product, err := s.findProduct(ctx, productIDs[i])
		if err != nil {
			logger.Error().Err(err).Msgf("Error getting product %s", line.ProductID)
			return nil, err
		}
		res, err := LookupStock(product, line)
		if err != nil {
			logger.Warn().Err(err).Msgf("Order line %d failed pre-validation", i)
			return nil, err
		}

		items[i] = entity.OrderItem{
			ProductID: productIDs[i],
			Title:     res.Title,
			Price:     res.Price,
			Quantity:  line.Quantity,
			Color:     line.Color,
			Size:      line.Size,
		}
		total = total.Add(decimal.NewFromFloat(res.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	now := time.Now().UTC()
	order := &entity.Order{
		Items:          items,
		Customer:       req.Customer,
		TotalAmount:    total.Round(2).InexactFloat64(),
		Status:         entity.OrderPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err := s.store.WithTransaction(txCtx, func(ctx context.Context, tx repository.Tx) error {
		// Each line is re-validated against the transaction's view, which
		// includes deductions made for earlier lines of this same order.
		for i, line := range req.Items {
			product, err := tx.GetProductByID(ctx, productIDs[i])
			if errors.Is(err, repository.ErrNotFound) {
				product = nil
			} else if err != nil {
				return err
			}
			if _, err := LookupStock(product, line); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, productIDs[i], line.Color, line.Size, line.Quantity); err != nil {
				return err
			}
		}
		return tx.CreateOrder(ctx, order)
	})
	if err != nil {
		if isOrderRejection(err) {
			logger.Warn().Err(err).Msg("Order rejected inside transaction")
			return nil, err
		}
		logger.Error().Err(err).Msg("Error committing order transaction")
		return nil, fmt.Errorf("order transaction failed: %w", err)
	}

	return order, nil
}

// findProduct returns nil without error when the product does not exist.
func (s *OrderService) findProduct(ctx context.Context, id primitive.ObjectID) (*entity.Product, error) {
	if id.IsZero() {
		return nil, nil
	}
	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return product, err
}

func (s *OrderService) afterOrderPlaced(ctx context.Context, order *entity.Order) {
	ctx = context.WithoutCancel(ctx)

	if s.stockCache != nil {
		ids := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID.Hex())
		}
		if err := s.stockCache.Invalidate(ctx, ids...); err != nil {
			logger.Error().Err(err).Msgf("Error invalidating stock cache for order %s", order.ID.Hex())
		}
	}

	if err := s.publishOrderEvent(ctx, order, OrderCreatedEvent); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for order %s", OrderCreatedEvent, order.ID.Hex())
	}
}

// UpdateOrderStatus sets the order status. Any of the known statuses may be
// set from any current status, including moving backwards.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status string) (*entity.Order, error) {
	st := entity.OrderStatus(strings.TrimSpace(status))
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	order, err := s.store.UpdateOrderStatus(ctx, oid, st)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.Error().Err(err).Msgf("Error updating status of order %s", id)
		return nil, err
	}

	logger.Info().Msgf("Order %s status set to %s", id, st)
	if err := s.publishOrderEvent(context.WithoutCancel(ctx), order, OrderStatusUpdatedEvent); err != nil {
		logger.Error().Err(err).Msgf("Error publishing %s event for order %s", OrderStatusUpdatedEvent, id)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*entity.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.store.GetOrderByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting order by ID %s", id)
		return nil, err
	}
	return order, nil
}

// ListOrders returns orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter entity.OrderFilter) ([]*entity.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing orders")
		return nil, err
	}
	return orders, nil
}

// normalizeOrderRequest trims the request in place and checks its shape. The
// returned ids line up with req.Items; ids that are not valid ObjectIDs come
// back as the zero id and later resolve to "product not found".
func normalizeOrderRequest(req *CreateOrderRequest) ([]primitive.ObjectID, error) {
	if req == nil || len(req.Items) == 0 {
		return nil, &ValidationError{Field: "items", Message: "cart is empty"}
	}

	ids := make([]primitive.ObjectID, len(req.Items))
	for i := range req.Items {
		line := &req.Items[i]
		line.ProductID = strings.TrimSpace(line.ProductID)
		line.Color = strings.TrimSpace(line.Color)
		line.Size = strings.TrimSpace(line.Size)

		field := fmt.Sprintf("items[%d]", i)
		switch {
		case line.ProductID == "":
			return nil, &ValidationError{Field: field + ".productId", Message: "is required"}
		case line.Color == "":
			return nil, &ValidationError{Field: field + ".color", Message: "is required"}
		case line.Size == "":
			return nil, &ValidationError{Field: field + ".size", Message: "is required"}
		case line.Quantity <= 0:
			return nil, &ValidationError{Field: field + ".quantity", Message: "must be a positive integer"}
		}

		if oid, err := primitive.ObjectIDFromHex(line.ProductID); err == nil {
			ids[i] = oid
		}
	}

	c := &req.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.Pincode = strings.TrimSpace(c.Pincode)

	required := []struct {
		field string
		value string
	}{
		{"customer.name", c.Name},
		{"customer.phone", c.Phone},
		{"customer.address", c.Address},
		{"customer.city", c.City},
		{"customer.state", c.State},
		{"customer.pincode", c.Pincode},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, &ValidationError{Field: r.field, Message: "is required"}
		}
	}

	return ids, nil
}

func isOrderRejection(err error) bool {
	var stockErr *StockError
	var validationErr *ValidationError
	return errors.As(err, &stockErr) || errors.As(err, &validationErr)
}
