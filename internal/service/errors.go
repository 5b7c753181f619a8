package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrProductNotFound    = errors.New("product not found")
	ErrVariantNotFound    = errors.New("color variant not found")
	ErrSizeNotFound       = errors.New("size not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrOrderNotFound      = errors.New("order not found")
	ErrVerificationFailed = errors.New("verification failed")
	ErrDuplicateRequest   = errors.New("duplicate order request")
	ErrUnauthorized       = errors.New("invalid credentials")
)

// ValidationError reports a malformed cart, line item or customer field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StockError names the line item that could not be fulfilled. Kind is one of
// ErrProductNotFound, ErrVariantNotFound, ErrSizeNotFound or
// ErrInsufficientStock.
type StockError struct {
	Kind      error
	ProductID string
	Title     string
	Color     string
	Size      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	switch e.Kind {
	case ErrProductNotFound:
		return fmt.Sprintf("product not found: %s", e.ProductID)
	case ErrVariantNotFound:
		return fmt.Sprintf("color %q not found for product %q", e.Color, e.Title)
	case ErrSizeNotFound:
		return fmt.Sprintf("size %q not found for color %q of product %q", e.Size, e.Color, e.Title)
	case ErrInsufficientStock:
		return fmt.Sprintf("insufficient stock, available: %d (product %q, color %s, size %s)", e.Available, e.Title, e.Color, e.Size)
	}
	return e.Kind.Error()
}

func (e *StockError) Unwrap() error {
	return e.Kind
}
