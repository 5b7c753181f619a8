package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/entity"
)

func shirt() *entity.Product {
	return &entity.Product{
		Title: "Shirt",
		Price: 100,
		Variants: []entity.Variant{
			{Color: "Red", Sizes: []entity.SizeStock{{Size: "S", Stock: 0}, {Size: "M", Stock: 3}}},
			{Color: "Blue", Sizes: []entity.SizeStock{{Size: "M", Stock: 7}}},
		},
	}
}

func TestLookupStock_Resolves(t *testing.T) {
	res, err := LookupStock(shirt(), entity.LineItem{ProductID: "p", Quantity: 3, Color: "Red", Size: "M"})

	require.NoError(t, err)
	assert.Equal(t, Resolution{Stock: 3, Title: "Shirt", Price: 100}, res)
}

func TestLookupStock_Failures(t *testing.T) {
	tests := []struct {
		name    string
		product *entity.Product
		line    entity.LineItem
		kind    error
		msg     string
	}{
		{
			name: "unknown product",
			line: entity.LineItem{ProductID: "missing", Quantity: 1, Color: "Red", Size: "M"},
			kind: ErrProductNotFound,
			msg:  "product not found: missing",
		},
		{
			name:    "unknown color",
			product: shirt(),
			line:    entity.LineItem{ProductID: "p", Quantity: 1, Color: "Green", Size: "M"},
			kind:    ErrVariantNotFound,
			msg:     `color "Green" not found`,
		},
		{
			name:    "unknown size",
			product: shirt(),
			line:    entity.LineItem{ProductID: "p", Quantity: 1, Color: "Blue", Size: "XL"},
			kind:    ErrSizeNotFound,
			msg:     `size "XL" not found`,
		},
		{
			name:    "more than available",
			product: shirt(),
			line:    entity.LineItem{ProductID: "p", Quantity: 4, Color: "Red", Size: "M"},
			kind:    ErrInsufficientStock,
			msg:     "insufficient stock, available: 3",
		},
		{
			name:    "sold out size",
			product: shirt(),
			line:    entity.LineItem{ProductID: "p", Quantity: 1, Color: "Red", Size: "S"},
			kind:    ErrInsufficientStock,
			msg:     "insufficient stock, available: 0",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LookupStock(tc.product, tc.line)

			assert.ErrorIs(t, err, tc.kind)
			assert.ErrorContains(t, err, tc.msg)
		})
	}
}

func TestLookupStock_ExactMatchOnly(t *testing.T) {
	_, err := LookupStock(shirt(), entity.LineItem{ProductID: "p", Quantity: 1, Color: "red", Size: "M"})
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = LookupStock(shirt(), entity.LineItem{ProductID: "p", Quantity: 1, Color: "Red", Size: "m"})
	assert.ErrorIs(t, err, ErrSizeNotFound)
}

func TestLookupStock_FirstMatchingVariantWins(t *testing.T) {
	p := shirt()
	p.Variants = append(p.Variants, entity.Variant{Color: "Red", Sizes: []entity.SizeStock{{Size: "M", Stock: 50}}})

	res, err := LookupStock(p, entity.LineItem{ProductID: "p", Quantity: 2, Color: "Red", Size: "M"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stock)

	_, err = LookupStock(p, entity.LineItem{ProductID: "p", Quantity: 10, Color: "Red", Size: "M"})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestLookupStock_DoesNotMutateProduct(t *testing.T) {
	p := shirt()
	before := p.Clone()

	_, _ = LookupStock(p, entity.LineItem{ProductID: "p", Quantity: 2, Color: "Blue", Size: "M"})
	_, _ = LookupStock(p, entity.LineItem{ProductID: "p", Quantity: 99, Color: "Blue", Size: "M"})

	assert.Equal(t, before, p)
}
