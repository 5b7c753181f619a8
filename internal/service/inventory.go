package service

import (
	"storefront-service/internal/entity"
)

// Resolution is the outcome of a successful stock lookup for one line item.
type Resolution struct {
	Stock int
	Title string
	Price float64
}

// LookupStock resolves the stock held by product for the line's exact
// (color, size) and checks it covers the requested quantity. A nil product
// means the id did not resolve. LookupStock never mutates product.
func LookupStock(product *entity.Product, line entity.LineItem) (Resolution, error) {
	if product == nil {
		return Resolution{}, &StockError{
			Kind:      ErrProductNotFound,
			ProductID: line.ProductID,
			Color:     line.Color,
			Size:      line.Size,
			Requested: line.Quantity,
		}
	}

	stockErr := func(kind error, available int) *StockError {
		return &StockError{
			Kind:      kind,
			ProductID: line.ProductID,
			Title:     product.Title,
			Color:     line.Color,
			Size:      line.Size,
			Requested: line.Quantity,
			Available: available,
		}
	}

	vi, si := product.FindSize(line.Color, line.Size)
	if vi < 0 {
		return Resolution{}, stockErr(ErrVariantNotFound, 0)
	}
	if si < 0 {
		return Resolution{}, stockErr(ErrSizeNotFound, 0)
	}

	stock := product.Variants[vi].Sizes[si].Stock
	if stock < line.Quantity {
		return Resolution{}, stockErr(ErrInsufficientStock, stock)
	}

	return Resolution{
		Stock: stock,
		Title: product.Title,
		Price: product.Price,
	}, nil
}
