package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront-service/internal/entity"
	"storefront-service/internal/repository"
)

// CatalogService serves product reads for the storefront.
type CatalogService struct {
	store repository.Store
	cache StockCache
}

// NewCatalogService creates a new instance of CatalogService. cache may be nil.
func NewCatalogService(store repository.Store, cache StockCache) *CatalogService {
	return &CatalogService{
		store: store,
		cache: cache,
	}
}

type StockLevel struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
}

// GetProduct reads a product, preferring the cache.
func (c *CatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, &StockError{Kind: ErrProductNotFound, ProductID: id}
	}

	if c.cache != nil {
		product, ok, err := c.cache.Get(ctx, oid.Hex())
		if err != nil {
			logger.Error().Err(err).Msgf("Error getting product %s from cache", id)
		} else if ok {
			return product, nil
		}
	}

	product, err := c.store.GetProductByID(ctx, oid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &StockError{Kind: ErrProductNotFound, ProductID: id}
	}
	if err != nil {
		logger.Error().Err(err).Msgf("Error getting product by ID %s", id)
		return nil, err
	}

	// A read that began before an order committed may land here after the
	// order invalidated the entry. The stale figure lives one TTL at most.
	if c.cache != nil {
		if err := c.cache.Set(ctx, product); err != nil {
			logger.Error().Err(err).Msgf("Error setting product %s in cache", id)
		}
	}
	return product, nil
}

// GetStock reports the displayed stock for one (color, size). The figure may
// lag behind by the cache TTL; orders always re-read the store.
func (c *CatalogService) GetStock(ctx context.Context, id, color, size string) (*StockLevel, error) {
	product, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	color = strings.TrimSpace(color)
	size = strings.TrimSpace(size)
	_, err = LookupStock(product, entity.LineItem{ProductID: id, Color: color, Size: size})
	if err != nil {
		return nil, err
	}
	vi, si := product.FindSize(color, size)
	return &StockLevel{
		ProductID: product.ID.Hex(),
		Color:     color,
		Size:      size,
		Stock:     product.Variants[vi].Sizes[si].Stock,
	}, nil
}

// SeedProducts reads a JSON array of products and inserts them.
func (c *CatalogService) SeedProducts(ctx context.Context, r io.Reader) ([]*entity.Product, error) {
	var products []*entity.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	created := make([]*entity.Product, 0, len(products))
	for i, p := range products {
		if err := validateProduct(p); err != nil {
			return created, fmt.Errorf("product %d: %w", i, err)
		}
		product, err := c.store.CreateProduct(ctx, p)
		if err != nil {
			logger.Error().Err(err).Msgf("Error creating product %q", p.Title)
			return created, err
		}
		created = append(created, product)
	}
	return created, nil
}

func validateProduct(p *entity.Product) error {
	if p == nil {
		return &ValidationError{Message: "product is empty"}
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if p.Price < 0 {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	for i, v := range p.Variants {
		if len(v.Sizes) == 0 {
			return &ValidationError{Field: fmt.Sprintf("variants[%d].sizes", i), Message: "must not be empty"}
		}
		for j, s := range v.Sizes {
			if s.Stock < 0 {
				return &ValidationError{Field: fmt.Sprintf("variants[%d].sizes[%d].stock", i, j), Message: "must not be negative"}
			}
		}
	}
	return nil
}
