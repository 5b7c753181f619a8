package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

type ProductHandler struct {
	catalogService *service.CatalogService
}

// NewProductHandler creates a new instance of ProductHandler
func NewProductHandler(catalogService *service.CatalogService) *ProductHandler {
	return &ProductHandler{catalogService: catalogService}
}

// GetProduct --> GET /api/products/:id
func (h *ProductHandler) GetProduct(c echo.Context) error {
	product, err := h.catalogService.GetProduct(c.Request().Context(), c.Param("id"))
	if err != nil {
		return productErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]*entity.Product{"product": product})
}

// GetProductStock --> GET /api/products/:id/stock?color=&size=
func (h *ProductHandler) GetProductStock(c echo.Context) error {
	color, size := c.QueryParam("color"), c.QueryParam("size")
	if color == "" || size == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "color and size are required"})
	}

	stock, err := h.catalogService.GetStock(c.Request().Context(), c.Param("id"), color, size)
	if err != nil {
		return productErrorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stock)
}

// a missing product, color or size is a 404 on catalog reads
func productErrorJSON(c echo.Context, err error) error {
	if errors.Is(err, service.ErrProductNotFound) ||
		errors.Is(err, service.ErrVariantNotFound) ||
		errors.Is(err, service.ErrSizeNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return errorJSON(c, err)
}
