package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storefront-service/internal/entity"
	"storefront-service/internal/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new instance of OrderHandler
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type createdOrder struct {
	ID          string  `json:"id"`
	TotalAmount float64 `json:"totalAmount"`
}

// CreateOrder places an order for the cart --> POST /api/orders
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	req := service.CreateOrderRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}
	req.IdempotencyKey = c.Request().Header.Get(IdempotencyKeyHeader)

	order, err := h.orderService.CreateOrder(c.Request().Context(), &req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]createdOrder{
		"order": {ID: order.ID.Hex(), TotalAmount: order.TotalAmount},
	})
}

// UpdateOrderStatus sets an order's status --> PUT /api/orders/:id/status
func (h *OrderHandler) UpdateOrderStatus(c echo.Context) error {
	body := struct {
		Status string `json:"status"`
	}{}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request payload"})
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request().Context(), c.Param("id"), body.Status)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]*entity.Order{"order": order})
}

// GetOrder returns one order --> GET /api/orders/:id
func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.orderService.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]*entity.Order{"order": order})
}

// ListOrders lists orders, newest first --> GET /api/orders?status=&limit=&skip=
func (h *OrderHandler) ListOrders(c echo.Context) error {
	filter := entity.OrderFilter{Status: entity.OrderStatus(c.QueryParam("status"))}

	var err error
	if v := c.QueryParam("limit"); v != "" {
		if filter.Limit, err = strconv.ParseInt(v, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
		}
	}
	if v := c.QueryParam("skip"); v != "" {
		if filter.Skip, err = strconv.ParseInt(v, 10, 64); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid skip"})
		}
	}

	orders, err := h.orderService.ListOrders(c.Request().Context(), filter)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]*entity.Order{"orders": orders})
}
