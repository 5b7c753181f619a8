package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderPacked    OrderStatus = "Packed"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
)

// OrderStatuses lists every status an order may hold, in fulfilment order.
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderPacked,
	OrderShipped,
	OrderDelivered,
}

func (s OrderStatus) Valid() bool {
	for _, st := range OrderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

type Order struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Items          []OrderItem        `json:"items" bson:"items"`
	Customer       Customer           `json:"customer" bson:"customer"`
	TotalAmount    float64            `json:"totalAmount" bson:"totalAmount"`
	Status         OrderStatus        `json:"status" bson:"status"`
	IdempotencyKey string             `json:"-" bson:"idempotencyKey,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// OrderItem is a snapshot of the product taken when the order was placed.
type OrderItem struct {
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Title     string             `json:"title" bson:"title"`
	Price     float64            `json:"price" bson:"price"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	Color     string             `json:"color" bson:"color"`
	Size      string             `json:"size" bson:"size"`
}

type Customer struct {
	Name    string `json:"name" bson:"name"`
	Phone   string `json:"phone" bson:"phone"`
	Email   string `json:"email,omitempty" bson:"email,omitempty"`
	Address string `json:"address" bson:"address"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	Pincode string `json:"pincode" bson:"pincode"`
}

// LineItem is one requested (product, color, size, quantity) entry of a cart.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status OrderStatus
	Limit  int64
	Skip   int64
}
