package models

import (
	"time"
)

// OrderStatus is the fixed order lifecycle enumeration.
type OrderStatus string

const (
	OrderProcessing OrderStatus = "Processing"
	OrderShipped    OrderStatus = "Shipped"
	OrderDelivered  OrderStatus = "Delivered"
	OrderCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses lists statuses in lifecycle order.
var OrderStatuses = []OrderStatus{OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

type Product struct {
	ID         string
	Name       string
	Price      float64
	Stock      int
	CategoryID *string
	CreatedAt  time.Time
}

// OutOfStock is derived, never stored.
func (p *Product) OutOfStock() bool {
	return p.Stock == 0
}

type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Price     float64
}

// Order is read-only to the back office. TotalPrice and CreatedAt are nullable in storage:
// reporting tolerates rows that lack them.
type Order struct {
	ID         string
	AccountID  string
	TotalPrice *float64
	Status     OrderStatus
	CreatedAt  *time.Time
	Items      []OrderItem
}

// ProductSalesShare is one product's share of all units sold, in percent.
type ProductSalesShare struct {
	Name    string
	Percent float64
}

// MonthlySales is the total sold in a calendar month. Month is a display label such as
// "October 2024".
type MonthlySales struct {
	Month string
	Total float64
}
