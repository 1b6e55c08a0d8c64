package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

var orderStatusSeq = []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered}

func (s OrderStatus) rank() int {
	for i, st := range orderStatusSeq {
		if st == s {
			return i
		}
	}
	return -1
}

// CanAdvanceTo reports whether next is strictly later in the status sequence.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	a, b := s.rank(), next.rank()
	return a >= 0 && b > a
}

// Order is an immutable snapshot of a purchase; only Status may move forward.
type Order struct {
	ID     string      `json:"id"`
	Date   time.Time   `json:"date"`
	Items  []CartItem  `json:"items"`
	Total  float64     `json:"total"`
	Status OrderStatus `json:"status"`
	Role   Role        `json:"role"`
}
