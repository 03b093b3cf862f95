package model

// OrderStatus is the lifecycle state of an order in the ledger.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusRefunded        OrderStatus = "refunded"
	OrderStatusReturnRejected  OrderStatus = "return_rejected"
)

// transitions is the full set of legal status moves. Anything not listed here
// is rejected, including backwards moves by an admin.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusProcessing},
	OrderStatusProcessing:      {OrderStatusShipped},
	OrderStatusShipped:         {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusReturnRequested},
	OrderStatusReturnRequested: {OrderStatusRefunded, OrderStatusReturnRejected},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AdminTransition reports whether the move is one an admin performs. The only
// customer-initiated move is Delivered -> ReturnRequested.
func AdminTransition(from, to OrderStatus) bool {
	return CanTransition(from, to) && !(from == OrderStatusDelivered && to == OrderStatusReturnRequested)
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusReturnRequested, OrderStatusRefunded, OrderStatusReturnRejected:
		return true
	}
	return false
}

// Terminal reports whether no further moves are possible from s.
func Terminal(s OrderStatus) bool {
	return len(transitions[s]) == 0 && ValidStatus(s)
}
