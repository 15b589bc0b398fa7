package orders

import "errors"

var ErrInvalidTransition = errors.New("invalid status transition")

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:    {OrderConfirmed: true, OrderCancelled: true},
	OrderConfirmed:  {OrderProcessing: true, OrderCancelled: true},
	OrderProcessing: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:    {OrderDelivered: true, OrderCancelled: true},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderNext[s]
	return ok
}

func (s OrderStatus) Terminal() bool { return len(orderNext[s]) == 0 }

func CanTransitionOrder(from, to OrderStatus) bool {
	return orderNext[from][to]
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationReady     ReservationStatus = "ready"
	ReservationPickedUp  ReservationStatus = "picked_up"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
)

var reservationNext = map[ReservationStatus]map[ReservationStatus]bool{
	ReservationPending:   {ReservationReady: true, ReservationExpired: true, ReservationCancelled: true},
	ReservationReady:     {ReservationPickedUp: true, ReservationExpired: true, ReservationCancelled: true},
	ReservationPickedUp:  {},
	ReservationExpired:   {},
	ReservationCancelled: {},
}

func (s ReservationStatus) Valid() bool {
	_, ok := reservationNext[s]
	return ok
}

func (s ReservationStatus) Terminal() bool { return len(reservationNext[s]) == 0 }

func CanTransitionReservation(from, to ReservationStatus) bool {
	return reservationNext[from][to]
}
