package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is the frozen per-line snapshot stored with a record. It is copied from the
// cart at submission time and never re-read from the catalog.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func SumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

type Contact struct {
	UserID    *string `json:"user_id"`
	UserName  string  `json:"user_name"`
	UserEmail string  `json:"user_email"`
	UserPhone string  `json:"user_phone"`
}

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"

	PaymentCashOnDelivery = "cash_on_delivery"
)

type Order struct {
	ID string `json:"id"`
	Contact
	DeliveryAddress string          `json:"delivery_address"`
	Notes           *string         `json:"notes"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Reservation struct {
	ID string `json:"id"`
	Contact
	Items       []Item            `json:"items"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Status      ReservationStatus `json:"status"`
	ExpiresAt   time.Time         `json:"expires_at"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ListFilter narrows List* queries. Zero values mean "no filter".
type ListFilter struct {
	UserID string
	Limit  int
}
