package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("record not found")

type NewOrder struct {
	Contact
	DeliveryAddress string
	Notes           *string
	Items           []Item
	DeliveryFee     decimal.Decimal
	TotalAmount     decimal.Decimal
}

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, user_name, user_email, user_phone, delivery_address, notes,
	items, total_amount, delivery_fee, status, payment_status, payment_method, created_at, updated_at`

// InsertOrder stores a delivery order with status pending. The server stamps created_at.
func (r *Repo) InsertOrder(ctx context.Context, in NewOrder) (Order, error) {
	o := Order{
		ID:              uuid.NewString(),
		Contact:         in.Contact,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           in.Notes,
		Items:           in.Items,
		TotalAmount:     in.TotalAmount,
		DeliveryFee:     in.DeliveryFee,
		Status:          OrderPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   PaymentCashOnDelivery,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, user_id, user_name, user_email, user_phone, delivery_address, notes,
		                   items, total_amount, delivery_fee, status, payment_status, payment_method)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at, updated_at`,
		o.ID, o.UserID, o.UserName, o.UserEmail, o.UserPhone, o.DeliveryAddress, o.Notes,
		o.Items, o.TotalAmount, o.DeliveryFee, o.Status, o.PaymentStatus, o.PaymentMethod,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// ListOrders returns newest first.
func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	q, args := listQuery(`SELECT `+orderColumns+` FROM orders`, f)
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus locks the row, checks the transition and writes the new status.
// Returns the previous status.
func (r *Repo) UpdateOrderStatus(ctx context.Context, id string, to OrderStatus) (OrderStatus, error) {
	if !to.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from OrderStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !CanTransitionOrder(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, id, to); err != nil {
		return from, err
	}
	return from, tx.Commit(ctx)
}

// Count is used by the dashboard.
func (r *Repo) Count(ctx context.Context) (orders, reservations int, err error) {
	err = r.DB.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM orders), (SELECT COUNT(*) FROM reservations)`).
		Scan(&orders, &reservations)
	return orders, reservations, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.UserName, &o.UserEmail, &o.UserPhone, &o.DeliveryAddress, &o.Notes,
		&o.Items, &o.TotalAmount, &o.DeliveryFee, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func listQuery(base string, f ListFilter) (string, []any) {
	var args []any
	q := base
	if f.UserID != "" {
		args = append(args, f.UserID)
		q += fmt.Sprintf(` WHERE user_id=$%d`, len(args))
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return q, args
}
