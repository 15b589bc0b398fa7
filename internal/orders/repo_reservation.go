package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type NewReservation struct {
	Contact
	Items       []Item
	TotalAmount decimal.Decimal
	ExpiresAt   time.Time
}

const reservationColumns = `id, user_id, user_name, user_email, user_phone, items, total_amount,
	status, expires_at, created_at, updated_at`

func (r *Repo) InsertReservation(ctx context.Context, in NewReservation) (Reservation, error) {
	res := Reservation{
		ID:          uuid.NewString(),
		Contact:     in.Contact,
		Items:       in.Items,
		TotalAmount: in.TotalAmount,
		Status:      ReservationPending,
		ExpiresAt:   in.ExpiresAt,
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO reservations(id, user_id, user_name, user_email, user_phone, items, total_amount, status, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		res.ID, res.UserID, res.UserName, res.UserEmail, res.UserPhone, res.Items, res.TotalAmount, res.Status, res.ExpiresAt,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	return res, nil
}

func (r *Repo) GetReservation(ctx context.Context, id string) (Reservation, error) {
	res, err := scanReservation(r.DB.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	return res, err
}

func (r *Repo) ListReservations(ctx context.Context, f ListFilter) ([]Reservation, error) {
	q, args := listQuery(`SELECT `+reservationColumns+` FROM reservations`, f)
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateReservationStatus is operator-driven only; the countdown reaching zero
// never calls it.
func (r *Repo) UpdateReservationStatus(ctx context.Context, id string, to ReservationStatus) (ReservationStatus, error) {
	if !to.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from ReservationStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id=$1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !CanTransitionReservation(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status=$2, updated_at=now() WHERE id=$1`, id, to); err != nil {
		return from, err
	}
	return from, tx.Commit(ctx)
}

func scanReservation(row pgx.Row) (Reservation, error) {
	var res Reservation
	err := row.Scan(&res.ID, &res.UserID, &res.UserName, &res.UserEmail, &res.UserPhone, &res.Items,
		&res.TotalAmount, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}
