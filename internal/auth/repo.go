package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const uniqueViolation = "23505"

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, email, full_name, role, password_hash, created_at`

func (r *Repo) CreateUser(ctx context.Context, u User) (User, error) {
	u.ID = uuid.NewString()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, full_name, role, password_hash)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		u.ID, u.Email, u.FullName, u.Role, u.PasswordHash,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *Repo) UserByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// Promote sets the role and password hash of an existing account.
func (r *Repo) Promote(ctx context.Context, id string, role Role, passwordHash string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE users SET role=$2, password_hash=$3 WHERE id=$1`, id, role, passwordHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) one(ctx context.Context, q string, arg any) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}
