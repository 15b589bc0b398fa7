package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost     = 10
	minPasswordLen = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrInvalidEmail       = errors.New("email is required")
)

type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	Promote(ctx context.Context, id string, role Role, passwordHash string) error
}

type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users  UserStore
	rdb    *redis.Client
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserStore, rdb *redis.Client, secret string, ttl time.Duration) *Service {
	return &Service{users: users, rdb: rdb, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return Session{}, ErrInvalidEmail
	}
	if len(in.Password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return Session{}, err
	}
	u, err := s.users.CreateUser(ctx, User{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         RoleCustomer,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Session{}, err
	}
	return s.issue(u)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

// SignOut revokes the token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if _, err := redisx.SetOnce(ctx, s.rdb, fmt.Sprintf(redisx.KeyRevokedToken, c.ID), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	c, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := redisx.Exists(ctx, s.rdb, fmt.Sprintf(redisx.KeyRevokedToken, c.ID))
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	u, err := s.users.UserByID(ctx, c.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureAdmin creates the back-office account, or promotes and re-keys it when it exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}

	u, err := s.users.UserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		_, err = s.users.CreateUser(ctx, User{Email: email, FullName: "Admin", Role: RoleAdmin, PasswordHash: string(hash)})
		return err
	case err != nil:
		return err
	}
	return s.users.Promote(ctx, u.ID, RoleAdmin, string(hash))
}

func (s *Service) issue(u User) (Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: signed, ExpiresAt: exp.Truncate(time.Second), User: u}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || c.ID == "" || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
