// Package checkout turns a cart and a contact form into a stored order or reservation.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrAuthRequired       = errors.New("sign in to place an order")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrSubmissionInFlight = errors.New("a submission for this cart is already in progress")
	ErrUnknownMode        = errors.New("unknown checkout mode")
)

// SubmitError wraps a failed insert. Its message is the cause's, unchanged.
type SubmitError struct {
	Mode Mode
	Err  error
}

func (e *SubmitError) Error() string { return e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

type Repository interface {
	InsertOrder(ctx context.Context, in orders.NewOrder) (orders.Order, error)
	InsertReservation(ctx context.Context, in orders.NewReservation) (orders.Reservation, error)
}

type FeeSource interface {
	DeliveryFee(ctx context.Context) decimal.Decimal
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Result struct {
	ID          string          `json:"id"`
	Mode        Mode            `json:"mode"`
	Total       decimal.Decimal `json:"total_amount"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

type Config struct {
	HoldWindow time.Duration
	Producer   string
}

type Service struct {
	repo Repository
	fees FeeSource
	pub  Publisher
	log  *slog.Logger
	cfg  Config
	now  func() time.Time

	mu   sync.Mutex
	busy map[string]struct{}
}

// NewService wires the flow. pub may be nil when no broker is configured.
func NewService(repo Repository, fees FeeSource, pub Publisher, log *slog.Logger, cfg Config) *Service {
	if cfg.HoldWindow <= 0 {
		cfg.HoldWindow = 36 * time.Hour
	}
	if cfg.Producer == "" {
		cfg.Producer = "storefront-api"
	}
	return &Service{
		repo: repo,
		fees: fees,
		pub:  pub,
		log:  log,
		cfg:  cfg,
		now:  time.Now,
		busy: map[string]struct{}{},
	}
}

func (s *Service) Submit(ctx context.Context, user *auth.User, mode Mode, form Form, store *cart.Store) (Result, error) {
	if user == nil {
		return Result{}, ErrAuthRequired
	}
	if !mode.Valid() {
		return Result{}, ErrUnknownMode
	}
	form = form.trimmed()
	if err := form.Validate(mode); err != nil {
		return Result{}, err
	}

	if !s.acquire(store.Key()) {
		return Result{}, ErrSubmissionInFlight
	}
	defer s.release(store.Key())

	// Another request may have submitted and cleared this cart since it was opened.
	store.Load(ctx)
	items := snapshotItems(store.Items())
	if len(items) == 0 {
		return Result{}, ErrEmptyCart
	}

	contact := orders.Contact{
		UserID:    &user.ID,
		UserName:  form.Name,
		UserEmail: form.Email,
		UserPhone: form.Phone,
	}
	log := s.log.With("mode", string(mode), "cart_key", store.Key(), "user_id", user.ID)

	var (
		res Result
		err error
	)
	switch mode {
	case ModeDelivery:
		res, err = s.placeOrder(ctx, contact, form, items)
	case ModeReservation:
		res, err = s.placeReservation(ctx, contact, items)
	}
	if err != nil {
		log.ErrorContext(ctx, "checkout submit failed", "err", err)
		return Result{}, &SubmitError{Mode: mode, Err: err}
	}

	store.Clear(ctx)
	log.InfoContext(ctx, "checkout submitted", "id", res.ID, "total", res.Total.String())
	return res, nil
}

func (s *Service) placeOrder(ctx context.Context, contact orders.Contact, form Form, items []orders.Item) (Result, error) {
	fee := s.fees.DeliveryFee(ctx)
	total := orders.SumItems(items).Add(fee)

	var notes *string
	if form.Notes != "" {
		notes = &form.Notes
	}
	o, err := s.repo.InsertOrder(ctx, orders.NewOrder{
		Contact:         contact,
		DeliveryAddress: form.Address,
		Notes:           notes,
		Items:           items,
		DeliveryFee:     fee,
		TotalAmount:     total,
	})
	if err != nil {
		return Result{}, err
	}

	s.publish(ctx, orders.TopicOrderPlaced, orders.EventOrderPlaced, o.ID, orders.OrderPlacedPayload{
		OrderID:     o.ID,
		UserID:      *contact.UserID,
		UserName:    contact.UserName,
		UserPhone:   contact.UserPhone,
		Items:       items,
		DeliveryFee: fee,
		TotalAmount: total,
	})
	return Result{ID: o.ID, Mode: ModeDelivery, Total: total, DeliveryFee: fee, CreatedAt: o.CreatedAt}, nil
}

func (s *Service) placeReservation(ctx context.Context, contact orders.Contact, items []orders.Item) (Result, error) {
	total := orders.SumItems(items)
	expires := s.now().Add(s.cfg.HoldWindow).UTC()

	r, err := s.repo.InsertReservation(ctx, orders.NewReservation{
		Contact:     contact,
		Items:       items,
		TotalAmount: total,
		ExpiresAt:   expires,
	})
	if err != nil {
		return Result{}, err
	}

	s.publish(ctx, orders.TopicReservationPlaced, orders.EventReservationPlaced, r.ID, orders.ReservationPlacedPayload{
		ReservationID: r.ID,
		UserID:        *contact.UserID,
		UserName:      contact.UserName,
		UserPhone:     contact.UserPhone,
		Items:         items,
		TotalAmount:   total,
		ExpiresAt:     expires,
	})
	return Result{ID: r.ID, Mode: ModeReservation, Total: total, DeliveryFee: decimal.Zero, CreatedAt: r.CreatedAt, ExpiresAt: &expires}, nil
}

// publish is best effort: the record is already committed.
func (s *Service) publish(ctx context.Context, topic, eventType, id string, payload any) {
	if s.pub == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, s.cfg.Producer, id, payload)
	if err != nil {
		s.log.ErrorContext(ctx, "event encode failed", "event_type", eventType, "err", err)
		return
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	if err := s.pub.Publish(ctx, topic, orders.PartitionKey(id), kafka.MustMarshal(env)); err != nil {
		s.log.WarnContext(ctx, "event publish failed", "event_type", eventType, "id", id, "err", err)
	}
}

func (s *Service) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[key]; ok {
		return false
	}
	s.busy[key] = struct{}{}
	return true
}

func (s *Service) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key)
}

func snapshotItems(in []cart.Item) []orders.Item {
	out := make([]orders.Item, 0, len(in))
	for _, it := range in {
		out = append(out, orders.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.ProductPrice,
		})
	}
	return out
}
