package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetProductImage(ctx context.Context, id, url string) error
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	Stats(ctx context.Context) (catalog.Stats, error)
}

type Records interface {
	GetOrder(ctx context.Context, id string) (orders.Order, error)
	GetReservation(ctx context.Context, id string) (orders.Reservation, error)
	ListOrders(ctx context.Context, f orders.ListFilter) ([]orders.Order, error)
	ListReservations(ctx context.Context, f orders.ListFilter) ([]orders.Reservation, error)
	UpdateOrderStatus(ctx context.Context, id string, to orders.OrderStatus) (orders.OrderStatus, error)
	UpdateReservationStatus(ctx context.Context, id string, to orders.ReservationStatus) (orders.ReservationStatus, error)
	Count(ctx context.Context) (int, int, error)
}

type Fees interface {
	DeliveryFee(ctx context.Context) decimal.Decimal
	SetDeliveryFee(ctx context.Context, fee decimal.Decimal) error
}

type Images interface {
	Upload(ctx context.Context, productID, contentType string, body io.Reader) (string, error)
}

type Checkout interface {
	Submit(ctx context.Context, user *auth.User, mode checkout.Mode, form checkout.Form, store *cart.Store) (checkout.Result, error)
}

type Accounts interface {
	auth.Authenticator
	SignUp(ctx context.Context, in auth.SignUpInput) (auth.Session, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

type Deps struct {
	Log      *slog.Logger
	Carts    cart.Storage
	CartTTL  time.Duration
	Catalog  Catalog
	Records  Records
	Fees     Fees
	Images   Images // nil disables uploads
	Checkout Checkout
	Accounts Accounts
	Events   checkout.Publisher // nil disables status events
	Counters func(ctx context.Context) (map[string]int64, error)

	Service            string
	CORSOrigins        []string
	CountdownWrapHours int
	CountdownPeriod    time.Duration
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Attach(d.Accounts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	carts := &CartHandler{Storage: d.Carts, Catalog: d.Catalog, TTL: d.CartTTL, Log: d.Log}
	account := &AccountHandler{Records: d.Records, Log: d.Log, WrapHours: d.CountdownWrapHours, Period: d.CountdownPeriod}

	// Long-lived streams stay outside the request timeout.
	r.With(auth.RequireUser).Get("/reservations/{id}/countdown", account.countdown)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		(&CatalogHandler{Catalog: d.Catalog, Fees: d.Fees, Log: d.Log}).Register(r)
		(&AuthHandler{Accounts: d.Accounts, Log: d.Log}).Register(r)
		carts.Register(r)
		(&CheckoutHandler{Checkout: d.Checkout, Carts: carts, Log: d.Log}).Register(r)
		account.Register(r)
		(&AdminHandler{
			Catalog:  d.Catalog,
			Records:  d.Records,
			Fees:     d.Fees,
			Images:   d.Images,
			Events:   d.Events,
			Counters: d.Counters,
			Service:  d.Service,
			Log:      d.Log,
		}).Register(r)
	})
	return r
}
