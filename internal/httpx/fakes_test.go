package httpx

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

func newFakeCatalog(ps ...catalog.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[string]catalog.Product{}}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) ListProducts(_ context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []catalog.Product{}
	for _, p := range c.products {
		if f.InStockOnly && !p.InStock {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (c *fakeCatalog) CreateProduct(_ context.Context, in catalog.ProductInput) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := catalog.Product{ID: "new", Name: in.Name, Price: in.Price, InStock: in.InStock}
	c.products[p.ID] = p
	return p, nil
}

func (c *fakeCatalog) UpdateProduct(_ context.Context, id string, in catalog.ProductInput) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	p := catalog.Product{ID: id, Name: in.Name, Price: in.Price, InStock: in.InStock}
	c.products[id] = p
	return p, nil
}

func (c *fakeCatalog) DeleteProduct(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *fakeCatalog) SetProductImage(_ context.Context, id, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return catalog.ErrNotFound
	}
	p.ImageURL = &url
	c.products[id] = p
	return nil
}

func (c *fakeCatalog) ListCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: "c1", Name: "Grains"}}, nil
}

func (c *fakeCatalog) CreateCategory(_ context.Context, in catalog.CategoryInput) (catalog.Category, error) {
	return catalog.Category{ID: "c2", Name: in.Name}, nil
}

func (c *fakeCatalog) UpdateCategory(_ context.Context, id string, in catalog.CategoryInput) (catalog.Category, error) {
	if id != "c1" {
		return catalog.Category{}, catalog.ErrNotFound
	}
	return catalog.Category{ID: id, Name: in.Name}, nil
}

func (c *fakeCatalog) DeleteCategory(_ context.Context, id string) error {
	if id != "c1" {
		return catalog.ErrNotFound
	}
	return nil
}

func (c *fakeCatalog) Stats(context.Context) (catalog.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := catalog.Stats{Products: len(c.products), Categories: 1}
	for _, p := range c.products {
		if p.InStock {
			s.InStockProducts++
		}
	}
	return s, nil
}

type fakeRecords struct {
	mu           sync.Mutex
	orders       map[string]orders.Order
	reservations map[string]orders.Reservation
	inserts      int
	insertErr    error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{orders: map[string]orders.Order{}, reservations: map[string]orders.Reservation{}}
}

func (f *fakeRecords) InsertOrder(_ context.Context, in orders.NewOrder) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return orders.Order{}, f.insertErr
	}
	o := orders.Order{
		ID: "ord-" + time.Now().Format("150405.000000"), Contact: in.Contact, DeliveryAddress: in.DeliveryAddress,
		Items: in.Items, TotalAmount: in.TotalAmount, DeliveryFee: in.DeliveryFee,
		Status: orders.OrderPending, CreatedAt: time.Now(),
	}
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeRecords) InsertReservation(_ context.Context, in orders.NewReservation) (orders.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return orders.Reservation{}, f.insertErr
	}
	r := orders.Reservation{
		ID: "res-" + time.Now().Format("150405.000000"), Contact: in.Contact, Items: in.Items,
		TotalAmount: in.TotalAmount, Status: orders.ReservationPending, ExpiresAt: in.ExpiresAt, CreatedAt: time.Now(),
	}
	f.reservations[r.ID] = r
	return r, nil
}

func (f *fakeRecords) GetOrder(_ context.Context, id string) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return o, nil
}

func (f *fakeRecords) GetReservation(_ context.Context, id string) (orders.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return orders.Reservation{}, orders.ErrNotFound
	}
	return r, nil
}

func (f *fakeRecords) ListOrders(_ context.Context, lf orders.ListFilter) ([]orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []orders.Order{}
	for _, o := range f.orders {
		if lf.UserID != "" && (o.UserID == nil || *o.UserID != lf.UserID) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeRecords) ListReservations(_ context.Context, lf orders.ListFilter) ([]orders.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []orders.Reservation{}
	for _, r := range f.reservations {
		if lf.UserID != "" && (r.UserID == nil || *r.UserID != lf.UserID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRecords) UpdateOrderStatus(_ context.Context, id string, to orders.OrderStatus) (orders.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return "", orders.ErrNotFound
	}
	if !orders.CanTransitionOrder(o.Status, to) {
		return o.Status, orders.ErrInvalidTransition
	}
	from := o.Status
	o.Status = to
	f.orders[id] = o
	return from, nil
}

func (f *fakeRecords) UpdateReservationStatus(_ context.Context, id string, to orders.ReservationStatus) (orders.ReservationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return "", orders.ErrNotFound
	}
	if !orders.CanTransitionReservation(r.Status, to) {
		return r.Status, orders.ErrInvalidTransition
	}
	from := r.Status
	r.Status = to
	f.reservations[id] = r
	return from, nil
}

func (f *fakeRecords) Count(context.Context) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders), len(f.reservations), nil
}

type fakeFees struct {
	mu  sync.Mutex
	fee decimal.Decimal
}

func (f *fakeFees) DeliveryFee(context.Context) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fee
}

func (f *fakeFees) SetDeliveryFee(_ context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return catalog.ErrInvalidFee
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fee = fee
	return nil
}

// fakeAccounts knows a fixed set of bearer tokens.
type fakeAccounts struct {
	users map[string]*auth.User
}

func (a *fakeAccounts) Authenticate(_ context.Context, token string) (*auth.User, error) {
	if u, ok := a.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func (a *fakeAccounts) SignUp(_ context.Context, in auth.SignUpInput) (auth.Session, error) {
	if in.Email == "taken@example.com" {
		return auth.Session{}, auth.ErrEmailTaken
	}
	return auth.Session{Token: "new-token", User: auth.User{ID: "u9", Email: in.Email, Role: auth.RoleCustomer}}, nil
}

func (a *fakeAccounts) SignIn(_ context.Context, email, password string) (auth.Session, error) {
	if password != "secret1" {
		return auth.Session{}, auth.ErrInvalidCredentials
	}
	return auth.Session{Token: "cust", User: *a.users["cust"]}, nil
}

func (a *fakeAccounts) SignOut(_ context.Context, token string) error {
	if _, ok := a.users[token]; !ok {
		return auth.ErrInvalidToken
	}
	return nil
}

type fakeImages struct{ url string }

func (f *fakeImages) Upload(_ context.Context, productID, contentType string, _ io.Reader) (string, error) {
	if contentType != "image/png" {
		return "", catalog.ErrUnsupportedImage
	}
	return f.url + productID + ".png", nil
}

type recordedEvent struct {
	topic string
	key   string
}

type fakeEvents struct {
	mu  sync.Mutex
	out []recordedEvent
}

func (f *fakeEvents) Publish(_ context.Context, topic string, key, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, recordedEvent{topic: topic, key: string(key)})
	return nil
}
