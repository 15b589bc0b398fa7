package cart

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	delErr  error
	sets    int
	deletes int
}

func newMemStorage() *memStorage {
	return &memStorage{data: map[string][]byte{}}
}

func (m *memStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStorage) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func productA() Product {
	return Product{ID: "prod-a", Name: "Product A", Price: decimal.NewFromInt(1000)}
}

func productB() Product {
	img := "https://cdn.example/b.png"
	return Product{ID: "prod-b", Name: "Product B", Price: decimal.NewFromInt(500), ImageURL: &img}
}

func TestAdd_SameProductMergesQuantity(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	s := Open(ctx, newMemStorage(), "cart:1", log)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(ctx, productA()))
	}

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "prod-a", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.NotEmpty(t, items[0].ID)
}

func TestAdd_NewProductGetsFreshIdentity(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	s := Open(ctx, newMemStorage(), "cart:1", log)

	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productB()))

	items := s.Items()
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].ID, items[1].ID)
	assert.NotEqual(t, items[0].ID, items[0].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
	require.NotNil(t, items[1].ProductImage)
	assert.Equal(t, "https://cdn.example/b.png", *items[1].ProductImage)
}

func TestAdd_RejectsIncompleteProduct(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	st := newMemStorage()
	s := Open(ctx, st, "cart:1", log)

	cases := []Product{
		{Name: "no id", Price: decimal.NewFromInt(1)},
		{ID: "x", Price: decimal.NewFromInt(1)},
		{ID: "x", Name: "negative", Price: decimal.NewFromInt(-1)},
	}
	for _, p := range cases {
		assert.ErrorIs(t, s.Add(ctx, p), ErrInvalidProduct)
	}
	assert.Zero(t, s.Len())
	assert.Zero(t, st.sets)
}

func TestDerivedTotals(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	s := Open(ctx, newMemStorage(), "cart:1", log)

	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productB()))

	assert.Equal(t, 3, s.ItemCount())
	assert.True(t, s.TotalAmount().Equal(decimal.NewFromInt(2500)), "got %s", s.TotalAmount())

	s.SetQuantity(ctx, "prod-b", 4)
	assert.Equal(t, 6, s.ItemCount())
	assert.True(t, s.TotalAmount().Equal(decimal.NewFromInt(4000)))

	snap := s.Snapshot()
	manual := decimal.Zero
	count := 0
	for _, it := range snap.Items {
		manual = manual.Add(it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		count += it.Quantity
	}
	assert.True(t, snap.TotalAmount.Equal(manual))
	assert.Equal(t, count, snap.ItemCount)
}

func TestSetQuantityZeroEqualsRemove(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()

	a := Open(ctx, newMemStorage(), "cart:a", log)
	b := Open(ctx, newMemStorage(), "cart:b", log)
	for _, s := range []*Store{a, b} {
		require.NoError(t, s.Add(ctx, productA()))
		require.NoError(t, s.Add(ctx, productB()))
	}

	a.SetQuantity(ctx, "prod-a", 0)
	b.Remove(ctx, "prod-a")

	for _, s := range []*Store{a, b} {
		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, "prod-b", items[0].ProductID)
	}

	a.SetQuantity(ctx, "prod-b", -3)
	assert.Zero(t, a.Len())
}

func TestRemoveAndSetQuantity_AbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	st := newMemStorage()
	s := Open(ctx, st, "cart:1", log)
	require.NoError(t, s.Add(ctx, productA()))
	sets := st.sets

	s.Remove(ctx, "missing")
	s.SetQuantity(ctx, "missing", 3)

	assert.Equal(t, sets, st.sets)
	assert.Equal(t, 1, s.Len())
}

func TestRoundTripThroughStorage(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	st := newMemStorage()

	s := Open(ctx, st, "cart:1", log)
	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productB()))
	before := s.Items()

	reloaded := Open(ctx, st, "cart:1", log)
	after := reloaded.Items()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].ProductID, after[i].ProductID)
		assert.Equal(t, before[i].ProductName, after[i].ProductName)
		assert.True(t, before[i].ProductPrice.Equal(after[i].ProductPrice))
		assert.Equal(t, before[i].ProductImage, after[i].ProductImage)
		assert.Equal(t, before[i].Quantity, after[i].Quantity)
	}
}

func TestLoad_LegacyNumericPrices(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	st := newMemStorage()
	st.data["cart:1"] = []byte(`[{"id":"prod-a-1700000000000","product_id":"prod-a","product_name":"Product A","product_price":1000,"product_image":null,"quantity":2}]`)

	s := Open(ctx, st, "cart:1", log)

	assert.Equal(t, 2, s.ItemCount())
	assert.True(t, s.TotalAmount().Equal(decimal.NewFromInt(2000)))
}

func TestLoad_MalformedFallsBackToEmptyAndLogs(t *testing.T) {
	ctx := context.Background()

	cases := map[string]string{
		"not json":     `{{{`,
		"wrong shape":  `{"items":1}`,
		"zero qty":     `[{"id":"1","product_id":"p","product_name":"n","product_price":"1","quantity":0}]`,
		"missing prod": `[{"id":"1","product_name":"n","product_price":"1","quantity":1}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			log, buf := captureLogger()
			st := newMemStorage()
			st.data["cart:1"] = []byte(raw)

			s := Open(ctx, st, "cart:1", log)

			assert.Zero(t, s.Len())
			assert.True(t, s.TotalAmount().IsZero())
			assert.Contains(t, buf.String(), `"event":"cart_discarded"`)
		})
	}
}

func TestLoad_StorageErrorIsSwallowed(t *testing.T) {
	ctx := context.Background()
	log, buf := captureLogger()
	st := newMemStorage()
	st.getErr = errors.New("connection refused")

	s := Open(ctx, st, "cart:1", log)

	assert.Zero(t, s.Len())
	assert.Contains(t, buf.String(), "cart_load_failed")
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	log, buf := captureLogger()
	st := newMemStorage()
	st.setErr = errors.New("redis down")
	st.delErr = errors.New("redis down")

	s := Open(ctx, st, "cart:1", log)
	require.NoError(t, s.Add(ctx, productA()))
	require.NoError(t, s.Add(ctx, productA()))

	assert.Equal(t, 2, s.ItemCount())
	assert.Equal(t, 2, strings.Count(buf.String(), "cart_persist_failed"))

	s.Clear(ctx)
	assert.Zero(t, s.Len())
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	st := newMemStorage()
	s := Open(ctx, st, "cart:1", log)
	require.NoError(t, s.Add(ctx, productA()))

	s.Clear(ctx)
	assert.Zero(t, s.Len())
	_, ok := st.data["cart:1"]
	assert.False(t, ok)

	s.Clear(ctx)
	assert.Zero(t, s.Len())
	assert.Equal(t, 2, st.deletes)
}

func TestItemsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	s := Open(ctx, newMemStorage(), "cart:1", log)
	require.NoError(t, s.Add(ctx, productA()))

	items := s.Items()
	items[0].Quantity = 99
	items[0].ProductPrice = decimal.NewFromInt(1)

	fresh := s.Items()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.True(t, fresh[0].ProductPrice.Equal(decimal.NewFromInt(1000)))
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	ctx := context.Background()
	log, _ := captureLogger()
	s := Open(ctx, newMemStorage(), "cart:1", log)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Add(ctx, productA())
		}()
	}
	wg.Wait()

	require.Equal(t, 1, s.Len())
	assert.Equal(t, 50, s.ItemCount())
}
