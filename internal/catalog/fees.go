package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidFee = errors.New("delivery fee must be a non-negative amount")

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Fees resolves the delivery fee. Any failure along the way yields the default.
type Fees struct {
	store   SettingsStore
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker[string]
	def     decimal.Decimal
	log     *slog.Logger
	sfg     singleflight.Group
}

// NewFees builds a fee source. rdb may be nil to disable caching.
func NewFees(store SettingsStore, rdb *redis.Client, def decimal.Decimal, log *slog.Logger) *Fees {
	return &Fees{
		store: store,
		rdb:   rdb,
		def:   def,
		log:   log,
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "settings",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("breaker_state_changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (f *Fees) Default() decimal.Decimal { return f.def }

func (f *Fees) DeliveryFee(ctx context.Context) decimal.Decimal {
	key := fmt.Sprintf(redisx.KeySetting, SettingDeliveryFee)

	if f.rdb != nil {
		raw, err := f.rdb.Get(ctx, key).Result()
		switch {
		case err == nil:
			if fee, ok := parseFee(raw); ok {
				return fee
			}
		case !errors.Is(err, redis.Nil):
			f.log.Warn("fee_cache_get_failed", "err", err)
		}
	}

	v, err, _ := f.sfg.Do(key, func() (any, error) {
		return f.breaker.Execute(func() (string, error) {
			raw, err := f.store.GetSetting(ctx, SettingDeliveryFee)
			if errors.Is(err, ErrNotFound) {
				// absence is not a store failure
				return "", nil
			}
			return raw, err
		})
	})
	if err != nil {
		f.log.Warn("fee_lookup_failed", "err", err)
		return f.def
	}

	fee, ok := parseFee(v.(string))
	if !ok {
		return f.def
	}
	if f.rdb != nil {
		if err := f.rdb.Set(ctx, key, fee.String(), redisx.TTLSettingCache).Err(); err != nil {
			f.log.Warn("fee_cache_set_failed", "err", err)
		}
	}
	return fee
}

func (f *Fees) SetDeliveryFee(ctx context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return ErrInvalidFee
	}
	if err := f.store.PutSetting(ctx, SettingDeliveryFee, fee.String()); err != nil {
		return fmt.Errorf("put setting: %w", err)
	}
	if f.rdb != nil {
		if err := f.rdb.Del(ctx, fmt.Sprintf(redisx.KeySetting, SettingDeliveryFee)).Err(); err != nil {
			f.log.Warn("fee_cache_delete_failed", "err", err)
		}
	}
	return nil
}

func parseFee(raw string) (decimal.Decimal, bool) {
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}
