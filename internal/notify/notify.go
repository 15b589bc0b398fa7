// Package notify reacts to checkout and status events: dashboard counters plus an
// optional webhook notice to the shop operator.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	kgo "github.com/segmentio/kafka-go"
)

const (
	dedupScope   = "notifier"
	counterScope = "notifier-stats"
)

var errUnknownEvent = errors.New("unknown event type")

// Counter fields in the stats hash.
const (
	StatOrdersPlaced       = "orders_placed"
	StatReservationsPlaced = "reservations_placed"
	StatStatusChanged      = "status_changed"
)

type Notice struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	RecordID   string    `json:"record_id"`
	Summary    string    `json:"summary"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier struct {
	rdb     *redis.Client
	http    *resty.Client
	webhook string
	log     *slog.Logger
}

// New builds a notifier. An empty webhook disables outbound notices.
func New(rdb *redis.Client, webhook string, log *slog.Logger) *Notifier {
	return &Notifier{
		rdb:     rdb,
		http:    resty.New().SetTimeout(10 * time.Second),
		webhook: webhook,
		log:     log,
	}
}

// Handle is a kafka.Handler. Undecodable messages are dropped so they do not block the partition.
func (n *Notifier) Handle(ctx context.Context, m kgo.Message) error {
	var env orders.Envelope
	if err := kafka.UnmarshalEnvelope(m.Value, &env); err != nil || env.EventID == "" {
		n.log.WarnContext(ctx, "dropping malformed event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	log := n.log.With("event_id", env.EventID, "event_type", env.EventType)

	dedupKey := fmt.Sprintf(redisx.KeyDedup, dedupScope, env.EventID)
	claimed, err := redisx.SetOnce(ctx, n.rdb, dedupKey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if !claimed {
		log.DebugContext(ctx, "duplicate event skipped")
		return nil
	}

	if err := n.process(ctx, env); err != nil {
		// let a redelivery try again
		if derr := n.rdb.Del(ctx, dedupKey).Err(); derr != nil {
			log.WarnContext(ctx, "dedup release failed", "err", derr)
		}
		return err
	}
	log.InfoContext(ctx, "event processed")
	return nil
}

func (n *Notifier) process(ctx context.Context, env orders.Envelope) error {
	notice, field, err := describe(env)
	if errors.Is(err, errUnknownEvent) {
		n.log.WarnContext(ctx, "ignoring event", "event_type", env.EventType)
		return nil
	}
	if err != nil {
		return err
	}
	if err := n.count(ctx, env.EventID, field); err != nil {
		return err
	}
	if n.webhook != "" {
		resp, err := n.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(notice).
			Post(n.webhook)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		if resp.IsError() {
			return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode())
		}
	}
	return nil
}

// count bumps the dashboard counter at most once per event. Its marker outlives a
// failed webhook, so a redelivery only retries the notice.
func (n *Notifier) count(ctx context.Context, eventID, field string) error {
	marker := fmt.Sprintf(redisx.KeyDedup, counterScope, eventID)
	claimed, err := redisx.SetOnce(ctx, n.rdb, marker, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if !claimed {
		return nil
	}
	if err := n.rdb.HIncrBy(ctx, redisx.KeyCheckoutStats, field, 1).Err(); err != nil {
		if derr := n.rdb.Del(ctx, marker).Err(); derr != nil {
			n.log.WarnContext(ctx, "stats marker release failed", "event_id", eventID, "err", derr)
		}
		return fmt.Errorf("stats: %w", err)
	}
	return nil
}

func describe(env orders.Envelope) (Notice, string, error) {
	notice := Notice{EventID: env.EventID, EventType: env.EventType, RecordID: env.CorrelationID, OccurredAt: env.OccurredAt}
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafka.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return Notice{}, "", err
		}
		notice.RecordID = p.OrderID
		notice.Summary = fmt.Sprintf("New delivery order from %s (%s): %d item(s), total %s",
			p.UserName, p.UserPhone, len(p.Items), p.TotalAmount.StringFixed(2))
		return notice, StatOrdersPlaced, nil
	case orders.EventReservationPlaced:
		p, err := kafka.UnwrapPayload[orders.ReservationPlacedPayload](env.Payload)
		if err != nil {
			return Notice{}, "", err
		}
		notice.RecordID = p.ReservationID
		notice.Summary = fmt.Sprintf("New reservation from %s (%s): %d item(s), total %s, hold until %s",
			p.UserName, p.UserPhone, len(p.Items), p.TotalAmount.StringFixed(2), p.ExpiresAt.Format(time.RFC3339))
		return notice, StatReservationsPlaced, nil
	case orders.EventStatusChanged:
		p, err := kafka.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return Notice{}, "", err
		}
		notice.RecordID = p.ID
		notice.Summary = fmt.Sprintf("%s %s moved from %s to %s", p.Kind, p.ID, p.From, p.To)
		return notice, StatStatusChanged, nil
	}
	return Notice{}, "", fmt.Errorf("%w %q", errUnknownEvent, env.EventType)
}

// ReadStats returns the counters kept by Handle. Missing fields read as zero.
func ReadStats(ctx context.Context, rdb *redis.Client) (map[string]int64, error) {
	raw, err := rdb.HGetAll(ctx, redisx.KeyCheckoutStats).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	out := map[string]int64{StatOrdersPlaced: 0, StatReservationsPlaced: 0, StatStatusChanged: 0}
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}
