// Package countdown drives the live "reservation expires in" display.
//
// A Timer moves one way from Active to Expired. It recomputes the remaining
// duration on every tick, and signals expiry exactly once. Reaching zero is a
// display signal only: nothing here touches the durable reservation status.
package countdown

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWrapHours = 36
	DefaultPeriod    = time.Second

	urgentThreshold     = time.Hour
	veryUrgentThreshold = 30 * time.Minute
)

type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
)

type Remaining struct {
	Hours   int           `json:"hours"`
	Minutes int           `json:"minutes"`
	Seconds int           `json:"seconds"`
	Total   time.Duration `json:"-"`
}

func (r Remaining) Expired() bool    { return r.Total <= 0 }
func (r Remaining) Urgent() bool     { return r.Total <= urgentThreshold }
func (r Remaining) VeryUrgent() bool { return r.Total <= veryUrgentThreshold }

// Compute decomposes expiresAt-now. Hours wrap at wrapHours, which is a display
// range and not a cap on the hold itself.
func Compute(expiresAt, now time.Time, wrapHours int) Remaining {
	if wrapHours <= 0 {
		wrapHours = DefaultWrapHours
	}
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return Remaining{}
	}
	ms := diff.Milliseconds()
	return Remaining{
		Hours:   int((ms / int64(time.Hour/time.Millisecond)) % int64(wrapHours)),
		Minutes: int((ms / int64(time.Minute/time.Millisecond)) % 60),
		Seconds: int((ms / 1000) % 60),
		Total:   diff,
	}
}

// Clock lets tests step time by hand.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

type Config struct {
	WrapHours int
	Period    time.Duration
	Clock     Clock
}

type Timer struct {
	expiresAt time.Time
	wrapHours int
	period    time.Duration
	clock     Clock

	mu      sync.Mutex
	state   State
	last    Remaining
	expired sync.Once
}

func New(expiresAt time.Time, cfg Config) *Timer {
	if cfg.WrapHours <= 0 {
		cfg.WrapHours = DefaultWrapHours
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Timer{
		expiresAt: expiresAt,
		wrapHours: cfg.WrapHours,
		period:    cfg.Period,
		clock:     cfg.Clock,
		state:     StateActive,
	}
}

func (t *Timer) ExpiresAt() time.Time { return t.expiresAt }

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) Last() Remaining {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Run ticks until the expiry instant passes or ctx is done. onTick receives every
// recomputation including the final zeroed one; onExpire fires at most once per
// Timer no matter how often Run is called. Either callback may be nil.
func (t *Timer) Run(ctx context.Context, onTick func(Remaining), onExpire func()) error {
	if t.step(t.clock.Now(), onTick, onExpire) {
		return nil
	}

	ticker := t.clock.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			if t.step(now, onTick, onExpire) {
				return nil
			}
		}
	}
}

// step recomputes at the given instant and reports whether the timer is now expired.
func (t *Timer) step(now time.Time, onTick func(Remaining), onExpire func()) bool {
	r := Compute(t.expiresAt, now, t.wrapHours)

	t.mu.Lock()
	if t.state == StateExpired {
		r = Remaining{}
	}
	t.last = r
	done := r.Expired()
	if done {
		t.state = StateExpired
	}
	t.mu.Unlock()

	if onTick != nil {
		onTick(r)
	}
	if done {
		t.expired.Do(func() {
			if onExpire != nil {
				onExpire()
			}
		})
	}
	return done
}
