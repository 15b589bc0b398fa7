package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/countdown"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type AccountHandler struct {
	Records   Records
	Log       *slog.Logger
	WrapHours int
	Period    time.Duration
}

type countdownFrame struct {
	Hours      int             `json:"hours"`
	Minutes    int             `json:"minutes"`
	Seconds    int             `json:"seconds"`
	TotalMS    int64           `json:"total_ms"`
	Urgent     bool            `json:"urgent"`
	VeryUrgent bool            `json:"very_urgent"`
	State      countdown.State `json:"state"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *AccountHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/reservations/{id}", h.getReservation)
		r.Get("/me/orders", h.myOrders)
		r.Get("/me/reservations", h.myReservations)
	})
}

// owns hides other shoppers' records behind a 404. Admins see everything.
func owns(u *auth.User, c orders.Contact) bool {
	if u.IsAdmin() {
		return true
	}
	return c.UserID != nil && *c.UserID == u.ID
}

func (h *AccountHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Records.GetOrder(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) || (err == nil && !owns(auth.UserFromContext(ctx), o.Contact)) {
		writeError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *AccountHandler) getReservation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, ok := h.loadReservation(w, r.WithContext(ctx))
	if ok {
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *AccountHandler) loadReservation(w http.ResponseWriter, r *http.Request) (orders.Reservation, bool) {
	res, err := h.Records.GetReservation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrNotFound) || (err == nil && !owns(auth.UserFromContext(r.Context()), res.Contact)) {
		writeError(w, http.StatusNotFound, "not_found", "reservation not found")
		return orders.Reservation{}, false
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return orders.Reservation{}, false
	}
	return res, true
}

func (h *AccountHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Records.ListOrders(ctx, orders.ListFilter{UserID: auth.UserFromContext(ctx).ID, Limit: queryInt(r, "limit", 50, 200)})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AccountHandler) myReservations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Records.ListReservations(ctx, orders.ListFilter{UserID: auth.UserFromContext(ctx).ID, Limit: queryInt(r, "limit", 50, 200)})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// countdown streams one frame per tick until the hold runs out or the client leaves.
// The reservation record itself is never touched.
func (h *AccountHandler) countdown(w http.ResponseWriter, r *http.Request) {
	lookup, cancelLookup := context.WithTimeout(r.Context(), 3*time.Second)
	res, ok := h.loadReservation(w, r.WithContext(lookup))
	cancelLookup()
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// any read error means the client is gone
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log := h.Log.With("reservation_id", res.ID)
	timer := countdown.New(res.ExpiresAt, countdown.Config{WrapHours: h.WrapHours, Period: h.Period})
	onTick := func(rem countdown.Remaining) {
		frame := countdownFrame{
			Hours:      rem.Hours,
			Minutes:    rem.Minutes,
			Seconds:    rem.Seconds,
			TotalMS:    rem.Total.Milliseconds(),
			Urgent:     rem.Urgent(),
			VeryUrgent: rem.VeryUrgent(),
			State:      countdown.StateActive,
		}
		if rem.Expired() {
			frame.State = countdown.StateExpired
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			cancel()
		}
	}
	onExpire := func() {
		log.InfoContext(ctx, "reservation countdown reached zero")
	}

	if err := timer.Run(ctx, onTick, onExpire); err == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "expired"), time.Now().Add(time.Second))
	}
}
