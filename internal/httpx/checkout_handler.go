package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	Checkout Checkout
	Carts    *CartHandler
	Log      *slog.Logger
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/checkout/reservation", h.submit(checkout.ModeReservation))
	r.Post("/checkout/delivery", h.submit(checkout.ModeDelivery))
}

func (h *CheckoutHandler) submit(mode checkout.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form checkout.Form
		// validated by the service, after the sign-in check
		if !decodeBody(w, r, &form) {
			return
		}
		store := h.Carts.open(w, r)
		res, err := h.Checkout.Submit(r.Context(), auth.UserFromContext(r.Context()), mode, form, store)

		var (
			verr *checkout.ValidationError
			serr *checkout.SubmitError
		)
		switch {
		case err == nil:
			writeJSON(w, http.StatusCreated, res)
		case errors.Is(err, checkout.ErrAuthRequired):
			writeError(w, http.StatusUnauthorized, "auth_required", err.Error())
		case errors.As(err, &verr):
			writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
				Error:   err.Error(),
				Code:    "validation_failed",
				Details: strings.Join(verr.Fields, ","),
			})
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "empty_cart", err.Error())
		case errors.Is(err, checkout.ErrSubmissionInFlight):
			writeError(w, http.StatusConflict, "submission_in_flight", err.Error())
		case errors.As(err, &serr):
			writeError(w, http.StatusBadGateway, "submit_failed", err.Error())
		default:
			internalError(w, h.Log, r, err)
		}
	}
}
