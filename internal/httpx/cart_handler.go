package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const cartCookie = "cart_id"

type CartHandler struct {
	Storage cart.Storage
	Catalog Catalog
	TTL     time.Duration
	Log     *slog.Logger
}

type addItemReq struct {
	ProductID string `json:"product_id" validate:"required"`
}

type setQuantityReq struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{product_id}", h.setQuantity)
	r.Delete("/cart/items/{product_id}", h.remove)
	r.Delete("/cart", h.clear)
}

// open loads the caller's cart, issuing a fresh cart_id cookie when none is usable.
func (h *CartHandler) open(w http.ResponseWriter, r *http.Request) *cart.Store {
	id := ""
	if c, err := r.Cookie(cartCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			id = c.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cartCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.TTL / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return cart.Open(r.Context(), h.Storage, fmt.Sprintf(redisx.KeyCart, id), h.Log)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.open(w, r).Snapshot())
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.GetProduct(ctx, req.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product_not_found", "product not found")
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	if !p.InStock {
		writeError(w, http.StatusConflict, "out_of_stock", "product is out of stock")
		return
	}

	store := h.open(w, r)
	if err := store.Add(ctx, cart.Product{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL}); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_product", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityReq
	if !decodeJSON(w, r, &req) {
		return
	}
	store := h.open(w, r)
	store.SetQuantity(r.Context(), chi.URLParam(r, "product_id"), *req.Quantity)
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	store := h.open(w, r)
	store.Remove(r.Context(), chi.URLParam(r, "product_id"))
	writeJSON(w, http.StatusOK, store.Snapshot())
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	h.open(w, r).Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
