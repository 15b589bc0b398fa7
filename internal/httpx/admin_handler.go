package httpx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/export"
	"github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxImageBytes = 5 << 20

type AdminHandler struct {
	Catalog  Catalog
	Records  Records
	Fees     Fees
	Images   Images
	Events   checkout.Publisher
	Counters func(ctx context.Context) (map[string]int64, error)
	Service  string
	Log      *slog.Logger
}

type statusReq struct {
	Status string `json:"status" validate:"required"`
}

type feeReq struct {
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
}

type dashboard struct {
	Orders          int              `json:"orders"`
	Reservations    int              `json:"reservations"`
	Products        int              `json:"products"`
	Categories      int              `json:"categories"`
	InStockProducts int              `json:"in_stock_products"`
	Events          map[string]int64 `json:"events,omitempty"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin)

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/products/{id}/image", h.uploadImage)

		r.Post("/categories", h.createCategory)
		r.Put("/categories/{id}", h.updateCategory)
		r.Delete("/categories/{id}", h.deleteCategory)

		r.Get("/orders", h.listOrders)
		r.Patch("/orders/{id}/status", h.setOrderStatus)
		r.Get("/reservations", h.listReservations)
		r.Patch("/reservations/{id}/status", h.setReservationStatus)

		r.Get("/settings/delivery-fee", h.getFee)
		r.Put("/settings/delivery-fee", h.putFee)
		r.Get("/stats", h.stats)

		r.Get("/export/orders.xlsx", h.exportOrders)
		r.Get("/export/reservations.xlsx", h.exportReservations)
		r.Get("/export/products.xlsx", h.exportProducts)
	})
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.ListProducts(r.Context(), productFilter(r))
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, bool) {
	var in catalog.ProductInput
	if !decodeJSON(w, r, &in) {
		return in, false
	}
	if in.Price.IsNegative() || in.Rating.IsNegative() || in.Rating.GreaterThan(decimal.NewFromInt(5)) {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "price must be >= 0 and rating within 0..5")
		return in, false
	}
	return in, true
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	h.writeDelete(w, r, h.Catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")))
}

func (h *AdminHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	if h.Images == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads_disabled", "image storage is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Catalog.GetProduct(r.Context(), id); errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "product not found")
		return
	} else if err != nil {
		internalError(w, h.Log, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	url, err := h.Images.Upload(r.Context(), id, header.Header.Get("Content-Type"), file)
	if errors.Is(err, catalog.ErrUnsupportedImage) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_image", err.Error())
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	if err := h.Catalog.SetProductImage(r.Context(), id, url); err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": url})
}

func (h *AdminHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := h.Catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "category not found")
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	h.writeDelete(w, r, h.Catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")))
}

func (h *AdminHandler) writeDelete(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case err != nil:
		internalError(w, h.Log, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Records.ListOrders(r.Context(), orders.ListFilter{Limit: queryInt(r, "limit", 200, 1000)})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) listReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Records.ListReservations(r.Context(), orders.ListFilter{Limit: queryInt(r, "limit", 200, 1000)})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	to := orders.OrderStatus(req.Status)
	from, err := h.Records.UpdateOrderStatus(r.Context(), id, to)
	if !h.statusResult(w, r, err) {
		return
	}
	h.statusChanged(r, orders.KindOrder, id, string(from), string(to))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "from": string(from), "status": string(to)})
}

func (h *AdminHandler) setReservationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	to := orders.ReservationStatus(req.Status)
	from, err := h.Records.UpdateReservationStatus(r.Context(), id, to)
	if !h.statusResult(w, r, err) {
		return
	}
	h.statusChanged(r, orders.KindReservation, id, string(from), string(to))
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "from": string(from), "status": string(to)})
}

func (h *AdminHandler) statusResult(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		internalError(w, h.Log, r, err)
	}
	return false
}

func (h *AdminHandler) statusChanged(r *http.Request, kind, id, from, to string) {
	if h.Events == nil {
		return
	}
	actor := ""
	if u := auth.UserFromContext(r.Context()); u != nil {
		actor = u.ID
	}
	env, err := orders.NewEnvelope(orders.EventStatusChanged, h.Service, id, orders.StatusChangedPayload{
		Kind: kind, ID: id, From: from, To: to, ActorID: actor,
	})
	if err == nil {
		err = h.Events.Publish(r.Context(), orders.TopicStatusChanged, orders.PartitionKey(id), kafka.MustMarshal(env))
	}
	if err != nil {
		h.Log.WarnContext(r.Context(), "status event not published", "id", id, "err", err)
	}
}

func (h *AdminHandler) getFee(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, feeReq{DeliveryFee: h.Fees.DeliveryFee(r.Context())})
}

func (h *AdminHandler) putFee(w http.ResponseWriter, r *http.Request) {
	var req feeReq
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.Fees.SetDeliveryFee(r.Context(), req.DeliveryFee)
	if errors.Is(err, catalog.ErrInvalidFee) {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var d dashboard
	var err error
	if d.Orders, d.Reservations, err = h.Records.Count(ctx); err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	cs, err := h.Catalog.Stats(ctx)
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	d.Products, d.Categories, d.InStockProducts = cs.Products, cs.Categories, cs.InStockProducts
	if h.Counters != nil {
		if d.Events, err = h.Counters(ctx); err != nil {
			h.Log.WarnContext(ctx, "event counters unavailable", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) exportOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Records.ListOrders(r.Context(), orders.ListFilter{})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	h.sendWorkbook(w, r, "orders", func(buf *bytes.Buffer) error { return export.Orders(buf, list) })
}

func (h *AdminHandler) exportReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Records.ListReservations(r.Context(), orders.ListFilter{})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	h.sendWorkbook(w, r, "reservations", func(buf *bytes.Buffer) error { return export.Reservations(buf, list) })
}

func (h *AdminHandler) exportProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.Catalog.ListProducts(r.Context(), catalog.ProductFilter{})
	if err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	h.sendWorkbook(w, r, "products", func(buf *bytes.Buffer) error { return export.Products(buf, list) })
}

// sendWorkbook renders into memory first so a failure can still produce a JSON error.
func (h *AdminHandler) sendWorkbook(w http.ResponseWriter, r *http.Request, kind string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		internalError(w, h.Log, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(kind, time.Now()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
