package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/auth"
	"github.com/example/ec-fulfillment/internal/domain/order"
	"github.com/example/ec-fulfillment/internal/ordering"
)

// OrderHandlers exposes order placement and status updates.
type OrderHandlers struct {
	svc       *ordering.Service
	validator *auth.Validator
}

func NewOrderHandlers(svc *ordering.Service, validator *auth.Validator) *OrderHandlers {
	return &OrderHandlers{svc: svc, validator: validator}
}

// Router mounts the order routes.
func (h *OrderHandlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/orders", h.PlaceOrder)
	r.Get("/orders/{id}", h.GetOrder)
	r.Post("/orders/{id}/status", h.UpdateStatus)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type placeOrderRequest struct {
	Items           []ordering.ItemRequest `json:"items"`
	ShippingAddress string                 `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	GuestEmail      string                 `json:"guestEmail,omitempty"`
	GuestName       string                 `json:"guestName,omitempty"`
}

func (h *OrderHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}

	// An authenticated caller becomes the payer; otherwise the guest
	// fields must identify one.
	payer := order.Payer{GuestEmail: req.GuestEmail, GuestName: req.GuestName}
	if claims := h.bearerClaims(r); claims != nil {
		payer = order.Payer{UserID: claims.UserID, Email: claims.Email}
	}

	placed, err := h.svc.PlaceOrder(r.Context(), ordering.PlaceOrderRequest{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		Payer:           payer,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, placed)
}

func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrderHandlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// bearerClaims extracts and validates the Authorization header, returning
// nil for absent or invalid tokens: an invalid token degrades to a guest
// request, it does not fail it.
func (h *OrderHandlers) bearerClaims(r *http.Request) *auth.Claims {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}
	claims, err := h.validator.Validate(token)
	if err != nil {
		return nil
	}
	return claims
}
