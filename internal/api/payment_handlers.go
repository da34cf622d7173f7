package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/example/ec-fulfillment/internal/apperr"
	"github.com/example/ec-fulfillment/internal/payment"
)

// PaymentHandlers exposes the settlement simulator.
type PaymentHandlers struct {
	simulator *payment.Simulator
}

func NewPaymentHandlers(simulator *payment.Simulator) *PaymentHandlers {
	return &PaymentHandlers{simulator: simulator}
}

func (h *PaymentHandlers) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/process", h.Process)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type processRequest struct {
	OrderID   string          `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	UserEmail string          `json:"userEmail"`
}

// Process accepts a payment intent and acknowledges immediately; the
// terminal outcome arrives later on the payment topic.
func (h *PaymentHandlers) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperr.Wrap(apperr.KindValidation, "malformed request body", err))
		return
	}

	if err := h.simulator.InitiateSettlement(r.Context(), req.OrderID, req.Amount, req.UserEmail); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"orderId": req.OrderID,
	})
}
