package server

import (
	"net/http"

	"github.com/ghsales/discount-engine/internal/domain"
	"github.com/ghsales/discount-engine/internal/installment"
	"github.com/ghsales/discount-engine/internal/pricing"
)

// Quote products as labelled in metrics.
const (
	productStandard    = "standard"
	productDownPayment = "down_payment"
)

func (h *handler) handleUnitPricing(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUnitPricing"
	id, err := pathID(r, op)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	priced, err := h.services.Pricing.PricingOptions(r.Context(), id)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, priced)
}

func (h *handler) handleBudgetSearch(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleBudgetSearch"
	var q pricing.BudgetQuery
	if err := h.decode(r, &q, op); err != nil {
		h.fail(w, err, op)
		return
	}
	result, err := h.services.Pricing.FindByBudget(r.Context(), q)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	if h.services.Metrics != nil {
		h.services.Metrics.BudgetSearch(result.Total)
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSummary"
	summary, err := h.services.Pricing.Summarize(r.Context())
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGetSettings"
	settings, err := h.services.Installment.Settings(r.Context())
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

func (h *handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUpdateSettings"
	settings := domain.DefaultCalculatorSettings()
	if err := h.decode(r, &settings, op); err != nil {
		h.fail(w, err, op)
		return
	}
	if err := h.services.Installment.UpdateSettings(r.Context(), settings); err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, settings)
}

func (h *handler) handleStandard(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleStandard"
	var req installment.StandardRequest
	if err := h.decode(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	plan, err := h.services.Installment.Standard(r.Context(), req)
	h.countQuote(productStandard, err)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *handler) handleDownPayment(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDownPayment"
	var req installment.DownPaymentRequest
	if err := h.decode(r, &req, op); err != nil {
		h.fail(w, err, op)
		return
	}
	plan, err := h.services.Installment.DownPayment(r.Context(), req)
	h.countQuote(productDownPayment, err)
	if err != nil {
		h.fail(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *handler) countQuote(product string, err error) {
	if h.services.Metrics != nil {
		h.services.Metrics.Quote(product, err)
	}
}
