package handler

import (
	"net/http"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/go-chi/chi/v5"
)

// PromoHandler serves promo code redemption and admin management.
type PromoHandler struct {
	promos *service.PromoService
}

func NewPromoHandler(promos *service.PromoService) *PromoHandler {
	return &PromoHandler{promos: promos}
}

type redeemPromoRequest struct {
	Code string `json:"code"`
}

type redeemPromoResponse struct {
	Code         string `json:"code"`
	AmountMicros int64  `json:"amount_micros"`
	Amount       string `json:"amount"`
}

// Redeem handles POST /v1/promos/redeem.
func (h *PromoHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req redeemPromoRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	credited, err := h.promos.Redeem(r.Context(), req.Code, actorID)
	if err != nil {
		RespondServiceError(w, r, err, "redeem promo")
		return
	}
	RespondJSON(w, http.StatusOK, redeemPromoResponse{
		Code:         req.Code,
		AmountMicros: credited,
		Amount:       domain.FormatMicros(credited),
	})
}

type createPromoRequest struct {
	Code      string     `json:"code"`
	MaxUses   int32      `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
	ExpiresIn string     `json:"expires_in"`
	amountParam
}

// CreatePromo handles POST /v1/admin/promos. expires_in ("72h") is an
// alternative to an absolute expires_at.
func (h *PromoHandler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createPromoRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	amount, err := req.micros()
	if err != nil {
		RespondServiceError(w, r, err, "parse amount")
		return
	}
	expiresAt := req.ExpiresAt
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			RespondServiceError(w, r, domain.NewValidationError("expires_in", "must be a positive duration such as 72h"), "parse expiry")
			return
		}
		at := time.Now().Add(d)
		expiresAt = &at
	}
	if req.MaxUses == 0 {
		req.MaxUses = 1
	}

	promo, err := h.promos.CreatePromo(r.Context(), adminID, service.CreatePromoInput{
		Code:      req.Code,
		Amount:    amount,
		MaxUses:   req.MaxUses,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		RespondServiceError(w, r, err, "create promo")
		return
	}
	RespondJSON(w, http.StatusCreated, promo)
}

// DeactivatePromo handles POST /v1/admin/promos/{code}/deactivate.
func (h *PromoHandler) DeactivatePromo(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	promo, err := h.promos.DeactivatePromo(r.Context(), adminID, chi.URLParam(r, "code"))
	if err != nil {
		RespondServiceError(w, r, err, "deactivate promo")
		return
	}
	RespondJSON(w, http.StatusOK, promo)
}
