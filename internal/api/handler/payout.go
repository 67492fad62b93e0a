package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/service"
)

// PayoutHandler handles HTTP requests for payouts.
type PayoutHandler struct {
	payoutSvc *service.PayoutService
}

func NewPayoutHandler(payoutSvc *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payoutSvc: payoutSvc}
}

type createPayoutRequest struct {
	amountParam
}

// CreatePayout handles POST /v1/payouts.
// Funds are held immediately; the worker sends them, so it returns 202 Accepted.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createPayoutRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	amount, err := req.micros()
	if err != nil {
		RespondServiceError(w, r, err, "parse amount")
		return
	}

	payout, err := h.payoutSvc.RequestPayout(r.Context(), actorID, amount)
	if err != nil {
		RespondServiceError(w, r, err, "create payout")
		return
	}
	RespondJSON(w, http.StatusAccepted, payout)
}

// GetPayout handles GET /v1/payouts/{id}.
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	payoutID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	payout, err := h.payoutSvc.GetPayout(r.Context(), payoutID)
	if err != nil {
		RespondServiceError(w, r, err, "get payout")
		return
	}
	if !isAdmin && payout.AccountID != actorID {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	RespondJSON(w, http.StatusOK, payout)
}

// ListManualReviewPayouts handles GET /v1/admin/payouts/manual-review.
func (h *PayoutHandler) ListManualReviewPayouts(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	payouts, err := h.payoutSvc.ListManualReviewPayouts(r.Context(), limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "list manual review payouts")
		return
	}
	total, err := h.payoutSvc.ManualReviewQueueSize(r.Context())
	if err != nil {
		total = int64(len(payouts))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":       payouts,
		"limit":       limit,
		"offset":      offset,
		"count":       len(payouts),
		"total_count": total,
	})
}

type resolveManualReviewRequest struct {
	Decision      string  `json:"decision"`
	Reason        string  `json:"reason"`
	SettlementRef *string `json:"settlement_ref,omitempty"`
}

// ResolveManualReviewPayout handles POST /v1/admin/payouts/{id}/resolve.
func (h *PayoutHandler) ResolveManualReviewPayout(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	payoutID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req resolveManualReviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	req.Decision = strings.TrimSpace(strings.ToLower(req.Decision))
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		RespondServiceError(w, r, domain.NewValidationError("reason", "is required"), "resolve manual review")
		return
	}

	result, err := h.payoutSvc.ResolveManualReviewPayout(r.Context(), service.ResolveManualReviewRequest{
		PayoutID:      payoutID,
		AdminID:       actorID,
		Decision:      service.ResolveManualReviewDecision(req.Decision),
		Reason:        req.Reason,
		SettlementRef: req.SettlementRef,
	})
	if err != nil {
		RespondServiceError(w, r, err, "resolve manual review payout")
		return
	}

	RespondJSON(w, http.StatusOK, result)
}
