package handler

import (
	"net/http"

	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/service"
)

// AccountHandler exposes balances, statements and admin account controls.
type AccountHandler struct {
	ledger  *service.LedgerService
	reviews *service.ReviewService
}

func NewAccountHandler(ledger *service.LedgerService, reviews *service.ReviewService) *AccountHandler {
	return &AccountHandler{ledger: ledger, reviews: reviews}
}

type accountResponse struct {
	models.Account
	AvailableMicros int64 `json:"available_micros"`
}

// publicAccount is what other users see: no balances or flags.
type publicAccount struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Rating       float64 `json:"rating"`
	TotalReviews int32   `json:"total_reviews"`
}

// Me handles GET /v1/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	acc, err := h.ledger.GetAccount(r.Context(), actorID)
	if err != nil {
		RespondServiceError(w, r, err, "get account")
		return
	}
	RespondJSON(w, http.StatusOK, accountResponse{Account: acc, AvailableMicros: acc.Available()})
}

// Statement handles GET /v1/me/statement.
func (h *AccountHandler) Statement(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.GetStatement(r.Context(), actorID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "get statement")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  entries,
		"count":  len(entries),
		"limit":  limit,
		"offset": offset,
	})
}

// GetAccount handles GET /v1/accounts/{id}. Owners and admins see the full
// account; everyone else sees the public profile.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathAccountID(w, r, "id")
	if !ok {
		return
	}
	acc, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get account")
		return
	}
	if isAdmin || actorID == id {
		RespondJSON(w, http.StatusOK, accountResponse{Account: acc, AvailableMicros: acc.Available()})
		return
	}
	RespondJSON(w, http.StatusOK, publicAccount{
		ID:           acc.ID,
		Username:     acc.Username,
		Rating:       acc.Rating,
		TotalReviews: acc.TotalReviews,
	})
}

// ListReviews handles GET /v1/accounts/{id}/reviews.
func (h *AccountHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathAccountID(w, r, "id")
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	reviews, err := h.reviews.ListReviews(r.Context(), id, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "list reviews")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  reviews,
		"count":  len(reviews),
		"limit":  limit,
		"offset": offset,
	})
}

type setBalanceRequest struct {
	amountParam
}

// SetBalance handles PUT /v1/admin/accounts/{id}/balance.
func (h *AccountHandler) SetBalance(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathAccountID(w, r, "id")
	if !ok {
		return
	}
	var req setBalanceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	value, err := req.micros()
	if err != nil {
		RespondServiceError(w, r, err, "parse amount")
		return
	}
	acc, err := h.ledger.SetBalance(r.Context(), adminID, id, value)
	if err != nil {
		RespondServiceError(w, r, err, "set balance")
		return
	}
	RespondJSON(w, http.StatusOK, accountResponse{Account: acc, AvailableMicros: acc.Available()})
}

type setBlockedRequest struct {
	Blocked bool `json:"blocked"`
}

// SetBlocked handles PUT /v1/admin/accounts/{id}/blocked.
func (h *AccountHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathAccountID(w, r, "id")
	if !ok {
		return
	}
	var req setBlockedRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	acc, err := h.ledger.SetBlocked(r.Context(), adminID, id, req.Blocked)
	if err != nil {
		RespondServiceError(w, r, err, "set blocked")
		return
	}
	RespondJSON(w, http.StatusOK, accountResponse{Account: acc, AvailableMicros: acc.Available()})
}
