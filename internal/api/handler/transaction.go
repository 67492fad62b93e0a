package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/service"
)

// TransactionHandler serves purchase history and the post-sale actions on it.
type TransactionHandler struct {
	escrow   *service.EscrowService
	disputes *service.DisputeService
	reviews  *service.ReviewService
}

func NewTransactionHandler(escrow *service.EscrowService, disputes *service.DisputeService, reviews *service.ReviewService) *TransactionHandler {
	return &TransactionHandler{escrow: escrow, disputes: disputes, reviews: reviews}
}

// ListTransactions handles GET /v1/transactions: the caller's purchases and sales.
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	txns, err := h.escrow.ListTransactions(r.Context(), actorID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "list transactions")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  txns,
		"count":  len(txns),
		"limit":  limit,
		"offset": offset,
	})
}

// GetTransaction handles GET /v1/transactions/{id}; participants and admins only.
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.escrow.GetTransaction(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get transaction")
		return
	}
	if _, participant := txn.Counterparty(actorID); !participant && !isAdmin {
		RespondServiceError(w, r, domain.ErrNotParticipant, "get transaction")
		return
	}
	RespondJSON(w, http.StatusOK, txn)
}

type openDisputeRequest struct {
	Description string `json:"description"`
}

// OpenDispute handles POST /v1/transactions/{id}/disputes.
func (h *TransactionHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req openDisputeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	dispute, err := h.disputes.Open(r.Context(), id, actorID, strings.TrimSpace(req.Description))
	if err != nil {
		RespondServiceError(w, r, err, "open dispute")
		return
	}
	RespondJSON(w, http.StatusCreated, dispute)
}

type recordReviewRequest struct {
	Rating  int32  `json:"rating"`
	Comment string `json:"comment"`
}

// RecordReview handles POST /v1/transactions/{id}/reviews. The reviewed
// account is the caller's counterparty.
func (h *TransactionHandler) RecordReview(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req recordReviewRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	review, err := h.reviews.RecordReview(r.Context(), service.RecordReviewInput{
		TransactionID: id,
		ReviewerID:    actorID,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		RespondServiceError(w, r, err, "record review")
		return
	}
	RespondJSON(w, http.StatusCreated, review)
}
