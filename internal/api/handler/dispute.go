package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/service"
)

// DisputeHandler serves dispute lookups and the admin decision endpoints.
type DisputeHandler struct {
	disputes *service.DisputeService
}

func NewDisputeHandler(disputes *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// GetDispute handles GET /v1/disputes/{id}; parties and admins only.
func (h *DisputeHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	dispute, err := h.disputes.GetDispute(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get dispute")
		return
	}
	if !isAdmin && actorID != dispute.BuyerID && actorID != dispute.SellerID {
		RespondServiceError(w, r, domain.ErrNotParticipant, "get dispute")
		return
	}
	RespondJSON(w, http.StatusOK, dispute)
}

// ListDisputes handles GET /v1/admin/disputes?status=open.
func (h *DisputeHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}
	disputes, err := h.disputes.ListDisputes(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "list disputes")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items":  disputes,
		"count":  len(disputes),
		"limit":  limit,
		"offset": offset,
	})
}

type resolveDisputeRequest struct {
	Winner     string `json:"winner"`
	Resolution string `json:"resolution"`
}

// ResolveDispute handles POST /v1/admin/disputes/{id}/resolve.
func (h *DisputeHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req resolveDisputeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	dispute, err := h.disputes.Resolve(r.Context(), id, adminID, req.Winner, strings.TrimSpace(req.Resolution))
	if err != nil {
		RespondServiceError(w, r, err, "resolve dispute")
		return
	}
	RespondJSON(w, http.StatusOK, dispute)
}

type closeDisputeRequest struct {
	Reason string `json:"reason"`
}

// CloseDispute handles POST /v1/admin/disputes/{id}/close.
func (h *DisputeHandler) CloseDispute(w http.ResponseWriter, r *http.Request) {
	adminID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req closeDisputeRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	dispute, err := h.disputes.Close(r.Context(), id, adminID, strings.TrimSpace(req.Reason))
	if err != nil {
		RespondServiceError(w, r, err, "close dispute")
		return
	}
	RespondJSON(w, http.StatusOK, dispute)
}
