package handler

import (
	"net/http"

	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/go-chi/chi/v5"
)

// AuditHandler exposes the audit trail to admins.
type AuditHandler struct {
	audit *service.AuditService
}

func NewAuditHandler(audit *service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// History handles GET /v1/admin/audit/{entity}/{id}.
func (h *AuditHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.History(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		RespondServiceError(w, r, err, "audit history")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}
