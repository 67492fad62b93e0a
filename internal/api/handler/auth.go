package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayo6706/escrow-market/internal/api/middleware"
	"github.com/ayo6706/escrow-market/internal/service"
)

// AuthHandler issues tokens to the chat front-end on behalf of its users.
type AuthHandler struct {
	ledger *service.LedgerService
	ttl    time.Duration
}

func NewAuthHandler(ledger *service.LedgerService, ttl time.Duration) *AuthHandler {
	return &AuthHandler{ledger: ledger, ttl: ttl}
}

type issueTokenRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}

// IssueToken handles POST /v1/auth/token. The account is created on first
// contact; the role reflects the stored admin flag.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.UserID <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "user_id must be a positive integer")
		return
	}

	acc, err := h.ledger.EnsureAccount(r.Context(), req.UserID, strings.TrimSpace(req.Username))
	if err != nil {
		RespondServiceError(w, r, err, "ensure account")
		return
	}

	role := middleware.RoleUser
	if acc.IsAdmin {
		role = middleware.RoleAdmin
	}
	token, expires, err := middleware.IssueToken(acc.ID, role, h.ttl)
	if err != nil {
		RespondServiceError(w, r, err, "issue token")
		return
	}
	RespondJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires, Role: role})
}
