package handler

import (
	"io"
	"net/http"

	"github.com/ayo6706/escrow-market/internal/service"
	"go.uber.org/zap"
)

const SignatureHeader = "X-Crypto-Pay-Signature"

// WebhookHandler receives payment confirmations from the provider.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookSvc: webhookSvc}
}

// HandlePaymentWebhook handles POST /v1/webhooks/crypto-pay.
// The signature covers the raw body, so it is read before any decoding.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	resp, err := h.webhookSvc.HandlePaymentConfirmed(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		RespondServiceError(w, r, err, "process payment webhook")
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}
