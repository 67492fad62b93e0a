package handler

import (
	"bytes"
	"image/png"
	"net/http"
	"strconv"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// DepositHandler creates top-up invoices.
type DepositHandler struct {
	deposits *service.DepositService
}

func NewDepositHandler(deposits *service.DepositService) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

type createDepositRequest struct {
	amountParam
}

// CreateDeposit handles POST /v1/deposits. The balance is credited later by
// the payment webhook.
func (h *DepositHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createDepositRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	amount, err := req.micros()
	if err != nil {
		RespondServiceError(w, r, err, "parse amount")
		return
	}
	deposit, err := h.deposits.CreateDeposit(r.Context(), actorID, amount)
	if err != nil {
		RespondServiceError(w, r, err, "create deposit")
		return
	}
	RespondJSON(w, http.StatusCreated, deposit)
}

// GetDeposit handles GET /v1/deposits/{id}.
func (h *DepositHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	deposit, ok := h.ownedDeposit(w, r)
	if !ok {
		return
	}
	RespondJSON(w, http.StatusOK, deposit)
}

// DepositQR handles GET /v1/deposits/{id}/qr: a PNG of the pay URL for
// clients that show an image instead of a link.
func (h *DepositHandler) DepositQR(w http.ResponseWriter, r *http.Request) {
	deposit, ok := h.ownedDeposit(w, r)
	if !ok {
		return
	}
	if deposit.PayURL == "" {
		RespondError(w, r, http.StatusNotFound, "deposit/no-pay-url", "deposit has no pay URL")
		return
	}

	qr, err := qrcode.New(deposit.PayURL, qrcode.Medium)
	if err != nil {
		RespondServiceError(w, r, err, "encode deposit qr")
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrSize)); err != nil {
		RespondServiceError(w, r, err, "render deposit qr")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *DepositHandler) ownedDeposit(w http.ResponseWriter, r *http.Request) (models.Deposit, bool) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return models.Deposit{}, false
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return models.Deposit{}, false
	}
	deposit, err := h.deposits.GetDeposit(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get deposit")
		return models.Deposit{}, false
	}
	if !isAdmin && deposit.AccountID != actorID {
		// Someone else's deposit is reported as missing.
		RespondServiceError(w, r, domain.ErrDepositNotFound, "get deposit")
		return models.Deposit{}, false
	}
	return deposit, true
}
