package handler

import (
	"net/http"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/session"
)

// DraftHandler keeps the per-user listing draft of the conversational flow.
type DraftHandler struct {
	drafts  *session.DraftStore
	catalog session.ListingCreator
}

func NewDraftHandler(drafts *session.DraftStore, catalog session.ListingCreator) *DraftHandler {
	return &DraftHandler{drafts: drafts, catalog: catalog}
}

type draftResponse struct {
	session.Draft
	Complete bool `json:"complete"`
}

type patchDraftRequest struct {
	Category      *string `json:"category"`
	Payload       *string `json:"payload"`
	DurationHours *int32  `json:"duration_hours"`
	Price         *string `json:"price"`
	PriceMicros   *int64  `json:"price_micros"`
}

// GetDraft handles GET /v1/listing-draft.
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	d, err := h.drafts.Get(r.Context(), actorID)
	if err != nil {
		RespondServiceError(w, r, err, "get draft")
		return
	}
	RespondJSON(w, http.StatusOK, draftResponse{Draft: d, Complete: d.Complete()})
}

// PatchDraft handles PATCH /v1/listing-draft. Only the fields present are changed.
func (h *DraftHandler) PatchDraft(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req patchDraftRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	patch := session.Patch{
		Category:      req.Category,
		Payload:       req.Payload,
		DurationHours: req.DurationHours,
		Price:         req.PriceMicros,
	}
	if req.Price != nil {
		micros, err := domain.ParseAmount(*req.Price)
		if err != nil {
			RespondServiceError(w, r, err, "parse price")
			return
		}
		patch.Price = &micros
	}
	if patch.DurationHours != nil && (*patch.DurationHours < domain.MinRentalHours || *patch.DurationHours > domain.MaxRentalHours) {
		RespondServiceError(w, r, domain.NewValidationError("duration_hours", "must be between 1 and 168"), "patch draft")
		return
	}

	d, err := h.drafts.Merge(r.Context(), actorID, patch)
	if err != nil {
		RespondServiceError(w, r, err, "save draft")
		return
	}
	RespondJSON(w, http.StatusOK, draftResponse{Draft: d, Complete: d.Complete()})
}

// DeleteDraft handles DELETE /v1/listing-draft.
func (h *DraftHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	if err := h.drafts.Clear(r.Context(), actorID); err != nil {
		RespondServiceError(w, r, err, "clear draft")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitDraft handles POST /v1/listing-draft/submit.
func (h *DraftHandler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	listing, err := session.Submit(r.Context(), h.drafts, h.catalog, actorID)
	if err != nil {
		RespondServiceError(w, r, err, "submit draft")
		return
	}
	RespondJSON(w, http.StatusCreated, viewListing(listing, actorID, false))
}
