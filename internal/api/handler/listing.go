package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/service"
)

// ListingHandler serves the catalog and the purchase entry point.
type ListingHandler struct {
	catalog *service.CatalogService
	escrow  *service.EscrowService
}

func NewListingHandler(catalog *service.CatalogService, escrow *service.EscrowService) *ListingHandler {
	return &ListingHandler{catalog: catalog, escrow: escrow}
}

// listingView hides the rented number from everyone but the seller and admins.
type listingView struct {
	models.Listing
	Payload string `json:"payload,omitempty"`
}

func viewListing(l models.Listing, actorID int64, isAdmin bool) listingView {
	v := listingView{Listing: l}
	if isAdmin || l.SellerID == actorID {
		v.Payload = l.Payload
	}
	return v
}

type createListingRequest struct {
	Category      string `json:"category"`
	Payload       string `json:"payload"`
	DurationHours int32  `json:"duration_hours"`
	amountParam
}

// CreateListing handles POST /v1/listings.
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createListingRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	price, err := req.micros()
	if err != nil {
		RespondServiceError(w, r, err, "parse price")
		return
	}
	listing, err := h.catalog.CreateListing(r.Context(), service.CreateListingInput{
		SellerID:      actorID,
		Category:      req.Category,
		Payload:       req.Payload,
		DurationHours: req.DurationHours,
		Price:         price,
	})
	if err != nil {
		RespondServiceError(w, r, err, "create listing")
		return
	}
	RespondJSON(w, http.StatusCreated, viewListing(listing, actorID, false))
}

// ListListings handles GET /v1/listings?category=&seller_id=&min_price=&max_price=&order=&limit=.
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := service.ListingFilter{
		Category: q.Get("category"),
		OrderBy:  strings.TrimSpace(q.Get("order")),
	}
	if v := q.Get("seller_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-seller-id", "seller_id must be a positive integer")
			return
		}
		filter.SellerID = id
	}
	for name, dst := range map[string]*int64{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		if v := q.Get(name); v != "" {
			micros, err := domain.ParseAmount(v)
			if err != nil {
				RespondError(w, r, http.StatusBadRequest, "request/invalid-"+strings.ReplaceAll(name, "_", "-"), name+" must be a decimal amount")
				return
			}
			*dst = micros
		}
	}
	limit, _, ok := pagination(w, r)
	if !ok {
		return
	}
	filter.Limit = limit

	items := []listingView{}
	for listing, err := range h.catalog.ListListings(r.Context(), filter) {
		if err != nil {
			RespondServiceError(w, r, err, "list listings")
			return
		}
		items = append(items, viewListing(listing, actorID, isAdmin))
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// GetListing handles GET /v1/listings/{id}.
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	listing, err := h.catalog.GetListing(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get listing")
		return
	}
	RespondJSON(w, http.StatusOK, viewListing(listing, actorID, isAdmin))
}

// Deactivate handles POST /v1/listings/{id}/deactivate.
func (h *ListingHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	listing, err := h.catalog.Deactivate(r.Context(), actorID, id)
	if err != nil {
		RespondServiceError(w, r, err, "deactivate listing")
		return
	}
	RespondJSON(w, http.StatusOK, viewListing(listing, actorID, isAdmin))
}

type purchaseResponse struct {
	Transaction models.Transaction `json:"transaction"`
	Listing     models.Listing     `json:"listing"`
}

// Purchase handles POST /v1/listings/{id}/purchase. The buyer receives the
// rented number in the response.
func (h *ListingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	txn, err := h.escrow.Purchase(r.Context(), actorID, id)
	if err != nil {
		RespondServiceError(w, r, err, "purchase listing")
		return
	}
	listing, err := h.catalog.GetListing(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get purchased listing")
		return
	}
	RespondJSON(w, http.StatusCreated, purchaseResponse{Transaction: txn, Listing: listing})
}
