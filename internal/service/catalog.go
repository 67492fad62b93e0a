package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateListingInput describes a phone number offered for rent.
type CreateListingInput struct {
	SellerID      int64  `json:"seller_id" validate:"required,gt=0"`
	Category      string `json:"category" validate:"required,listing_category"`
	Payload       string `json:"payload" validate:"required,e164"`
	DurationHours int32  `json:"duration_hours" validate:"gte=1,lte=168"`
	Price         int64  `json:"price_micros"`
}

// ListingFilter narrows a catalog query. Zero values mean "no constraint".
type ListingFilter struct {
	Category string
	SellerID int64
	MinPrice int64
	MaxPrice int64
	OrderBy  string
	Limit    int32
}

type CatalogService struct {
	store    QueryStore
	audit    *AuditService
	validate *ValidationHelper
	minPrice int64
}

// NewCatalogService creates a catalog that rejects prices at or below minPrice.
func NewCatalogService(store QueryStore, minPrice int64) *CatalogService {
	return &CatalogService{
		store:    store,
		audit:    NewAuditService(store),
		validate: NewValidationHelper(),
		minPrice: max(minPrice, 0),
	}
}

func (s *CatalogService) CreateListing(ctx context.Context, in CreateListingInput) (models.Listing, error) {
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Payload = strings.TrimSpace(in.Payload)
	if err := s.validate.ValidateStruct(in); err != nil {
		return models.Listing{}, err
	}
	if in.Price <= s.minPrice {
		return models.Listing{}, domain.ErrInvalidPrice
	}

	var listing models.Listing
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		locked, err := lockAccounts(ctx, qtx, in.SellerID)
		if err != nil {
			return err
		}
		if locked[in.SellerID].IsBlocked {
			return domain.ErrAccountBlocked
		}

		listing, err = qtx.CreateListing(ctx, repository.CreateListingParams{
			ID:            uuid.New(),
			SellerID:      in.SellerID,
			Category:      in.Category,
			Payload:       in.Payload,
			DurationHours: in.DurationHours,
			Price:         in.Price,
		})
		if err != nil {
			return fmt.Errorf("create listing: %w", err)
		}
		return s.audit.Write(ctx, qtx, "listing", listing.ID.String(), &in.SellerID, "created", "", "active", nil)
	})
	if err != nil {
		return models.Listing{}, err
	}

	zap.L().Info("listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.Int64("seller_id", listing.SellerID),
		zap.String("category", listing.Category),
	)
	return listing, nil
}

func (s *CatalogService) GetListing(ctx context.Context, id uuid.UUID) (models.Listing, error) {
	listing, err := s.store.Queries().GetListing(ctx, id)
	if err != nil {
		return models.Listing{}, notFound(err, domain.ErrListingNotFound, "get listing")
	}
	return listing, nil
}

// ListListings returns a lazy sequence of active listings. Each range over the
// result runs a fresh query, so the sequence can be iterated more than once.
func (s *CatalogService) ListListings(ctx context.Context, filter ListingFilter) iter.Seq2[models.Listing, error] {
	params, err := s.listParams(filter)
	if err != nil {
		return func(yield func(models.Listing, error) bool) {
			yield(models.Listing{}, err)
		}
	}
	return s.store.Queries().ListListings(ctx, params)
}

func (s *CatalogService) listParams(filter ListingFilter) (repository.ListListingsParams, error) {
	category := strings.ToLower(strings.TrimSpace(filter.Category))
	if category != "" && !slices.Contains(domain.ListingCategories, category) {
		return repository.ListListingsParams{}, domain.NewValidationError("category", "unknown category")
	}

	order := filter.OrderBy
	switch order {
	case "":
		order = domain.ListingOrderNewest
	case domain.ListingOrderNewest, domain.ListingOrderPriceAsc, domain.ListingOrderPriceDesc:
	default:
		return repository.ListListingsParams{}, domain.NewValidationError("order", "must be newest, price_asc or price_desc")
	}

	if filter.MinPrice < 0 || filter.MaxPrice < 0 || (filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice) {
		return repository.ListListingsParams{}, domain.NewValidationError("price", "invalid price range")
	}

	limit, _ := normalizePage(filter.Limit, 0)
	return repository.ListListingsParams{
		Category: category,
		SellerID: filter.SellerID,
		MinPrice: filter.MinPrice,
		MaxPrice: filter.MaxPrice,
		OrderBy:  order,
		Limit:    limit,
	}, nil
}

// Deactivate withdraws a listing from sale. Deactivating an inactive listing
// is a no-op that returns the listing unchanged.
func (s *CatalogService) Deactivate(ctx context.Context, actorID int64, listingID uuid.UUID) (models.Listing, error) {
	var out models.Listing
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		listing, err := qtx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return notFound(err, domain.ErrListingNotFound, "lock listing")
		}
		if listing.SellerID != actorID {
			if err := requireAdmin(ctx, qtx, actorID); err != nil {
				if errors.Is(err, domain.ErrNotAdmin) {
					return domain.ErrNotParticipant
				}
				return err
			}
		}
		if !listing.Active {
			out = listing
			return nil
		}

		rows, err := qtx.DeactivateListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("deactivate listing: %w", err)
		}
		if err := requireExactlyOne(rows, "deactivate listing"); err != nil {
			return err
		}
		if err := s.audit.Write(ctx, qtx, "listing", listingID.String(), &actorID, "deactivated", "active", "inactive", nil); err != nil {
			return err
		}
		listing.Active = false
		out = listing
		return nil
	})
	return out, err
}
