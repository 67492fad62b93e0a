package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	draftKeyPrefix  = "listing_draft"
	DefaultDraftTTL = 30 * time.Minute
)

// Draft is a listing being assembled over several chat messages.
type Draft struct {
	Category      string `json:"category,omitempty"`
	Payload       string `json:"payload,omitempty"`
	DurationHours int32  `json:"duration_hours,omitempty"`
	Price         int64  `json:"price_micros,omitempty"`
}

// Complete reports whether every field CreateListing needs is set.
func (d Draft) Complete() bool {
	return d.Category != "" && d.Payload != "" && d.DurationHours > 0 && d.Price > 0
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Category      *string `json:"category"`
	Payload       *string `json:"payload"`
	DurationHours *int32  `json:"duration_hours"`
	Price         *int64  `json:"price_micros"`
}

func (p Patch) apply(d Draft) Draft {
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Payload != nil {
		d.Payload = *p.Payload
	}
	if p.DurationHours != nil {
		d.DurationHours = *p.DurationHours
	}
	if p.Price != nil {
		d.Price = *p.Price
	}
	return d
}

// DraftStore keeps one draft per user in Redis. Every write refreshes the TTL.
type DraftStore struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewDraftStore(redis redis.Cmdable, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore{redis: redis, ttl: ttl}
}

// Get returns the user's draft, or an empty draft when none exists.
func (s *DraftStore) Get(ctx context.Context, userID int64) (Draft, error) {
	val, err := s.redis.Get(ctx, draftKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return Draft{}, nil
	}
	if err != nil {
		return Draft{}, fmt.Errorf("get listing draft: %w", err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		zap.L().Warn("discarding unreadable listing draft", zap.Int64("user_id", userID), zap.Error(err))
		return Draft{}, nil
	}
	return d, nil
}

// Merge applies patch on top of the stored draft and saves the result.
func (s *DraftStore) Merge(ctx context.Context, userID int64, patch Patch) (Draft, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return Draft{}, err
	}
	next := patch.apply(current)
	payload, err := json.Marshal(next)
	if err != nil {
		return Draft{}, fmt.Errorf("marshal listing draft: %w", err)
	}
	if err := s.redis.Set(ctx, draftKey(userID), string(payload), s.ttl).Err(); err != nil {
		return Draft{}, fmt.Errorf("save listing draft: %w", err)
	}
	return next, nil
}

func (s *DraftStore) Clear(ctx context.Context, userID int64) error {
	if err := s.redis.Del(ctx, draftKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear listing draft: %w", err)
	}
	return nil
}

// ListingCreator is the part of the catalog a draft submits to.
type ListingCreator interface {
	CreateListing(ctx context.Context, in service.CreateListingInput) (models.Listing, error)
}

// Submit publishes the user's draft as one listing and clears it. The draft
// is kept when the catalog rejects it so the user can fix the bad field.
func Submit(ctx context.Context, drafts *DraftStore, catalog ListingCreator, userID int64) (models.Listing, error) {
	d, err := drafts.Get(ctx, userID)
	if err != nil {
		return models.Listing{}, err
	}
	if !d.Complete() {
		return models.Listing{}, domain.ErrDraftIncomplete
	}

	listing, err := catalog.CreateListing(ctx, service.CreateListingInput{
		SellerID:      userID,
		Category:      d.Category,
		Payload:       d.Payload,
		DurationHours: d.DurationHours,
		Price:         d.Price,
	})
	if err != nil {
		return models.Listing{}, err
	}

	if err := drafts.Clear(ctx, userID); err != nil {
		zap.L().Warn("listing published but draft not cleared", zap.Int64("user_id", userID), zap.Error(err))
	}
	return listing, nil
}

func draftKey(userID int64) string {
	return fmt.Sprintf("%s:%s", draftKeyPrefix, strconv.FormatInt(userID, 10))
}
