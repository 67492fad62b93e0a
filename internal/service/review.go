package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReviewComment = 1000

// RecordReviewInput is one party's rating of the other. ReviewedID zero means
// the counterparty.
type RecordReviewInput struct {
	TransactionID uuid.UUID
	ReviewerID    int64
	ReviewedID    int64
	Rating        int32
	Comment       string
}

type ReviewService struct {
	store QueryStore
	audit *AuditService
}

func NewReviewService(store QueryStore) *ReviewService {
	return &ReviewService{
		store: store,
		audit: NewAuditService(store),
	}
}

// RecordReview stores a review and recomputes the reviewed account's rating
// as the mean of every rating it has received.
func (s *ReviewService) RecordReview(ctx context.Context, in RecordReviewInput) (models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return models.Review{}, domain.ErrInvalidRating
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(in.Comment) > maxReviewComment {
		return models.Review{}, domain.NewValidationError("comment", "must be at most 1000 characters")
	}

	var review models.Review
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		txn, err := qtx.GetTransaction(ctx, in.TransactionID)
		if err != nil {
			return notFound(err, domain.ErrTransactionNotFound, "get transaction")
		}
		counterparty, ok := txn.Counterparty(in.ReviewerID)
		if !ok {
			return domain.ErrNotParticipant
		}
		if in.ReviewedID == 0 {
			in.ReviewedID = counterparty
		}
		if in.ReviewedID != counterparty {
			return domain.ErrNotParticipant
		}

		exists, err := qtx.ReviewExists(ctx, repository.ReviewExistsParams{
			TransactionID: in.TransactionID,
			ReviewerID:    in.ReviewerID,
		})
		if err != nil {
			return fmt.Errorf("check review: %w", err)
		}
		if exists {
			return domain.ErrDuplicateReview
		}

		// Both participants are locked in id order: buyer and seller may review
		// each other concurrently, and each mean is recomputed under its lock.
		if _, err := lockAccounts(ctx, qtx, in.ReviewerID, in.ReviewedID); err != nil {
			return err
		}
		review, err = qtx.CreateReview(ctx, repository.CreateReviewParams{
			ID:            uuid.New(),
			TransactionID: in.TransactionID,
			ReviewerID:    in.ReviewerID,
			ReviewedID:    in.ReviewedID,
			Rating:        in.Rating,
			Comment:       in.Comment,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateReview
			}
			return fmt.Errorf("create review: %w", err)
		}

		acc, err := qtx.RefreshAccountRating(ctx, in.ReviewedID)
		if err != nil {
			return fmt.Errorf("refresh rating: %w", err)
		}
		return s.audit.Write(ctx, qtx, "account", strconv.FormatInt(in.ReviewedID, 10), &in.ReviewerID, "reviewed",
			"", strconv.FormatFloat(acc.Rating, 'f', 2, 64), nil)
	})
	if err != nil {
		return models.Review{}, err
	}

	zap.L().Info("review recorded",
		zap.String("transaction_id", in.TransactionID.String()),
		zap.Int64("reviewer_id", in.ReviewerID),
		zap.Int64("reviewed_id", in.ReviewedID),
		zap.Int32("rating", in.Rating),
	)
	return review, nil
}

// ListReviews returns the reviews an account received, newest first.
func (s *ReviewService) ListReviews(ctx context.Context, accountID int64, limit, offset int32) ([]models.Review, error) {
	limit, offset = normalizePage(limit, offset)
	reviews, err := s.store.Queries().ListReviewsForAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
