package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EscrowService sells listings. A purchase pays the seller immediately; the
// dispute process is the only way money flows back.
type EscrowService struct {
	store QueryStore
	audit *AuditService
}

func NewEscrowService(store QueryStore) *EscrowService {
	return &EscrowService{
		store: store,
		audit: NewAuditService(store),
	}
}

// Purchase buys a listing for buyerID. The listing row lock serializes
// concurrent buyers: exactly one sees the listing active, the others get
// ErrListingUnavailable.
func (s *EscrowService) Purchase(ctx context.Context, buyerID int64, listingID uuid.UUID) (models.Transaction, error) {
	var txn models.Transaction
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		listing, err := qtx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return notFound(err, domain.ErrListingUnavailable, "lock listing")
		}
		if !listing.Active || listing.SellerID == buyerID {
			return domain.ErrListingUnavailable
		}

		locked, err := lockAccounts(ctx, qtx, buyerID, listing.SellerID)
		if err != nil {
			return err
		}
		buyer := locked[buyerID]
		if buyer.IsBlocked {
			return domain.ErrAccountBlocked
		}
		if buyer.Available() < listing.Price {
			return domain.ErrInsufficientFunds
		}

		rows, err := qtx.DeactivateListing(ctx, listing.ID)
		if err != nil {
			return fmt.Errorf("deactivate sold listing: %w", err)
		}
		if rows != 1 {
			return domain.ErrListingUnavailable
		}

		txID := uuid.New()
		if err := postDebit(ctx, qtx, buyerID, listing.Price, domain.EntryKindPurchase, txID); err != nil {
			return err
		}
		if err := postCredit(ctx, qtx, listing.SellerID, listing.Price, domain.EntryKindPurchase, txID); err != nil {
			return err
		}

		txn, err = qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
			ID:        txID,
			ListingID: listing.ID,
			BuyerID:   buyerID,
			SellerID:  listing.SellerID,
			Amount:    listing.Price,
			Status:    domain.TxStatusCompleted,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrListingUnavailable
			}
			return fmt.Errorf("create transaction: %w", err)
		}

		metadata, err := json.Marshal(map[string]any{
			"listing_id":    listing.ID,
			"amount_micros": listing.Price,
		})
		if err != nil {
			return fmt.Errorf("marshal purchase metadata: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, "listing", listing.ID.String(), &buyerID, "sold", "active", "inactive", nil); err != nil {
			return err
		}
		return s.audit.Write(ctx, qtx, "transaction", txID.String(), &buyerID, "created", "", domain.TxStatusCompleted, metadata)
	})
	if err != nil {
		observability.IncrementPurchase(domain.CodeOf(err))
		return models.Transaction{}, err
	}

	observability.IncrementPurchase(domain.TxStatusCompleted)
	zap.L().Info("listing purchased",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("listing_id", listingID.String()),
		zap.Int64("buyer_id", txn.BuyerID),
		zap.Int64("seller_id", txn.SellerID),
		zap.String("amount", domain.FormatMicros(txn.Amount)),
	)
	return txn, nil
}

func (s *EscrowService) GetTransaction(ctx context.Context, id uuid.UUID) (models.Transaction, error) {
	txn, err := s.store.Queries().GetTransaction(ctx, id)
	if err != nil {
		return models.Transaction{}, notFound(err, domain.ErrTransactionNotFound, "get transaction")
	}
	return txn, nil
}

// ListTransactions returns the transactions an account bought or sold, newest first.
func (s *EscrowService) ListTransactions(ctx context.Context, accountID int64, limit, offset int32) ([]models.Transaction, error) {
	limit, offset = normalizePage(limit, offset)
	txns, err := s.store.Queries().ListTransactionsByAccount(ctx, repository.ListByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}
