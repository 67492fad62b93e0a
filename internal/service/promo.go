package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreatePromoInput describes a new promo code. ExpiresAt nil means it never expires.
type CreatePromoInput struct {
	Code      string     `json:"code"`
	Amount    int64      `json:"amount_micros"`
	MaxUses   int32      `json:"max_uses" validate:"gte=1"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type PromoService struct {
	store    QueryStore
	audit    *AuditService
	validate *ValidationHelper
	now      func() time.Time
}

func NewPromoService(store QueryStore) *PromoService {
	return &PromoService{
		store:    store,
		audit:    NewAuditService(store),
		validate: NewValidationHelper(),
		now:      time.Now,
	}
}

// normalizeCode is applied once, when a code is created. Lookups compare the
// trimmed input exactly, so "summer10" does not redeem SUMMER10.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *PromoService) CreatePromo(ctx context.Context, adminID int64, in CreatePromoInput) (models.PromoCode, error) {
	in.Code = normalizeCode(in.Code)
	if !promoCodePattern.MatchString(in.Code) {
		return models.PromoCode{}, domain.ErrInvalidCode
	}
	if in.Amount <= 0 {
		return models.PromoCode{}, domain.ErrInvalidAmount
	}
	if err := s.validate.ValidateStruct(in); err != nil {
		return models.PromoCode{}, err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return models.PromoCode{}, domain.NewValidationError("expires_at", "must be in the future")
	}

	var promo models.PromoCode
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := requireAdmin(ctx, qtx, adminID); err != nil {
			return err
		}
		var err error
		promo, err = qtx.CreatePromoCode(ctx, repository.CreatePromoCodeParams{
			ID:        uuid.New(),
			Code:      in.Code,
			Amount:    in.Amount,
			MaxUses:   in.MaxUses,
			CreatedBy: adminID,
			ExpiresAt: in.ExpiresAt,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrCodeConflict
			}
			return fmt.Errorf("create promo code: %w", err)
		}
		metadata, err := json.Marshal(map[string]any{
			"code":          promo.Code,
			"amount_micros": promo.Amount,
			"max_uses":      promo.MaxUses,
		})
		if err != nil {
			return fmt.Errorf("marshal promo metadata: %w", err)
		}
		return s.audit.Write(ctx, qtx, "promo_code", promo.ID.String(), &adminID, "created", "", "active", metadata)
	})
	if err != nil {
		return models.PromoCode{}, err
	}

	zap.L().Warn("promo code created",
		zap.Int64("admin_id", adminID),
		zap.String("code", promo.Code),
		zap.String("amount", domain.FormatMicros(promo.Amount)),
		zap.Int32("max_uses", promo.MaxUses),
	)
	return promo, nil
}

// Redeem credits the code's amount to accountID and returns it. The code row
// lock makes the use counter exact under concurrent redemptions.
func (s *PromoService) Redeem(ctx context.Context, code string, accountID int64) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, domain.ErrInvalidCode
	}

	var credited int64
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		promo, err := qtx.GetPromoCodeForUpdate(ctx, code)
		if err != nil {
			return notFound(err, domain.ErrCodeNotFound, "lock promo code")
		}
		if promo.ExpiresAt != nil && !s.now().Before(*promo.ExpiresAt) {
			return domain.ErrCodeExpired
		}
		if !promo.Active || promo.CurrentUses >= promo.MaxUses {
			return domain.ErrCodeExhausted
		}

		locked, err := lockAccounts(ctx, qtx, accountID)
		if err != nil {
			return err
		}
		if locked[accountID].IsBlocked {
			return domain.ErrAccountBlocked
		}

		consumed, err := qtx.ConsumePromoCode(ctx, repository.ConsumePromoCodeParams{ID: promo.ID, RedeemedBy: accountID})
		if err != nil {
			return notFound(err, domain.ErrCodeExhausted, "consume promo code")
		}

		redemptionID := uuid.New()
		if err := qtx.CreatePromoRedemption(ctx, repository.CreatePromoRedemptionParams{
			ID:        redemptionID,
			PromoID:   promo.ID,
			AccountID: accountID,
			Amount:    promo.Amount,
		}); err != nil {
			return fmt.Errorf("record promo redemption: %w", err)
		}
		if err := postCredit(ctx, qtx, accountID, promo.Amount, domain.EntryKindPromo, redemptionID); err != nil {
			return err
		}

		next := "active"
		if !consumed.Active {
			next = "exhausted"
		}
		metadata, err := json.Marshal(map[string]any{
			"redemption_id": redemptionID,
			"current_uses":  consumed.CurrentUses,
		})
		if err != nil {
			return fmt.Errorf("marshal redemption metadata: %w", err)
		}
		if err := s.audit.Write(ctx, qtx, "promo_code", promo.ID.String(), &accountID, "redeemed", "active", next, metadata); err != nil {
			return err
		}
		credited = promo.Amount
		return nil
	})
	if err != nil {
		observability.IncrementPromoRedemption(domain.CodeOf(err))
		return 0, err
	}

	observability.IncrementPromoRedemption("redeemed")
	zap.L().Info("promo code redeemed",
		zap.String("code", code),
		zap.Int64("account_id", accountID),
		zap.String("amount", domain.FormatMicros(credited)),
	)
	return credited, nil
}

// DeactivatePromo disables a code. Deactivating an inactive code is a no-op.
func (s *PromoService) DeactivatePromo(ctx context.Context, adminID int64, code string) (models.PromoCode, error) {
	code = strings.TrimSpace(code)
	var out models.PromoCode
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := requireAdmin(ctx, qtx, adminID); err != nil {
			return err
		}
		promo, err := qtx.GetPromoCodeForUpdate(ctx, code)
		if err != nil {
			return notFound(err, domain.ErrCodeNotFound, "lock promo code")
		}
		rows, err := qtx.DeactivatePromoCode(ctx, promo.ID)
		if err != nil {
			return fmt.Errorf("deactivate promo code: %w", err)
		}
		if rows == 1 {
			if err := s.audit.Write(ctx, qtx, "promo_code", promo.ID.String(), &adminID, "deactivated", "active", "inactive", nil); err != nil {
				return err
			}
		}
		promo.Active = false
		out = promo
		return nil
	})
	return out, err
}

func (s *PromoService) GetPromo(ctx context.Context, code string) (models.PromoCode, error) {
	promo, err := s.store.Queries().GetPromoCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return models.PromoCode{}, notFound(err, domain.ErrCodeNotFound, "get promo code")
	}
	return promo, nil
}
