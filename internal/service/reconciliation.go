package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/observability"
	"github.com/ayo6706/escrow-market/internal/repository"
	"go.uber.org/zap"
)

const (
	CheckAccountBalance = "account_balance"
	CheckTransferNet    = "transfer_net"
	CheckMoneySupply    = "money_supply"
)

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// ReconciliationReport is the outcome of one run.
type ReconciliationReport struct {
	Drifts []repository.BalanceDrift
	Kinds  []repository.KindTotal
	// TransferNet is credits minus debits over purchase and refund entries.
	TransferNet int64
	// BalanceTotal is the sum of every account balance.
	BalanceTotal int64
	// Injected is deposits, promos and adjustments net; Withdrawn is payouts net.
	Injected  int64
	Withdrawn int64
}

// Failed lists the checks that did not hold.
func (r ReconciliationReport) Failed() []string {
	var failed []string
	if len(r.Drifts) > 0 {
		failed = append(failed, CheckAccountBalance)
	}
	if r.TransferNet != 0 {
		failed = append(failed, CheckTransferNet)
	}
	if r.BalanceTotal != r.Injected-r.Withdrawn {
		failed = append(failed, CheckMoneySupply)
	}
	return failed
}

func (r ReconciliationReport) Balanced() bool {
	return len(r.Failed()) == 0
}

// Run checks that every balance matches its entries, that transfers between
// accounts net to zero, and that the money held by accounts equals what
// entered minus what left the platform.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	queries := s.store.Queries()
	var report ReconciliationReport

	drifts, err := queries.ListBalanceDrift(ctx)
	if err != nil {
		return report, fmt.Errorf("run balance drift query: %w", err)
	}
	report.Drifts = drifts

	kinds, err := queries.SumEntriesByKind(ctx)
	if err != nil {
		return report, fmt.Errorf("run entry totals query: %w", err)
	}
	report.Kinds = kinds
	for _, k := range kinds {
		net := k.Credits - k.Debits
		switch k.Kind {
		case domain.EntryKindPurchase, domain.EntryKindRefund:
			report.TransferNet += net
		case domain.EntryKindPayout:
			report.Withdrawn -= net
		default:
			report.Injected += net
		}
	}

	report.BalanceTotal, err = queries.SumAccountBalances(ctx)
	if err != nil {
		return report, fmt.Errorf("run balance total query: %w", err)
	}

	failed := report.Failed()
	if len(failed) == 0 {
		zap.L().Info("Ledger Balanced", zap.String("balance_total", domain.FormatMicros(report.BalanceTotal)))
		return report, nil
	}

	for _, check := range failed {
		observability.IncrementLedgerImbalance(check)
	}
	for _, d := range drifts {
		zap.L().Error("CRITICAL: account balance drift detected",
			zap.Int64("account_id", d.AccountID),
			zap.Int64("balance_micros", d.Balance),
			zap.Int64("entries_net_micros", d.EntriesNet),
		)
	}
	zap.L().Error("CRITICAL: ledger imbalance detected",
		zap.Strings("checks", failed),
		zap.Int64("transfer_net_micros", report.TransferNet),
		zap.Int64("balance_total_micros", report.BalanceTotal),
		zap.Int64("injected_micros", report.Injected),
		zap.Int64("withdrawn_micros", report.Withdrawn),
	)
	return report, nil
}
