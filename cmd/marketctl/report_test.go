package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestRenderReconciliationBalanced(t *testing.T) {
	report := service.ReconciliationReport{
		Kinds: []repository.KindTotal{
			{Kind: domain.EntryKindDeposit, Credits: 10_000_000},
			{Kind: domain.EntryKindPurchase, Credits: 4_000_000, Debits: 4_000_000},
		},
		BalanceTotal: 10_000_000,
		Injected:     10_000_000,
	}
	var buf bytes.Buffer
	renderReconciliation(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, domain.EntryKindDeposit)
	assert.Contains(t, out, "ledger balanced across 2 entry kind(s)")
	assert.NotContains(t, out, "FAILED")
}

func TestRenderReconciliationDrift(t *testing.T) {
	report := service.ReconciliationReport{
		Drifts:       []repository.BalanceDrift{{AccountID: 7, Balance: 5_000_000, EntriesNet: 4_000_000}},
		BalanceTotal: 5_000_000,
		Injected:     4_000_000,
	}
	var buf bytes.Buffer
	renderReconciliation(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "drift: account 7 balance 5, entries 4")
	assert.Contains(t, out, "FAILED checks")
	assert.Contains(t, out, service.CheckAccountBalance)
}

func TestRenderAudit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	actor := int64(1)
	prev, next := "completed", "disputed"
	entries := []models.AuditEntry{
		{ID: 1, EntityType: "transaction", Action: "created", NextState: &prev, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 2, EntityType: "transaction", ActorID: &actor, Action: "disputed", PrevState: &prev, NextState: &next, CreatedAt: now.Add(-time.Hour)},
	}

	var buf bytes.Buffer
	renderAudit(&buf, entries, now)

	out := buf.String()
	assert.Contains(t, out, "3 hours ago")
	assert.Contains(t, out, "system")
	assert.Contains(t, out, "disputed")

	buf.Reset()
	renderAudit(&buf, nil, now)
	assert.Equal(t, "no audit entries\n", buf.String())
}
