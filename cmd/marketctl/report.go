package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/models"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconcileCmd, auditCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check ledger integrity and print totals per entry kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *repository.Store) error {
			report, err := service.NewReconciliationService(store).Run(cmd.Context())
			if err != nil {
				return err
			}
			renderReconciliation(cmd.OutOrStdout(), report)
			if !report.Balanced() {
				return fmt.Errorf("ledger imbalance: %v", report.Failed())
			}
			return nil
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit ENTITY ID",
	Short: "Print the audit trail of an entity (transaction, dispute, payout, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *repository.Store) error {
			entries, err := service.NewAuditService(store).History(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			renderAudit(cmd.OutOrStdout(), entries, time.Now())
			return nil
		})
	},
}

func renderReconciliation(w io.Writer, report service.ReconciliationReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Credits", "Debits", "Net"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, k := range report.Kinds {
		table.Append([]string{
			k.Kind,
			domain.FormatMicros(k.Credits),
			domain.FormatMicros(k.Debits),
			domain.FormatMicros(k.Credits - k.Debits),
		})
	}
	table.SetFooter([]string{"Balances", "", "", domain.FormatMicros(report.BalanceTotal)})
	table.Render()

	for _, d := range report.Drifts {
		fmt.Fprintf(w, "drift: account %d balance %s, entries %s\n",
			d.AccountID, domain.FormatMicros(d.Balance), domain.FormatMicros(d.EntriesNet))
	}
	if report.Balanced() {
		fmt.Fprintf(w, "ledger balanced across %s entry kind(s)\n", humanize.Comma(int64(len(report.Kinds))))
		return
	}
	fmt.Fprintf(w, "FAILED checks: %v\n", report.Failed())
}

func renderAudit(w io.Writer, entries []models.AuditEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no audit entries")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "When", "Actor", "Action", "From", "To"})
	for _, e := range entries {
		actor := "system"
		if e.ActorID != nil {
			actor = strconv.FormatInt(*e.ActorID, 10)
		}
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			actor,
			e.Action,
			deref(e.PrevState),
			deref(e.NextState),
		})
	}
	table.Render()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
