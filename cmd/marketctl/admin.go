package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ayo6706/escrow-market/internal/domain"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/ayo6706/escrow-market/internal/service"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(adminCmd, balanceCmd, promoCmd)
	adminCmd.AddCommand(adminGrantCmd)
	balanceCmd.AddCommand(balanceSetCmd)
	promoCmd.AddCommand(promoCreateCmd)

	balanceSetCmd.Flags().Int64("as", 0, "admin account performing the change")
	_ = balanceSetCmd.MarkFlagRequired("as")

	promoCreateCmd.Flags().Int64("as", 0, "admin account creating the code")
	promoCreateCmd.Flags().Int32("max-uses", 1, "number of accounts that may redeem the code")
	promoCreateCmd.Flags().Duration("expires-in", 0, "lifetime of the code, e.g. 72h (0 never expires)")
	_ = promoCreateCmd.MarkFlagRequired("as")
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant USER_ID",
	Short: "Mark an account as admin, creating it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAccountID(args[0])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(store *repository.Store) error {
			acc, err := service.NewLedgerService(store).GrantAdmin(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d is now admin\n", acc.ID)
			return nil
		})
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Inspect or override account balances",
}

var balanceSetCmd = &cobra.Command{
	Use:   "set USER_ID AMOUNT",
	Short: "Set a balance; the difference is booked as an adjustment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAccountID(args[0])
		if err != nil {
			return err
		}
		amount, err := domain.ParseAmount(args[1])
		if err != nil {
			return err
		}
		adminID, _ := cmd.Flags().GetInt64("as")
		return withStore(cmd.Context(), func(store *repository.Store) error {
			acc, err := service.NewLedgerService(store).SetBalance(cmd.Context(), adminID, id, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d balance %s (held %s)\n",
				acc.ID, domain.FormatMicros(acc.Balance), domain.FormatMicros(acc.Held))
			return nil
		})
	},
}

var promoCmd = &cobra.Command{
	Use:   "promo",
	Short: "Manage promo codes",
}

var promoCreateCmd = &cobra.Command{
	Use:   "create CODE AMOUNT",
	Short: "Create a promo code worth AMOUNT per redemption",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := domain.ParseAmount(args[1])
		if err != nil {
			return err
		}
		adminID, _ := cmd.Flags().GetInt64("as")
		maxUses, _ := cmd.Flags().GetInt32("max-uses")
		expiresIn, _ := cmd.Flags().GetDuration("expires-in")

		in := service.CreatePromoInput{Code: args[0], Amount: amount, MaxUses: maxUses}
		if expiresIn > 0 {
			at := time.Now().Add(expiresIn)
			in.ExpiresAt = &at
		}
		return withStore(cmd.Context(), func(store *repository.Store) error {
			promo, err := service.NewPromoService(store).CreatePromo(cmd.Context(), adminID, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "promo %s created: %s x %d\n",
				promo.Code, domain.FormatMicros(promo.Amount), promo.MaxUses)
			return nil
		})
	},
}

func parseAccountID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
