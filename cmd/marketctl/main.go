// Command marketctl is the operator tool for the escrow market: schema
// migrations, admin bootstrap, balance overrides and ledger reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ayo6706/escrow-market/internal/app"
	"github.com/ayo6706/escrow-market/internal/db"
	"github.com/ayo6706/escrow-market/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "marketctl",
	Short:         "Operate the escrow market database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := app.NewLogger(viper.GetString("log_level"), "")
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := db.Migrate(cmd.Context(), pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	},
}

func init() {
	_ = godotenv.Load()
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("database-url", "", "Postgres connection string (env DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (env LOG_LEVEL)")
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindEnv("database_url", "DATABASE_URL", "MARKET_DATABASE_URL")
	_ = viper.BindEnv("log_level", "LOG_LEVEL", "MARKET_LOG_LEVEL")

	rootCmd.AddCommand(migrateCmd)
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	url := viper.GetString("database_url")
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.Connect(ctx, url)
}

// withStore runs fn against a store over a fresh pool.
func withStore(ctx context.Context, fn func(*repository.Store) error) error {
	pool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(repository.NewStore(pool))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "marketctl: %v\n", err)
		os.Exit(1)
	}
}
