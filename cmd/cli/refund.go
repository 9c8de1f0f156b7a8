package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nimasrn/credit-gateway/internal/model"
	"github.com/nimasrn/credit-gateway/internal/repository"
	"github.com/nimasrn/credit-gateway/internal/services"
	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/spf13/cobra"
)

type refunder interface {
	RefundCredits(ctx context.Context, userID string, amount int64, reason string) (*model.BalanceChange, error)
}

// openLedger connects to the configured database. Replaced in tests.
var openLedger = func() (refunder, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		return nil, nil, err
	}
	ledger := services.NewLedgerService(
		repository.NewUserRepository(db),
		repository.NewTransactionRepository(db),
		db,
		services.LedgerConfig{InitialGrant: cfg.LedgerInitialGrant, HistoryLimit: cfg.LedgerHistoryLimit},
	)
	return ledger, func() { _ = db.Close() }, nil
}

var refundCmd = &cobra.Command{
	Use:   "refund USER_ID AMOUNT",
	Short: "Return credits to a user and record a REFUND transaction",
	Long: `Refunds are an operator action, for example after a failed generation job.
They are not reachable over the public API.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", args[1], err)
		}
		reason, _ := cmd.Flags().GetString("reason")

		ledger, closeFn, err := openLedger()
		if err != nil {
			return err
		}
		defer closeFn()

		change, err := ledger.RefundCredits(cmd.Context(), args[0], amount, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refunded %d credits to %s (transaction %s), new balance %d\n",
			amount, args[0], change.Transaction.ID, change.NewBalance)
		return nil
	},
}

func init() {
	refundCmd.Flags().String("reason", "", "Why the credits are returned (stored on the transaction)")
	_ = refundCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(refundCmd)
}
