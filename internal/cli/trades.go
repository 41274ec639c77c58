package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pumptrader/internal/app"
)

var (
	tradesLimit int
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Display recent ledger trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tradesLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.TradesOptions{
			Limit: tradesLimit,
		}

		return getApp().Trades(cmd.Context(), opts)
	},
}

func init() {
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 20, "Number of trades to display")
}
