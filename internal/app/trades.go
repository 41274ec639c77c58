package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"pumptrader/internal/storage"
)

// Trades prints the most recent ledger rows.
func (a *App) Trades(ctx context.Context, opts TradesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show trades")
	}
	defer closeStore()

	trades, err := store.ListRecentTrades(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printTrades(os.Stdout, trades)
}

func printTrades(out io.Writer, trades []storage.TradeRecord) error {
	if len(trades) == 0 {
		fmt.Fprintln(out, "no trades found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tContract\tSide\tAmount\tPrice")
	for _, trade := range trades {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%s\t%s\n",
			trade.ID,
			trade.Timestamp.UTC().Format(time.RFC3339),
			trade.ContractAddress,
			trade.Direction,
			trade.Amount.String(),
			trade.Price.String(),
		)
	}
	return writer.Flush()
}
