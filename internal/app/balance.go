package app

import (
	"context"
	"fmt"
	"os"
)

// Balance prints the venue account balance once.
func (a *App) Balance(ctx context.Context) error {
	amount, err := a.newVenue().Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Current Balance: $%s\n", amount.String())
	return nil
}
