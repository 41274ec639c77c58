package app

import (
	"context"
	"errors"

	"pumptrader/internal/storage"
)

// Migrate applies the ledger schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; nothing to migrate")
	}
	defer closeStore()

	if err := storage.Migrate(ctx, store.Pool()); err != nil {
		return err
	}
	a.Logger.Info().Msg("ledger schema up to date")
	return nil
}
