package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pumptrader/internal/alerting"
	"pumptrader/internal/ledger"
	"pumptrader/internal/storage"
	"pumptrader/internal/venue"
)

const defaultRecordTimeout = 10 * time.Second

// Recorder appends executed trades to the ledger.
type Recorder interface {
	Record(ctx context.Context, rec storage.TradeRecord) (storage.TradeRecord, error)
}

// Outcome is the result of one Execute call. Executed is true when the venue filled the
// order, even if recording it afterwards failed (Err then wraps ledger.ErrPersistenceFailure).
type Outcome struct {
	Intent   Intent
	Executed bool
	Price    decimal.Decimal
	Record   storage.TradeRecord
	Reason   string
	Err      error
}

// Recorded reports a filled order that is in the ledger.
func (o Outcome) Recorded() bool {
	return o.Executed && o.Err == nil
}

// Executor sends intents to the venue, records fills and reports every outcome.
type Executor struct {
	venue         venue.Venue
	recorder      Recorder
	sender        alerting.Sender
	recordTimeout time.Duration
	logger        zerolog.Logger
}

// NewExecutor wires the venue, ledger and notification sender.
func NewExecutor(v venue.Venue, recorder Recorder, sender alerting.Sender, logger zerolog.Logger) *Executor {
	return &Executor{
		venue:         v,
		recorder:      recorder,
		sender:        sender,
		recordTimeout: defaultRecordTimeout,
		logger:        logger.With().Str("component", "executor").Logger(),
	}
}

// Execute places the order described by intent. It never returns an error directly: every
// failure is folded into the Outcome and exactly one notification is sent per call.
func (e *Executor) Execute(ctx context.Context, intent Intent) Outcome {
	log := e.logger.With().
		Str("intent_id", intent.ID.String()).
		Str("source", string(intent.Source)).
		Str("contract", intent.ContractAddress).
		Str("direction", string(intent.Direction)).
		Str("amount", intent.Amount.String()).
		Logger()

	if err := intent.Validate(); err != nil {
		log.Warn().Err(err).Msg("intent rejected before venue")
		return e.fail(intent, err)
	}

	result, err := e.venue.PlaceOrder(ctx, venue.OrderRequest{
		Contract:  intent.ContractAddress,
		Amount:    intent.Amount,
		Direction: string(intent.Direction),
	})
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("order transport failed")
		return e.fail(intent, fmt.Errorf("%w: %w", ErrVenueRejected, err))
	case !result.Success:
		reason := result.ErrorMessage
		if reason == "" {
			reason = "order not filled"
		}
		log.Warn().Str("reason", reason).Msg("order rejected")
		return e.fail(intent, fmt.Errorf("%w: %s", ErrVenueRejected, reason))
	}

	outcome := Outcome{Intent: intent, Executed: true, Price: result.ExecutedPrice}

	// Recording outlives ctx: the order is already filled.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.recordTimeout)
	defer cancel()

	rec, err := e.recorder.Record(recordCtx, storage.TradeRecord{
		ContractAddress: intent.ContractAddress,
		Direction:       string(intent.Direction),
		Amount:          intent.Amount,
		Price:           result.ExecutedPrice,
	})
	if err != nil {
		if !errors.Is(err, ledger.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %w", ledger.ErrPersistenceFailure, err)
		}
		log.Error().Err(err).Str("price", result.ExecutedPrice.String()).Msg("trade executed but not recorded")
		outcome.Err = err
		outcome.Reason = err.Error()
		e.sender.Send(alerting.LedgerWriteFailed(string(intent.Direction), intent.Amount, intent.ContractAddress, result.ExecutedPrice, err))
		return outcome
	}

	outcome.Record = rec
	log.Info().Int64("trade_id", rec.ID).Str("price", result.ExecutedPrice.String()).Msg("trade executed")
	e.sender.Send(alerting.TradeExecuted(string(intent.Direction), intent.Amount, intent.ContractAddress, result.ExecutedPrice))
	return outcome
}

func (e *Executor) fail(intent Intent, err error) Outcome {
	e.sender.Send(alerting.TradeFailed(string(intent.Direction), intent.Amount, intent.ContractAddress, err.Error()))
	return Outcome{Intent: intent, Reason: err.Error(), Err: err}
}
