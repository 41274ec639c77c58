package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pumptrader/internal/alerting"
	"pumptrader/internal/trading"
)

// Executor runs trade intents.
type Executor interface {
	Execute(ctx context.Context, intent trading.Intent) trading.Outcome
}

// BalanceSource reports the venue account balance.
type BalanceSource interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
}

// Handler executes manual chat commands. Manual trades bypass the opportunity filter and
// the cooldown; the executor reports their outcome.
type Handler struct {
	executor Executor
	balance  BalanceSource
	sender   alerting.Sender
	logger   zerolog.Logger
}

func NewHandler(executor Executor, balance BalanceSource, sender alerting.Sender, logger zerolog.Logger) *Handler {
	return &Handler{
		executor: executor,
		balance:  balance,
		sender:   sender,
		logger:   logger.With().Str("component", "chat").Logger(),
	}
}

// Handle parses and runs one message. It returns the parse error, if any, after
// reporting it to the chat.
func (h *Handler) Handle(ctx context.Context, text string) error {
	cmd, err := ParseCommand(text)
	if err != nil {
		h.logger.Info().Err(err).Str("text", text).Msg("command rejected")
		h.sender.Send(alerting.CommandRejected(invalidReason(err)))
		return err
	}

	switch cmd.Kind {
	case CommandStart:
		h.sender.Send(alerting.Started())
	case CommandBalance:
		amount, err := h.balance.Balance(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("balance query failed")
			h.sender.Send(alerting.BalanceFailed(err))
			return nil
		}
		h.sender.Send(alerting.Balance(amount))
	case CommandTrade:
		intent := trading.NewIntent(cmd.Contract, cmd.Direction, cmd.Amount, trading.SourceManual)
		h.logger.Info().Str("intent_id", intent.ID.String()).Str("contract", intent.ContractAddress).
			Str("direction", string(intent.Direction)).Str("amount", intent.Amount.String()).Msg("manual trade")
		h.executor.Execute(ctx, intent)
	default:
		h.logger.Debug().Str("text", text).Msg("ignoring message")
	}
	return nil
}

func invalidReason(err error) string {
	return strings.TrimPrefix(err.Error(), trading.ErrInvalidIntent.Error()+": ")
}
