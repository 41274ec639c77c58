package chat

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pumptrader/internal/trading"
)

// CommandKind identifies a parsed chat command.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandStart
	CommandBalance
	CommandTrade
)

// Command is a parsed inbound chat message.
type Command struct {
	Kind      CommandKind
	Direction trading.Direction
	Amount    decimal.Decimal
	Contract  string
}

// ParseCommand turns chat text into a Command. Text that is not a slash command, or an
// unrecognised one, yields CommandUnknown without error. A /buy or /sell with missing or
// malformed arguments yields an error wrapping trading.ErrInvalidIntent.
func ParseCommand(raw string) (Command, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{Kind: CommandUnknown}, nil
	}

	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := fields[1:]

	switch name {
	case "start":
		return Command{Kind: CommandStart}, nil
	case "balance":
		return Command{Kind: CommandBalance}, nil
	case "buy", "sell":
		return parseTrade(trading.Direction(name), args)
	default:
		return Command{Kind: CommandUnknown}, nil
	}
}

func parseTrade(direction trading.Direction, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, fmt.Errorf("%w: usage /%s <amount> <contract>", trading.ErrInvalidIntent, direction)
	}

	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return Command{}, fmt.Errorf("%w: amount %q is not a number", trading.ErrInvalidIntent, args[0])
	}
	if !amount.IsPositive() {
		return Command{}, fmt.Errorf("%w: amount must be positive", trading.ErrInvalidIntent)
	}

	return Command{
		Kind:      CommandTrade,
		Direction: direction,
		Amount:    amount,
		Contract:  args[1],
	}, nil
}
