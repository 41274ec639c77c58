package alerting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pumptrader/internal/market"
)

const startAcknowledgement = "PumpFun Trading Bot Active"

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape neutralises legacy-Markdown control characters in untrusted text.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func Started() Message {
	return Message{Kind: KindInfo, Text: startAcknowledgement}
}

func Opportunity(obs market.TokenObservation) Message {
	symbol := obs.Symbol
	if symbol == "" {
		symbol = "?"
	}
	var b strings.Builder
	b.WriteString("📈 *Trading opportunity detected:*\n")
	fmt.Fprintf(&b, "%s (%s)\n", escape(symbol), escape(obs.ContractAddress))
	fmt.Fprintf(&b, "Price: $%s\n", obs.Price.String())
	fmt.Fprintf(&b, "Liquidity: $%s\n", obs.Liquidity.String())
	fmt.Fprintf(&b, "Volume 24h: $%s\n", obs.Volume24h.String())
	fmt.Fprintf(&b, "Social: %s\n", decimal.NewFromFloat(obs.SocialEngagement).String())
	fmt.Fprintf(&b, "Safety Score: %s%%", decimal.NewFromFloat(obs.SafetyScore).String())
	return Message{Kind: KindOpportunity, Text: b.String()}
}

func TradeExecuted(direction string, amount decimal.Decimal, contract string, price decimal.Decimal) Message {
	return Message{
		Kind: KindTrade,
		Text: fmt.Sprintf("✅ Trade executed: %s %s %s @ $%s",
			strings.ToUpper(direction), amount.String(), escape(contract), price.String()),
	}
}

func TradeFailed(direction string, amount decimal.Decimal, contract, reason string) Message {
	return Message{
		Kind: KindWarning,
		Text: fmt.Sprintf("❌ Trade failed: %s %s %s\nReason: %s",
			strings.ToUpper(direction), amount.String(), escape(contract), escape(reason)),
	}
}

// LedgerWriteFailed reports a trade that executed on the venue but is missing from the ledger.
func LedgerWriteFailed(direction string, amount decimal.Decimal, contract string, price decimal.Decimal, cause error) Message {
	return Message{
		Kind: KindCritical,
		Text: fmt.Sprintf("🚨 *LEDGER WRITE FAILED* 🚨\nTrade EXECUTED but NOT RECORDED: %s %s %s @ $%s\nError: %s\nReconcile the ledger manually.",
			strings.ToUpper(direction), amount.String(), escape(contract), price.String(), escape(cause.Error())),
	}
}

func Balance(amount decimal.Decimal) Message {
	return Message{Kind: KindInfo, Text: fmt.Sprintf("Current Balance: $%s", amount.String())}
}

func BalanceFailed(cause error) Message {
	return Message{Kind: KindWarning, Text: "⚠️ Balance query failed: " + escape(cause.Error())}
}

func CommandRejected(reason string) Message {
	return Message{Kind: KindWarning, Text: "⚠️ Invalid command: " + escape(reason)}
}

func ScanFailed(cause error) Message {
	return Message{Kind: KindWarning, Text: "⚠️ Market scan failed, retrying next cycle: " + escape(cause.Error())}
}
