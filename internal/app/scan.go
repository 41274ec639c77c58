package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"pumptrader/internal/market"
	"pumptrader/internal/opportunity"
)

// Scan runs one scan and filter pass and prints the result. It never trades or notifies.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	cacheStore, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	scanner := market.NewScanner(a.newSource(cacheStore, opts.FromFile), a.Logger)
	observations, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	candidates := opportunity.Filter(observations, a.Config.Policy(), time.Now().UTC())
	return printScan(os.Stdout, observations, candidates, scanner.Dropped())
}

func printScan(out io.Writer, observations []market.TokenObservation, candidates []opportunity.Candidate, dropped int64) error {
	eligible := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		eligible[c.Observation.ContractAddress] = true
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Contract\tSymbol\tPrice\tLiquidity\tVolume24h\tSocial\tSafety\tCandidate")
	for _, obs := range observations {
		mark := ""
		if eligible[obs.ContractAddress] {
			mark = "yes"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%g\t%g\t%s\n",
			obs.ContractAddress,
			obs.Symbol,
			obs.Price.String(),
			obs.Liquidity.String(),
			obs.Volume24h.String(),
			obs.SocialEngagement,
			obs.SafetyScore,
			mark,
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "\n%d observations, %d candidates, %d dropped\n", len(observations), len(candidates), dropped)
	return err
}
