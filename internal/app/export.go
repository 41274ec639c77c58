package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"pumptrader/internal/storage"
)

const defaultExportWindow = 30 * 24 * time.Hour

// Export renders ledger history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-defaultExportWindow)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	trades, err := store.ListTradesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		a.Logger.Info().Msg("no trades found for export window")
		return nil
	}

	downsampled := downsampleTrades(trades, opts.MaxPoints)
	a.Logger.Info().Int("total", len(trades)).Int("exported", len(downsampled)).Msg("exporting trades")

	if opts.CSVPath != "" {
		if err := writeTradesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeTradesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleTrades(trades []storage.TradeRecord, max int) []storage.TradeRecord {
	if max <= 0 || len(trades) <= max {
		return trades
	}
	if max == 1 {
		return trades[len(trades)-1:]
	}

	result := make([]storage.TradeRecord, 0, max)
	step := float64(len(trades)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(trades) {
			idx = len(trades) - 1
		}
		result = append(result, trades[idx])
	}
	return result
}

func writeTradesCSV(path string, trades []storage.TradeRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "timestamp", "contract_address", "direction", "amount", "price", "notional"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, trade := range trades {
		record := []string{
			strconv.FormatInt(trade.ID, 10),
			trade.Timestamp.UTC().Format(time.RFC3339),
			trade.ContractAddress,
			trade.Direction,
			trade.Amount.String(),
			trade.Price.String(),
			trade.Amount.Mul(trade.Price).String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeTradesPNG(path string, trades []storage.TradeRecord) error {
	if len(trades) < 2 {
		return errors.New("at least two trades are needed to draw a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(trades))
	price := make([]float64, len(trades))
	notional := make([]float64, len(trades))

	for i, trade := range trades {
		x[i] = trade.Timestamp
		price[i] = trade.Price.InexactFloat64()
		notional[i] = trade.Amount.Mul(trade.Price).InexactFloat64()
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.4f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Executed price ($)",
			ValueFormatter: valueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Notional ($)",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Price",
				XValues: x,
				YValues: price,
			},
			chart.TimeSeries{
				Name:    "Notional",
				XValues: x,
				YValues: notional,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
