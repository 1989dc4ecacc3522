package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"dream60/internal/storage"
)

// Export renders round history as CSV and/or a PNG chart of highest bids.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx, "export")
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	views, err := store.ListRoundViewsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		a.Logger.Info().Msg("no round observations found for export window")
		return nil
	}

	series := splitByRound(views)
	exported := make([]storage.RoundView, 0, len(views))
	for _, round := range sortedRounds(series) {
		series[round] = downsample(series[round], opts.MaxPoints)
		exported = append(exported, series[round]...)
	}
	sort.SliceStable(exported, func(i, j int) bool {
		return exported[i].ObservedAt.Before(exported[j].ObservedAt)
	})
	a.Logger.Info().Int("total", len(views)).Int("exported", len(exported)).Msg("exporting round history")

	if opts.CSVPath != "" {
		if err := writeRoundViewsCSV(opts.CSVPath, exported); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHighestBidPNG(opts.PNGPath, series); err != nil {
			return err
		}
	}

	return nil
}

func splitByRound(views []storage.RoundView) map[int][]storage.RoundView {
	series := make(map[int][]storage.RoundView)
	for _, v := range views {
		series[v.RoundNumber] = append(series[v.RoundNumber], v)
	}
	return series
}

func sortedRounds(series map[int][]storage.RoundView) []int {
	rounds := make([]int, 0, len(series))
	for round := range series {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)
	return rounds
}

// downsample keeps at most max evenly spaced items, always including the first and last.
func downsample[T any](items []T, max int) []T {
	if max <= 0 || len(items) <= max {
		return items
	}
	if max == 1 {
		return items[len(items)-1:]
	}

	result := make([]T, 0, max)
	step := float64(len(items)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		result = append(result, items[idx])
	}
	return result
}

func writeRoundViewsCSV(path string, views []storage.RoundView) error {
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

	header := []string{"observed_at", "auction_id", "round_number", "status", "is_open", "highest_bid", "prize_amount", "bidders"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, view := range views {
		record := []string{
			view.ObservedAt.UTC().Format(time.RFC3339),
			view.AuctionID,
			strconv.Itoa(view.RoundNumber),
			view.Status,
			strconv.FormatBool(view.IsOpen),
			view.HighestBid.String(),
			view.PrizeAmount.String(),
			strconv.Itoa(view.Bidders),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeHighestBidPNG(path string, series map[int][]storage.RoundView) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var plotted []chart.Series
	for _, round := range sortedRounds(series) {
		views := series[round]
		// go-chart cannot draw a line through a single point
		if len(views) < 2 {
			continue
		}
		x := make([]time.Time, len(views))
		y := make([]float64, len(views))
		for i, v := range views {
			x[i] = v.ObservedAt
			y[i] = v.HighestBid.InexactFloat64()
		}
		plotted = append(plotted, chart.TimeSeries{
			Name:    fmt.Sprintf("Round %d", round),
			XValues: x,
			YValues: y,
		})
	}
	if len(plotted) == 0 {
		return errors.New("not enough observations to draw a chart")
	}

	bidFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Highest bid",
			ValueFormatter: bidFormatter,
		},
		Series: plotted,
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

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
