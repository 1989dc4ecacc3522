package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"dream60/internal/storage"
)

// History prints recent round observations, or bid attempts when opts.Bids is set.
func (a *App) History(ctx context.Context, opts HistoryOptions) error {
	store, closeStore, err := a.requireStore(ctx, "show history")
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Bids {
		return a.showBidAttempts(ctx, store, opts.Limit)
	}

	views, err := store.ListRecentRoundViews(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Fprintln(a.Out, "no round observations found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Observed (UTC)\tAuction\tRound\tStatus\tOpen\tHighest\tBidders\tPrize")
	for _, view := range views {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%t\t%s\t%d\t%s\n",
			view.ObservedAt.UTC().Format(time.RFC3339),
			view.AuctionID,
			view.RoundNumber,
			view.Status,
			view.IsOpen,
			formatDecimal(view.HighestBid, 2),
			view.Bidders,
			formatDecimal(view.PrizeAmount, 2),
		)
	}
	writer.Flush()
	return nil
}

func (a *App) showBidAttempts(ctx context.Context, store storage.BidAttemptStore, limit int) error {
	attempts, err := store.ListRecentBidAttempts(ctx, limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Fprintln(a.Out, "no bid attempts found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAuction\tRound\tBox\tPlayer\tAmount\tResult\tMessage")
	for _, attempt := range attempts {
		result := "failed"
		if attempt.Success {
			result = "placed"
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			attempt.CreatedAt.UTC().Format(time.RFC3339),
			attempt.HourlyAuctionID,
			attempt.RoundNumber,
			attempt.BoxID,
			attempt.PlayerID,
			formatDecimal(attempt.Amount, 2),
			result,
			sanitizeInline(attempt.Message),
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
