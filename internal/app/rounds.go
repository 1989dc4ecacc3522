package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"dream60/internal/auction"
	"dream60/internal/service"
)

// Rounds fetches the live hour once and prints the resolved round boxes.
func (a *App) Rounds(ctx context.Context) error {
	obs, err := a.newService(nil).Observe(ctx)
	if err != nil {
		return err
	}
	printObservation(a.Out, obs)
	return nil
}

func printObservation(out io.Writer, obs service.Observation) {
	auctionID := obs.Snapshot.HourlyAuctionID
	if auctionID == "" {
		auctionID = "(none)"
	}
	fmt.Fprintf(out, "Auction: %s\n", auctionID)
	switch {
	case obs.ServerTime != nil && !obs.ServerTime.Timestamp.IsZero():
		fmt.Fprintf(out, "Server time: %s (minute %d)\n", obs.ServerTime.Timestamp.UTC().Format(time.RFC3339), obs.ServerTime.Minute)
	case obs.ServerTime != nil:
		fmt.Fprintf(out, "Server time: minute %d\n", obs.ServerTime.Minute)
	default:
		fmt.Fprintln(out, "Server time: unavailable")
	}
	fmt.Fprintf(out, "Join window: %s\n", openClosed(obs.JoinOpen))
	if obs.Snapshot.WinnersAnnounced {
		fmt.Fprintln(out, "Winners announced")
	}
	if len(obs.Duplicates) > 0 {
		fmt.Fprintf(out, "Warning: duplicate round records %v\n", obs.Duplicates)
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Box\tRound\tMinutes\tStatus\tWindow\tHighest\tBidders\tPrize")
	for _, view := range obs.Views {
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
			view.BoxID,
			view.RoundNumber,
			roundWindow(view.RoundNumber),
			view.Status,
			openClosed(view.IsOpen),
			formatDecimal(view.HighestBid, 2),
			len(view.Leaderboard),
			formatDecimal(view.PrizeAmount, 2),
		)
	}
	writer.Flush()
}

func openClosed(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

// roundWindow renders the minute range of a round, e.g. "15-29".
func roundWindow(round int) string {
	if round <= 0 || round > auction.RoundsPerHour {
		return "-"
	}
	start := (round - 1) * auction.RoundMinutes
	return fmt.Sprintf("%02d-%02d", start, start+auction.RoundMinutes-1)
}
