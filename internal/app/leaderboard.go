package app

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"dream60/internal/auction"
)

// Leaderboard prints the bids the live snapshot carries for one round, highest first.
func (a *App) Leaderboard(ctx context.Context, round int) error {
	if round < 1 || round > auction.RoundsPerHour {
		return fmt.Errorf("round must be between 1 and %d", auction.RoundsPerHour)
	}

	snapshot, err := a.newAPI().FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	players, ok := auction.Leaderboard(snapshot, round)
	if !ok {
		fmt.Fprintf(a.Out, "round %d has no record yet\n", round)
		return nil
	}
	if len(players) == 0 {
		fmt.Fprintf(a.Out, "round %d has no bids\n", round)
		return nil
	}

	sortByAmountDesc(players)

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tPlayer\tUsername\tAmount")
	for i, p := range players {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", i+1, p.PlayerID, p.PlayerUsername, formatDecimal(p.Amount, 2))
	}
	writer.Flush()
	return nil
}

func sortByAmountDesc(players []auction.PlayerBid) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Amount.GreaterThan(players[j].Amount)
	})
}
