package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dream60/internal/app"
)

var (
	historyLimit int
	historyBids  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display recent round observations or bid attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.HistoryOptions{
			Limit: historyLimit,
			Bids:  historyBids,
		}

		return getApp().History(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of rows to display")
	historyCmd.Flags().BoolVar(&historyBids, "bids", false, "Show bid attempts instead of round observations")
}
