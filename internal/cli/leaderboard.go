package cli

import (
	"github.com/spf13/cobra"
)

var leaderboardRound int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the bids placed on one round of the live auction",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Leaderboard(cmd.Context(), leaderboardRound)
	},
}

func init() {
	leaderboardCmd.Flags().IntVar(&leaderboardRound, "round", 1, "Round number (1-4)")
}
