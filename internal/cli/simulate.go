package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateRound   int
	simulateHighest float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-close",
	Short: "Run a synthetic round close through the configured notifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateHighest < 0 {
			return errors.New("--highest cannot be negative")
		}
		return getApp().SimulateRoundClose(cmd.Context(), simulateRound, decimal.NewFromFloat(simulateHighest))
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateRound, "round", 1, "Round number to close (1-4)")
	simulateCmd.Flags().Float64Var(&simulateHighest, "highest", 100, "Highest bid reported for the round")
}
