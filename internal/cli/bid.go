package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"dream60/internal/app"
)

var (
	bidBox      int
	bidAmount   string
	bidUserID   string
	bidUsername string
)

var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Place a bid on a round box of the live auction",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(bidAmount)
		if err != nil {
			return fmt.Errorf("invalid --amount value: %w", err)
		}
		if !amount.IsPositive() {
			return fmt.Errorf("--amount must be greater than zero")
		}

		opts := app.BidOptions{
			BoxID:    bidBox,
			Amount:   amount,
			UserID:   bidUserID,
			Username: bidUsername,
		}
		return getApp().PlaceBid(cmd.Context(), opts)
	},
}

func init() {
	bidCmd.Flags().IntVar(&bidBox, "box", 0, "Box id to bid on (round boxes are 3-6)")
	bidCmd.Flags().StringVar(&bidAmount, "amount", "", "Bid amount")
	bidCmd.Flags().StringVar(&bidUserID, "user-id", "", "Player id of the bidding user")
	bidCmd.Flags().StringVar(&bidUsername, "username", "", "Display name of the bidding user")
	_ = bidCmd.MarkFlagRequired("box")
	_ = bidCmd.MarkFlagRequired("amount")
}
