package cli

import (
	"github.com/spf13/cobra"
)

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "Show the resolved round boxes of the live auction hour",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Rounds(cmd.Context())
	},
}
