package cli

import (
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Query the venue account balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Balance(cmd.Context())
	},
}
