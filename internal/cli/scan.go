package cli

import (
	"github.com/spf13/cobra"

	"pumptrader/internal/app"
)

var (
	scanFromFile string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan once and show which tokens pass the policy, without trading",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scan(cmd.Context(), app.ScanOptions{FromFile: scanFromFile})
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFromFile, "from-file", "", "Read the token listing from a JSON file instead of the feed")
}
