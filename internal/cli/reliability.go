package cli

import (
	"github.com/spf13/cobra"

	"bridge-router/internal/app"
)

var (
	reliabilityProvider   string
	reliabilityFrom       string
	reliabilityTo         string
	reliabilityWindowMode string
	reliabilityWindowSize int
)

var reliabilityCmd = &cobra.Command{
	Use:   "reliability",
	Short: "Show the rolling-window reliability report for a route",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReliabilityOptions{
			Provider:         reliabilityProvider,
			SourceChain:      reliabilityFrom,
			DestinationChain: reliabilityTo,
			WindowMode:       reliabilityWindowMode,
			WindowSize:       reliabilityWindowSize,
		}
		return getApp().Reliability(cmd.Context(), opts)
	},
}

func init() {
	reliabilityCmd.Flags().StringVar(&reliabilityProvider, "provider", "", "Provider id")
	reliabilityCmd.Flags().StringVar(&reliabilityFrom, "from", "", "Source chain")
	reliabilityCmd.Flags().StringVar(&reliabilityTo, "to", "", "Destination chain")
	reliabilityCmd.Flags().StringVar(&reliabilityWindowMode, "window-mode", "", "Window mode: transaction_count or time_based (defaults to config)")
	reliabilityCmd.Flags().IntVar(&reliabilityWindowSize, "window-size", 0, "Window size: transactions or days (defaults to config)")
}
