package cli

import (
	"github.com/spf13/cobra"

	"bridge-router/internal/app"
)

var (
	quoteFrom      string
	quoteTo        string
	quoteToken     string
	quoteDestToken string
	quoteAmount    float64
	quoteMode      string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch and rank bridge routes for a transfer",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.QuoteOptions{
			SourceChain:      quoteFrom,
			DestinationChain: quoteTo,
			SourceToken:      quoteToken,
			DestinationToken: quoteDestToken,
			Amount:           quoteAmount,
			Mode:             quoteMode,
		}
		return getApp().Quote(cmd.Context(), opts)
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFrom, "from", "", "Source chain")
	quoteCmd.Flags().StringVar(&quoteTo, "to", "", "Destination chain")
	quoteCmd.Flags().StringVar(&quoteToken, "token", "", "Source token symbol")
	quoteCmd.Flags().StringVar(&quoteDestToken, "dest-token", "", "Destination token symbol (defaults to --token)")
	quoteCmd.Flags().Float64Var(&quoteAmount, "amount", 0, "Transfer amount in source token units")
	quoteCmd.Flags().StringVar(&quoteMode, "mode", "", "Optimization mode (defaults to config)")
}
