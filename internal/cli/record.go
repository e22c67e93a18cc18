package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bridge-router/internal/app"
)

var (
	recordProvider string
	recordFrom     string
	recordTo       string
	recordOutcome  string
	recordDuration time.Duration
	recordAt       string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a transaction outcome event for a route",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.RecordOptions{
			Provider:         recordProvider,
			SourceChain:      recordFrom,
			DestinationChain: recordTo,
			Outcome:          recordOutcome,
			Duration:         recordDuration,
		}

		if recordAt != "" {
			at, err := time.Parse(time.RFC3339, recordAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			opts.OccurredAt = &at
		}

		return getApp().Record(cmd.Context(), opts)
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordProvider, "provider", "", "Provider id")
	recordCmd.Flags().StringVar(&recordFrom, "from", "", "Source chain")
	recordCmd.Flags().StringVar(&recordTo, "to", "", "Destination chain")
	recordCmd.Flags().StringVar(&recordOutcome, "outcome", "", "Outcome: success, failed, timeout, cancelled")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Transfer duration (e.g. 90s)")
	recordCmd.Flags().StringVar(&recordAt, "at", "", "Occurrence timestamp (RFC3339, defaults to now)")
}
