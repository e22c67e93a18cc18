package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"bridge-router/internal/reliability"
)

// Record appends one transaction outcome event to the durable log.
func (a *App) Record(ctx context.Context, opts RecordOptions) error {
	if opts.Provider == "" || opts.SourceChain == "" || opts.DestinationChain == "" {
		return errors.New("--provider, --from and --to are required")
	}

	outcome, err := reliability.ParseOutcome(opts.Outcome)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return fmt.Errorf("record requires a database: %w", err)
	}
	defer closeStore()

	event := reliability.Event{
		Route: reliability.Route{
			Provider:         opts.Provider,
			SourceChain:      opts.SourceChain,
			DestinationChain: opts.DestinationChain,
		},
		Outcome:  outcome,
		Duration: opts.Duration,
	}
	if opts.OccurredAt != nil {
		event.OccurredAt = opts.OccurredAt.UTC()
	}

	adjuster := a.newAdjuster(store, store)
	if err := adjuster.RecordEvent(ctx, event); err != nil {
		return err
	}

	a.Logger.Info().
		Str("provider", opts.Provider).
		Str("route", event.Route.Key()).
		Str("outcome", string(outcome)).
		Msg("outcome event recorded")
	return nil
}

// Reliability prints the rolling-window reliability report for one route.
func (a *App) Reliability(ctx context.Context, opts ReliabilityOptions) error {
	if opts.Provider == "" || opts.SourceChain == "" || opts.DestinationChain == "" {
		return errors.New("--provider, --from and --to are required")
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return fmt.Errorf("reliability requires a database: %w", err)
	}
	defer closeStore()

	var window reliability.Window
	if opts.WindowMode != "" {
		mode, err := reliability.ParseWindowMode(opts.WindowMode)
		if err != nil {
			return err
		}
		window.Mode = mode
	}
	window.Size = opts.WindowSize

	route := reliability.Route{
		Provider:         opts.Provider,
		SourceChain:      opts.SourceChain,
		DestinationChain: opts.DestinationChain,
	}

	adjuster := a.newAdjuster(store, store)
	metric, err := adjuster.GetReliability(ctx, route, window)
	if err != nil {
		return err
	}

	factor, err := adjuster.GetRankingFactor(ctx, route, a.Config.Ranking.History.Threshold, a.Config.Ranking.History.IgnoreReliability)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "route\t%s -> %s via %s\n", metric.Route.SourceChain, metric.Route.DestinationChain, metric.Route.Provider)
	fmt.Fprintf(writer, "window\t%s / %d\n", metric.Window.Mode, metric.Window.Size)
	fmt.Fprintf(writer, "attempts\t%d (success %d, failed %d, timeout %d)\n",
		metric.TotalAttempts, metric.SuccessfulCount, metric.FailedCount, metric.TimeoutCount)
	fmt.Fprintf(writer, "reliability\t%.2f%%\n", metric.ReliabilityPercent)
	fmt.Fprintf(writer, "score\t%.2f\n", metric.ReliabilityScore)
	fmt.Fprintf(writer, "tier\t%s\n", metric.Tier)
	fmt.Fprintf(writer, "ranking factor\t%.2f", factor.AdjustedScore)
	if factor.PenaltyApplied {
		fmt.Fprintf(writer, " (penalty applied)")
	}
	fmt.Fprintln(writer)
	fmt.Fprintf(writer, "computed\t%s\n", metric.ComputedAt.Format(time.RFC3339))
	writer.Flush()
	return nil
}
