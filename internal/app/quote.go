package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"bridge-router/internal/engine"
)

// Quote runs one aggregation request and renders the ranked routes.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	if opts.SourceChain == "" || opts.DestinationChain == "" {
		return errors.New("--from and --to chains are required")
	}
	if opts.SourceToken == "" {
		return errors.New("--token is required")
	}
	if opts.Amount <= 0 {
		return errors.New("--amount must be greater than zero")
	}
	destToken := opts.DestinationToken
	if destToken == "" {
		destToken = opts.SourceToken
	}

	events, metrics, closeStores, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	eng, err := a.newEngine(a.newAdjuster(events, metrics))
	if err != nil {
		return err
	}

	req := engine.Request{
		SourceChain:      opts.SourceChain,
		DestinationChain: opts.DestinationChain,
		SourceToken:      opts.SourceToken,
		DestinationToken: destToken,
		Amount:           decimal.NewFromFloat(opts.Amount),
		Mode:             opts.Mode,
	}

	result, err := eng.GetRoutes(ctx, req)
	if err != nil {
		if errors.Is(err, engine.ErrAllProvidersFailed) && result != nil {
			renderResult(result)
		}
		return err
	}

	renderResult(result)
	return nil
}

func renderResult(result *engine.Result) {
	fmt.Fprintf(os.Stdout, "request %s  mode=%s  providers=%d/%d  fetch=%dms\n\n",
		result.RequestID, result.Mode, result.SuccessfulProviders, result.TotalProviders, result.FetchDurationMs)

	if len(result.RankedQuotes) > 0 {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Rank\tProvider\tOutput\tFee USD\tETA\tCost\tSpeed\tRel\tLiq\tScore\tSlippage\tConf")
		for _, q := range result.RankedQuotes {
			fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.2f\t%.2f%%\t%s\n",
				q.Rank,
				q.ProviderName,
				q.OutputAmount.StringFixed(4),
				q.FeeUSD.StringFixed(2),
				formatETA(q.EstimatedTimeSeconds),
				q.Scores.Cost,
				q.Scores.Speed,
				q.Scores.Reliability,
				q.Scores.Liquidity,
				q.CompositeScore,
				q.Slippage.ExpectedPct,
				q.Slippage.Confidence,
			)
		}
		writer.Flush()
	}

	if len(result.FailedQuotes) > 0 {
		fmt.Fprintln(os.Stdout, "\nfailed providers:")
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, q := range result.FailedQuotes {
			fmt.Fprintf(writer, "  %s\t%s\n", q.ProviderID, sanitizeInline(q.Error))
		}
		writer.Flush()
	}
}

func formatETA(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh%dm", seconds/3600, (seconds%3600)/60)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
