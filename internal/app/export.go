package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"bridge-router/internal/reliability"
)

// trailingWindow is the number of non-cancelled events the rolling success
// rate is computed over at each point of the exported series.
const trailingWindow = 20

type reliabilityPoint struct {
	At         time.Time
	Outcome    reliability.Outcome
	DurationMS int64
	SuccessPct float64
}

// Export renders a route's reliability history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Provider == "" || opts.SourceChain == "" || opts.DestinationChain == "" {
		return errors.New("--provider, --source and --dest are required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return fmt.Errorf("export requires a database: %w", err)
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.AddDate(0, 0, -30)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	route := reliability.Route{
		Provider:         opts.Provider,
		SourceChain:      opts.SourceChain,
		DestinationChain: opts.DestinationChain,
	}

	events, err := store.ListEventsSince(ctx, route, from)
	if err != nil {
		return err
	}

	points := buildSeries(events, to)
	if len(points) == 0 {
		a.Logger.Info().Str("route", route.Key()).Msg("no events found for export window")
		return nil
	}

	downsampled := downsamplePoints(points, opts.MaxPoints)
	a.Logger.Info().Int("total", len(points)).Int("exported", len(downsampled)).Msg("exporting reliability history")

	if opts.CSVPath != "" {
		if err := writePointsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writePointsPNG(opts.PNGPath, route, downsampled); err != nil {
			return err
		}
	}
	return nil
}

// buildSeries converts newest-first events into an ascending series with a
// trailing success rate at each non-cancelled point. The to bound is
// exclusive, pairing with the inclusive since bound of ListEventsSince.
func buildSeries(events []reliability.Event, to time.Time) []reliabilityPoint {
	asc := make([]reliability.Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if !e.OccurredAt.Before(to) {
			continue
		}
		asc = append(asc, e)
	}

	points := make([]reliabilityPoint, 0, len(asc))
	window := make([]reliability.Outcome, 0, trailingWindow)
	for _, e := range asc {
		if e.Outcome == reliability.OutcomeCancelled {
			continue
		}
		window = append(window, e.Outcome)
		if len(window) > trailingWindow {
			window = window[1:]
		}

		successes := 0
		for _, o := range window {
			if o == reliability.OutcomeSuccess {
				successes++
			}
		}

		points = append(points, reliabilityPoint{
			At:         e.OccurredAt,
			Outcome:    e.Outcome,
			DurationMS: e.Duration.Milliseconds(),
			SuccessPct: float64(successes) / float64(len(window)) * 100,
		})
	}
	return points
}

func downsamplePoints(points []reliabilityPoint, max int) []reliabilityPoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	// The step below divides by max-1; a single-point request is just the
	// start of the series.
	if max == 1 {
		return points[:1]
	}

	result := make([]reliabilityPoint, 0, max)
	step := float64(len(points)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(points) {
			idx = len(points) - 1
		}
		result = append(result, points[idx])
	}
	return result
}

func writePointsCSV(path string, points []reliabilityPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"occurred_at", "outcome", "duration_ms", "trailing_success_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.At.Format(time.RFC3339),
			string(p.Outcome),
			fmt.Sprintf("%d", p.DurationMS),
			fmt.Sprintf("%.2f", p.SuccessPct),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writePointsPNG(path string, route reliability.Route, points []reliabilityPoint) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(points))
	successPct := make([]float64, len(points))
	durations := make([]float64, len(points))

	for i, p := range points {
		x[i] = p.At
		successPct[i] = p.SuccessPct
		durations[i] = float64(p.DurationMS) / 1000
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Title:  fmt.Sprintf("%s %s->%s reliability", route.Provider, route.SourceChain, route.DestinationChain),
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Success rate (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Duration (s)",
			ValueFormatter: pctFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Success %",
				XValues: x,
				YValues: successPct,
			},
			chart.TimeSeries{
				Name:    "Duration",
				XValues: x,
				YValues: durations,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
