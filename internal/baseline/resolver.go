package baseline

import (
	"context"

	"github.com/aristath/divmon/internal/domain"
	"github.com/rs/zerolog"
)

// YearSource fetches one historical calendar year's realized yield for an
// instrument. Implemented by the market-data client.
type YearSource interface {
	YearlyRealizedYield(ctx context.Context, ticker string, year int) (float64, error)
}

// Gap describes a stretch of calendar years whose contributions are missing
// from an instrument's baseline. The gap covers [StartYear, CurrentYear-1];
// CurrentYear itself is still in progress and is never folded.
type Gap struct {
	Ticker      string
	Baseline    domain.Baseline
	StartYear   int
	CurrentYear int
}

// Empty reports whether there is nothing to reconcile.
func (g Gap) Empty() bool {
	return g.StartYear > g.CurrentYear-1
}

// YearFailure records a single historical year that could not be resolved.
type YearFailure struct {
	Year int
	Err  error
}

// Result is the outcome of reconciling one gap.
type Result struct {
	// Baseline with every successfully resolved year folded in, ascending.
	Baseline domain.Baseline

	// LastYear is the new tracking-year cursor. When every year resolved it
	// equals the gap's CurrentYear; when trailing years failed it sits just
	// past the highest folded year, so those years are retried next run.
	// Years the cursor has moved past are permanently omitted.
	LastYear int

	Folded []domain.YearlyActual
	Failed []YearFailure
}

// AllFailed reports that the gap was non-empty and not a single year folded.
// The caller leaves the baseline and cursor untouched and retries the whole
// gap on the next run, emitting one summary failure instead of one per year.
func (r Result) AllFailed() bool {
	return len(r.Folded) == 0 && len(r.Failed) > 0
}

// Resolver reconciles baseline gaps by fetching each missing year's realized
// yield and folding it in, strictly ascending. A year that fails to fetch is
// skipped, reported, and the remaining gap continues; already-folded years
// are never rolled back.
type Resolver struct {
	source YearSource
	log    zerolog.Logger
}

// NewResolver creates a backfill resolver.
func NewResolver(source YearSource, log zerolog.Logger) *Resolver {
	return &Resolver{
		source: source,
		log:    log.With().Str("component", "backfill").Logger(),
	}
}

// Reconcile walks the gap in ascending year order. Whether a year needs
// folding is decided purely by cursor position, so reconciling an unchanged
// cursor twice in one process is a no-op.
func (r *Resolver) Reconcile(ctx context.Context, gap Gap) Result {
	res := Result{
		Baseline: gap.Baseline,
		LastYear: gap.StartYear,
	}
	if gap.Empty() {
		res.LastYear = gap.CurrentYear
		return res
	}

	cursor := 0 // highest folded year, 0 = none this gap
	for year := gap.StartYear; year <= gap.CurrentYear-1; year++ {
		realized, err := r.source.YearlyRealizedYield(ctx, gap.Ticker, year)
		if err != nil {
			r.log.Warn().
				Str("ticker", gap.Ticker).
				Int("year", year).
				Err(err).
				Msg("Historical year fetch failed, skipping year")
			res.Failed = append(res.Failed, YearFailure{Year: year, Err: err})
			continue
		}

		// Fold immediately so a later failure in the same gap cannot roll
		// back this year's contribution.
		res.Baseline = FoldYear(res.Baseline, realized)
		res.Folded = append(res.Folded, domain.YearlyActual{Year: year, RealizedYield: realized})
		cursor = year

		r.log.Info().
			Str("ticker", gap.Ticker).
			Int("year", year).
			Float64("realized_yield", realized).
			Int("baseline_years", res.Baseline.Years).
			Float64("baseline_yield", res.Baseline.Yield).
			Msg("Folded year into baseline")
	}

	if cursor != 0 {
		res.LastYear = cursor + 1
	}
	return res
}
