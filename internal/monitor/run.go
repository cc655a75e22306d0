// Package monitor orchestrates a full evaluation run: load state, evaluate
// every instrument through the backfill resolver and the decision table,
// deliver notifications, and atomically replace the state document.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/divmon/internal/baseline"
	"github.com/aristath/divmon/internal/decision"
	"github.com/aristath/divmon/internal/domain"
	"github.com/aristath/divmon/internal/fx"
	"github.com/aristath/divmon/internal/metrics"
	"github.com/aristath/divmon/internal/notify"
	"github.com/aristath/divmon/internal/state"
)

// MarketData is the market-data collaborator: live snapshots plus historical
// per-year realized yields.
type MarketData interface {
	CurrentSnapshot(ctx context.Context, ticker string) (domain.Snapshot, error)
	YearlyRealizedYield(ctx context.Context, ticker string, year int) (float64, error)
}

// Summary describes the most recent completed run, for the status API.
type Summary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
	Outcome       string    `json:"outcome"`
	Instruments   int       `json:"instruments"`
	Notifications int       `json:"notifications"`
	FetchFailures []string  `json:"fetch_failures,omitempty"`
	FoldedYears   int       `json:"folded_years"`
	SkippedYears  int       `json:"skipped_years"`
}

// Runner executes evaluation runs. Runs never overlap: the scheduler calls
// Run sequentially and the CLI runs exactly one.
type Runner struct {
	instruments []domain.Instrument
	store       *state.Store
	market      MarketData
	resolver    *baseline.Resolver
	fx          *fx.Service
	notifier    notify.Notifier
	recorder    *metrics.Recorder
	weekday     time.Weekday
	now         func() time.Time
	log         zerolog.Logger

	mu   sync.RWMutex
	last *Summary
}

// LastRun returns the most recent run summary, or nil before the first run.
func (r *Runner) LastRun() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	cp := *r.last
	return &cp
}

// NewRunner wires an evaluation runner.
func NewRunner(
	instruments []domain.Instrument,
	store *state.Store,
	market MarketData,
	fxService *fx.Service,
	notifier notify.Notifier,
	recorder *metrics.Recorder,
	reminderWeekday time.Weekday,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		instruments: instruments,
		store:       store,
		market:      market,
		resolver:    baseline.NewResolver(market, log),
		fx:          fxService,
		notifier:    notifier,
		recorder:    recorder,
		weekday:     reminderWeekday,
		now:         time.Now,
		log:         log.With().Str("component", "monitor").Logger(),
	}
}

// Run executes one full evaluation pass over every configured instrument.
// Per-instrument failures are contained; the run aborts only when the state
// document cannot be loaded or saved, or when no exchange rate at all can be
// resolved.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.now()
	today := domain.NewDate(start)
	sum := Summary{
		RunID:       uuid.NewString()[:8],
		StartedAt:   start,
		Instruments: len(r.instruments),
	}
	log := r.log.With().Str("run_id", sum.RunID).Logger()
	log.Info().Str("date", string(today)).Int("instruments", len(r.instruments)).Msg("Run started")

	doc, err := r.store.Load()
	if err != nil {
		return r.finish(sum, start, "aborted", fmt.Errorf("failed to load state: %w", err))
	}

	rate, err := r.fx.Rate(ctx)
	if err != nil {
		return r.finish(sum, start, "aborted", fmt.Errorf("failed to resolve exchange rate: %w", err))
	}
	if rate.Degraded {
		r.deliver(ctx, log, notify.OperatorMessage("FX providers unreachable", []notify.Field{
			{Name: "Fallback", Value: fmt.Sprintf("Using fixed default rate %.2f; converted amounts are approximate.", rate.Value)},
		}))
	}

	for _, inst := range r.instruments {
		res := r.evaluate(ctx, log, doc, inst, today, start.Year())
		sum.FoldedYears += res.folded
		sum.SkippedYears += res.skipped
		if res.fetchFailed {
			sum.FetchFailures = append(sum.FetchFailures, inst.Ticker)
		}
		if res.outcome == nil {
			continue
		}
		if res.outcome.State != nil {
			doc[inst.Ticker] = res.outcome.State
		}

		d := res.outcome.Decision
		r.recorder.RecordDecision(inst.Ticker, string(d.Kind))
		if !d.Notify() {
			log.Debug().Str("ticker", inst.Ticker).Str("reason", d.Reason).Msg("No notification due")
			continue
		}
		sum.Notifications++
		log.Info().
			Str("ticker", inst.Ticker).
			Str("kind", string(d.Kind)).
			Float64("yield", d.Yield).
			Float64("threshold", d.Threshold).
			Msg("Notification due")
		r.deliver(ctx, log, notify.DecisionMessage(d, inst.DisplayName, rate, r.fxBase(), r.fxQuote()))
	}

	r.notifyFetchFailures(ctx, log, today, sum.FetchFailures)

	if err := r.store.Save(doc); err != nil {
		return r.finish(sum, start, "aborted", fmt.Errorf("failed to save state: %w", err))
	}

	s, _ := r.finish(sum, start, "success", nil)
	log.Info().
		Str("duration", s.Duration).
		Int("notifications", s.Notifications).
		Int("folded_years", s.FoldedYears).
		Msg("Run completed")
	return s, nil
}

// evalResult is the per-instrument outcome inside a run.
type evalResult struct {
	outcome     *decision.Outcome
	fetchFailed bool
	folded      int
	skipped     int
}

func (r *Runner) evaluate(ctx context.Context, log zerolog.Logger, doc state.Document, inst domain.Instrument, today domain.Date, currentYear int) evalResult {
	prev := doc[inst.Ticker]

	snap, err := r.market.CurrentSnapshot(ctx, inst.Ticker)
	if err != nil {
		r.recorder.RecordFetchFailure("snapshot")
		if prev == nil {
			// Nothing known yet and nothing fetched: there is no state to
			// carry forward, so the instrument waits for its first good day.
			log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("Snapshot fetch failed, no prior state, skipping")
			return evalResult{fetchFailed: true}
		}
		log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("Snapshot fetch failed, evaluating from last known figures")
		out := decision.Decide(staleInput(inst, prev, today, r.weekday))
		return evalResult{outcome: &out, fetchFailed: true}
	}

	// No new trading session carries no new information. This check runs
	// before any baseline work so the persisted record stays untouched and a
	// pending year rollover waits for the next trading day.
	if prev != nil && snap.LastTradeDate == prev.LastTradeDate {
		out := decision.Decide(decision.Input{
			Ticker:        inst.Ticker,
			Today:         today,
			LastTradeDate: snap.LastTradeDate,
			Prev:          prev,
		})
		return evalResult{outcome: &out}
	}

	base, lastYear, res := r.reconcile(ctx, log, inst, prev, currentYear)
	if res != nil {
		r.reportBackfill(ctx, log, inst, res)
	}

	threshold := baseline.Threshold(base, inst.ThresholdOffset)
	r.recorder.RecordObservation(inst.Ticker, snap.LiveYield, threshold)

	out := decision.Decide(decision.Input{
		Ticker:          inst.Ticker,
		Today:           today,
		Yield:           snap.LiveYield,
		Threshold:       threshold,
		ReferencePrice:  snap.ReferencePrice,
		Distribution:    snap.AnnualizedDistribution,
		LastTradeDate:   snap.LastTradeDate,
		Prev:            prev,
		ReminderWeekday: r.weekday,
	})
	if out.State != nil {
		out.State.Baseline = base
		out.State.LastYear = lastYear
	}

	ev := evalResult{outcome: &out}
	if res != nil {
		ev.folded = len(res.Folded)
		ev.skipped = len(res.Failed)
	}
	return ev
}

// reconcile determines the instrument's baseline gap and resolves it. On a
// full-gap failure the previous baseline and cursor are kept so the whole
// gap is retried next run.
func (r *Runner) reconcile(ctx context.Context, log zerolog.Logger, inst domain.Instrument, prev *domain.InstrumentState, currentYear int) (domain.Baseline, int, *baseline.Result) {
	gap := baseline.Gap{
		Ticker:      inst.Ticker,
		CurrentYear: currentYear,
	}
	if prev == nil {
		gap.Baseline = inst.SeedBaseline()
		gap.StartYear = inst.BaselineYearEnd + 1
	} else {
		gap.Baseline = prev.Baseline
		gap.StartYear = prev.LastYear
	}

	if gap.Empty() {
		return gap.Baseline, currentYear, nil
	}

	res := r.resolver.Reconcile(ctx, gap)
	r.recorder.RecordBackfill(len(res.Folded), len(res.Failed))
	if res.AllFailed() {
		log.Warn().
			Str("ticker", inst.Ticker).
			Int("start_year", gap.StartYear).
			Int("through", gap.CurrentYear-1).
			Msg("Entire baseline gap failed to resolve, will retry next run")
	}
	return res.Baseline, res.LastYear, &res
}

// reportBackfill emits operator alerts for unresolved historical years. A
// fully failed gap produces one summary alert instead of one per year.
func (r *Runner) reportBackfill(ctx context.Context, log zerolog.Logger, inst domain.Instrument, res *baseline.Result) {
	if len(res.Failed) == 0 {
		return
	}
	if res.AllFailed() {
		first, last := res.Failed[0].Year, res.Failed[len(res.Failed)-1].Year
		r.deliver(ctx, log, notify.OperatorMessage("Baseline backfill failed", []notify.Field{
			{Name: "Instrument", Value: inst.Ticker, Inline: true},
			{Name: "Years", Value: fmt.Sprintf("%d-%d", first, last), Inline: true},
			{Name: "Detail", Value: "No historical year could be resolved; the full gap will be retried on the next run."},
		}))
		return
	}
	fields := []notify.Field{{Name: "Instrument", Value: inst.Ticker, Inline: true}}
	for _, f := range res.Failed {
		fields = append(fields, notify.Field{
			Name:  fmt.Sprintf("Year %d", f.Year),
			Value: f.Err.Error(),
		})
	}
	r.deliver(ctx, log, notify.OperatorMessage("Historical years skipped during backfill", fields))
}

// notifyFetchFailures alerts the operator about snapshot fetch failures.
// Weekend failures are suppressed: provider hiccups are common while markets
// are closed and Monday's run covers the same ground.
func (r *Runner) notifyFetchFailures(ctx context.Context, log zerolog.Logger, today domain.Date, tickers []string) {
	if len(tickers) == 0 {
		return
	}
	t, err := today.Time()
	if err == nil && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
		log.Info().Strs("tickers", tickers).Msg("Suppressing weekend fetch-failure alert")
		return
	}
	fields := make([]notify.Field, 0, len(tickers))
	for _, ticker := range tickers {
		fields = append(fields, notify.Field{Name: ticker, Value: "snapshot fetch failed", Inline: true})
	}
	r.deliver(ctx, log, notify.OperatorMessage("Market data fetch failures", fields))
}

// staleInput builds a decision input from the last persisted figures. Only
// the reminder rule can fire on it.
func staleInput(inst domain.Instrument, prev *domain.InstrumentState, today domain.Date, weekday time.Weekday) decision.Input {
	price := 0.0
	if prev.LastRemindedReferencePrice != nil {
		price = *prev.LastRemindedReferencePrice
	} else if prev.CrossedAboveReferencePrice != nil {
		price = *prev.CrossedAboveReferencePrice
	}
	return decision.Input{
		Ticker:          inst.Ticker,
		Today:           today,
		Yield:           prev.CurrentYield,
		Threshold:       prev.Threshold,
		ReferencePrice:  price,
		Distribution:    prev.CurrentYield / 100 * price,
		LastTradeDate:   prev.LastTradeDate,
		Prev:            prev,
		Stale:           true,
		ReminderWeekday: weekday,
	}
}

func (r *Runner) deliver(ctx context.Context, log zerolog.Logger, msg notify.Message) {
	if err := r.notifier.Deliver(ctx, msg); err != nil {
		log.Error().Err(err).Str("title", msg.Title).Msg("Notification delivery failed")
	}
}

func (r *Runner) finish(sum Summary, start time.Time, outcome string, err error) (Summary, error) {
	elapsed := r.now().Sub(start)
	sum.Outcome = outcome
	sum.Duration = elapsed.Round(time.Millisecond).String()
	r.recorder.RecordRun(outcome, elapsed.Seconds())

	r.mu.Lock()
	cp := sum
	r.last = &cp
	r.mu.Unlock()
	return sum, err
}

func (r *Runner) fxBase() string  { b, _ := r.fx.Pair(); return b }
func (r *Runner) fxQuote() string { _, q := r.fx.Pair(); return q }
