// Package decision implements the per-instrument notification state machine.
//
// The transition logic is an explicit ordered rule table evaluated
// top-to-bottom with first-match-wins semantics, so precedence is a stated
// contract rather than an accident of code layout. The machine performs no
// I/O and cannot fail; its inputs are validated by the caller.
package decision

import (
	"fmt"
	"time"

	"github.com/aristath/divmon/internal/domain"
)

// ReminderMinDays is the minimum number of elapsed days before a weekly
// reminder may repeat.
const ReminderMinDays = 7

// Input is everything the state machine looks at for one instrument on one
// run. Prev is nil when no record exists yet (absence is the uninitialized
// state). When Stale is true the figures are carried over from the last
// successful fetch and only the reminder rule may fire.
type Input struct {
	Ticker          string
	Today           domain.Date
	Yield           float64
	Threshold       float64
	ReferencePrice  float64
	Distribution    float64
	LastTradeDate   domain.Date
	Prev            *domain.InstrumentState
	Stale           bool
	ReminderWeekday time.Weekday
}

// Outcome is the machine's verdict: a decision (possibly KindNone) and the
// state to persist. A nil State means the persisted record must be left
// byte-for-byte untouched.
type Outcome struct {
	Decision domain.Decision
	State    *domain.InstrumentState
}

// rule is one row of the transition table.
type rule struct {
	name    string
	matches func(Input) bool
	apply   func(Input) Outcome
}

// table is evaluated in order; the first matching rule wins.
var table = []rule{
	{name: "first_observation", matches: matchFirstObservation, apply: applyFirstObservation},
	{name: "same_trade_date", matches: matchSameTradeDate, apply: applyNoOp},
	{name: "crossed_above", matches: matchCrossedAbove, apply: applyCrossedAbove},
	{name: "crossed_below", matches: matchCrossedBelow, apply: applyCrossedBelow},
	{name: "weekly_reminder", matches: matchReminder, apply: applyReminder},
	{name: "refresh_only", matches: matchAlways, apply: applyRefresh},
}

// Decide runs the transition table for one instrument.
func Decide(in Input) Outcome {
	for _, r := range table {
		if r.matches(in) {
			return r.apply(in)
		}
	}
	// Unreachable: the last rule always matches.
	return Outcome{Decision: domain.Decision{Ticker: in.Ticker, Kind: domain.KindNone}}
}

func matchFirstObservation(in Input) bool {
	return !in.Stale && in.Prev == nil
}

func applyFirstObservation(in Input) Outcome {
	st := &domain.InstrumentState{
		Status:          domain.StatusBelow,
		CurrentYield:    in.Yield,
		Threshold:       in.Threshold,
		LastTradeDate:   in.LastTradeDate,
		LastCheckedDate: in.Today,
	}

	kind := domain.KindInitial
	reason := fmt.Sprintf("first observation: %.2f%% below threshold %.2f%%", in.Yield, in.Threshold)

	if in.Yield >= in.Threshold {
		// Already above on day one: seed the crossing bookkeeping so the
		// reminder cadence starts immediately.
		kind = domain.KindInitialAbove
		reason = fmt.Sprintf("first observation: %.2f%% already at/above threshold %.2f%%", in.Yield, in.Threshold)
		st.Status = domain.StatusAbove
		setCrossing(st, in)
		setReminded(st, in.Today, in.Yield, in.ReferencePrice)
	}
	st.LastNotifiedDate = datePtr(in.Today)

	return Outcome{State: st, Decision: decisionFor(in, kind, reason)}
}

func matchSameTradeDate(in Input) bool {
	return !in.Stale && in.Prev != nil && in.LastTradeDate == in.Prev.LastTradeDate
}

// applyNoOp leaves the persisted record untouched: a non-trading day carries
// no new information and must not advance any date field.
func applyNoOp(in Input) Outcome {
	return Outcome{Decision: domain.Decision{Ticker: in.Ticker, Kind: domain.KindNone,
		Reason: "no new trading session since last run"}}
}

func matchCrossedAbove(in Input) bool {
	return !in.Stale && in.Prev != nil &&
		in.Prev.Status == domain.StatusBelow && in.Yield >= in.Threshold
}

func applyCrossedAbove(in Input) Outcome {
	st := refreshed(in)
	st.Status = domain.StatusAbove
	setCrossing(st, in)
	setReminded(st, in.Today, in.Yield, in.ReferencePrice)
	st.LastNotifiedDate = datePtr(in.Today)

	reason := fmt.Sprintf("threshold crossed: %.2f%% → %.2f%% (threshold %.2f%%)",
		in.Prev.CurrentYield, in.Yield, in.Threshold)
	return Outcome{State: st, Decision: decisionFor(in, domain.KindCrossedAbove, reason)}
}

func matchCrossedBelow(in Input) bool {
	return !in.Stale && in.Prev != nil &&
		in.Prev.Status == domain.StatusAbove && in.Yield < in.Threshold
}

func applyCrossedBelow(in Input) Outcome {
	st := refreshed(in)
	st.Status = domain.StatusBelow
	st.ClearAboveBookkeeping()
	st.LastNotifiedDate = datePtr(in.Today)

	reason := fmt.Sprintf("dropped below threshold: %.2f%% → %.2f%% (threshold %.2f%%)",
		in.Prev.CurrentYield, in.Yield, in.Threshold)
	return Outcome{State: st, Decision: decisionFor(in, domain.KindCrossedBelow, reason)}
}

func matchReminder(in Input) bool {
	if in.Prev == nil || in.Prev.Status != domain.StatusAbove || in.Yield < in.Threshold {
		return false
	}
	today, err := in.Today.Time()
	if err != nil || today.Weekday() != in.ReminderWeekday {
		return false
	}
	if in.Prev.LastRemindedDate == nil {
		return true
	}
	days, err := in.Today.DaysSince(*in.Prev.LastRemindedDate)
	if err != nil {
		return false
	}
	return days >= ReminderMinDays
}

func applyReminder(in Input) Outcome {
	var st *domain.InstrumentState
	if in.Stale {
		// Fetch failed today but the reminder day is here: fire from the
		// last-known figures without touching trade-date bookkeeping.
		cp := *in.Prev
		st = &cp
	} else {
		st = refreshed(in)
	}
	setReminded(st, in.Today, in.Yield, in.ReferencePrice)
	st.LastNotifiedDate = datePtr(in.Today)

	reason := fmt.Sprintf("weekly reminder: %.2f%% still at/above threshold %.2f%%", in.Yield, in.Threshold)
	if in.Stale {
		reason += " (last known figures)"
	}
	return Outcome{State: st, Decision: decisionFor(in, domain.KindReminder, reason)}
}

func matchAlways(Input) bool { return true }

// applyRefresh records the day's figures without notifying. On a stale run
// there is nothing new to record, so the record is left untouched.
func applyRefresh(in Input) Outcome {
	if in.Stale {
		return Outcome{Decision: domain.Decision{Ticker: in.Ticker, Kind: domain.KindNone,
			Reason: "fetch failed, carrying previous state forward", Stale: true}}
	}
	return Outcome{State: refreshed(in), Decision: domain.Decision{Ticker: in.Ticker,
		Kind: domain.KindNone, Reason: "no transition"}}
}

// refreshed copies the previous record and applies the bookkeeping every
// non-no-op evaluation performs: current yield, threshold and dates.
func refreshed(in Input) *domain.InstrumentState {
	st := &domain.InstrumentState{}
	if in.Prev != nil {
		cp := *in.Prev
		st = &cp
	}
	st.CurrentYield = in.Yield
	st.Threshold = in.Threshold
	st.LastTradeDate = in.LastTradeDate
	st.LastCheckedDate = in.Today
	return st
}

func setCrossing(st *domain.InstrumentState, in Input) {
	st.CrossedAboveDate = datePtr(in.Today)
	st.CrossedAboveYield = floatPtr(in.Yield)
	st.CrossedAboveReferencePrice = floatPtr(in.ReferencePrice)
}

func setReminded(st *domain.InstrumentState, day domain.Date, yield, price float64) {
	st.LastRemindedDate = datePtr(day)
	st.LastRemindedYield = floatPtr(yield)
	st.LastRemindedReferencePrice = floatPtr(price)
}

func decisionFor(in Input, kind domain.NotificationKind, reason string) domain.Decision {
	return domain.Decision{
		Ticker:         in.Ticker,
		Kind:           kind,
		Reason:         reason,
		Yield:          in.Yield,
		Threshold:      in.Threshold,
		ReferencePrice: in.ReferencePrice,
		Distribution:   in.Distribution,
		Date:           in.Today,
		Stale:          in.Stale,
	}
}

func datePtr(d domain.Date) *domain.Date { return &d }
func floatPtr(f float64) *float64        { return &f }
