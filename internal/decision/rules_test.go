package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/divmon/internal/domain"
)

// All dates below are from January 2026: the 5th, 12th and 19th are Mondays,
// the 7th is a Wednesday.

func baseInput() Input {
	return Input{
		Ticker:          "VYM",
		Today:           "2026-01-07",
		Yield:           3.2,
		Threshold:       4.0,
		ReferencePrice:  110.50,
		Distribution:    3.54,
		LastTradeDate:   "2026-01-07",
		ReminderWeekday: time.Monday,
	}
}

func TestFirstObservationBelow(t *testing.T) {
	out := Decide(baseInput())

	assert.Equal(t, domain.KindInitial, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, domain.StatusBelow, out.State.Status)
	assert.Equal(t, 3.2, out.State.CurrentYield)
	assert.Equal(t, domain.Date("2026-01-07"), out.State.LastTradeDate)
	assert.Equal(t, domain.Date("2026-01-07"), out.State.LastCheckedDate)
	assert.Nil(t, out.State.CrossedAboveDate)
	assert.Nil(t, out.State.LastRemindedDate)
	require.NotNil(t, out.State.LastNotifiedDate)
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.LastNotifiedDate)
}

func TestFirstObservationAlreadyAbove(t *testing.T) {
	in := baseInput()
	in.Yield = 4.5

	out := Decide(in)

	assert.Equal(t, domain.KindInitialAbove, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, domain.StatusAbove, out.State.Status)
	require.NotNil(t, out.State.CrossedAboveDate)
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.CrossedAboveDate)
	assert.Equal(t, 4.5, *out.State.CrossedAboveYield)
	assert.Equal(t, 110.50, *out.State.CrossedAboveReferencePrice)
	require.NotNil(t, out.State.LastRemindedDate)
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.LastRemindedDate)
}

func TestSameTradeDateLeavesStateUntouched(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:          domain.StatusBelow,
		CurrentYield:    3.0,
		Threshold:       4.0,
		LastTradeDate:   "2026-01-07",
		LastCheckedDate: "2026-01-07",
	}
	in := baseInput()
	in.Today = "2026-01-08"
	in.Yield = 9.9 // Figures from a repeated session must be ignored.
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindNone, out.Decision.Kind)
	assert.Nil(t, out.State)
}

func TestSameTradeDateBeatsCrossing(t *testing.T) {
	// The no-op rule precedes the crossing rules: a stale trade date means
	// no new session, even when the carried yield would sit above threshold.
	prev := &domain.InstrumentState{
		Status:        domain.StatusBelow,
		CurrentYield:  3.0,
		Threshold:     4.0,
		LastTradeDate: "2026-01-07",
	}
	in := baseInput()
	in.Today = "2026-01-08"
	in.Yield = 5.0
	in.Prev = prev

	out := Decide(in)
	assert.Equal(t, domain.KindNone, out.Decision.Kind)
	assert.Nil(t, out.State)
}

func TestCrossedAbove(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:        domain.StatusBelow,
		CurrentYield:  3.8,
		Threshold:     4.0,
		LastTradeDate: "2026-01-06",
		LastYear:      2026,
	}
	in := baseInput()
	in.Yield = 4.1
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindCrossedAbove, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, domain.StatusAbove, out.State.Status)
	require.NotNil(t, out.State.CrossedAboveDate)
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.CrossedAboveDate)
	assert.Equal(t, 4.1, *out.State.CrossedAboveYield)
	require.NotNil(t, out.State.LastRemindedDate)
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.LastRemindedDate)
}

func TestYieldExactlyAtThresholdCrossesAbove(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:        domain.StatusBelow,
		Threshold:     4.0,
		LastTradeDate: "2026-01-06",
	}
	in := baseInput()
	in.Yield = 4.0
	in.Prev = prev

	out := Decide(in)
	assert.Equal(t, domain.KindCrossedAbove, out.Decision.Kind)
}

func TestCrossedBelowClearsBookkeeping(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:                     domain.StatusAbove,
		CurrentYield:               4.2,
		Threshold:                  4.0,
		LastTradeDate:              "2026-01-06",
		CrossedAboveDate:           datePtr("2026-01-02"),
		CrossedAboveYield:          floatPtr(4.1),
		CrossedAboveReferencePrice: floatPtr(108.0),
		LastRemindedDate:           datePtr("2026-01-05"),
		LastRemindedYield:          floatPtr(4.2),
		LastRemindedReferencePrice: floatPtr(109.0),
	}
	in := baseInput()
	in.Yield = 3.9
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindCrossedBelow, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, domain.StatusBelow, out.State.Status)
	assert.Nil(t, out.State.CrossedAboveDate)
	assert.Nil(t, out.State.CrossedAboveYield)
	assert.Nil(t, out.State.CrossedAboveReferencePrice)
	assert.Nil(t, out.State.LastRemindedDate)
	assert.Nil(t, out.State.LastRemindedYield)
	assert.Nil(t, out.State.LastRemindedReferencePrice)
}

func TestReminderFiresOnConfiguredWeekdayAfterSevenDays(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:           domain.StatusAbove,
		Threshold:        4.0,
		LastTradeDate:    "2026-01-09",
		CrossedAboveDate: datePtr("2026-01-02"),
		LastRemindedDate: datePtr("2026-01-05"),
	}
	in := baseInput()
	in.Today = "2026-01-12" // Monday, 7 days after the last reminder
	in.Yield = 4.3
	in.LastTradeDate = "2026-01-12"
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindReminder, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, domain.Date("2026-01-12"), *out.State.LastRemindedDate)
	assert.Equal(t, 4.3, *out.State.LastRemindedYield)
	// Crossing bookkeeping survives reminders.
	require.NotNil(t, out.State.CrossedAboveDate)
	assert.Equal(t, domain.Date("2026-01-02"), *out.State.CrossedAboveDate)
}

func TestReminderSuppressedUnderSevenDays(t *testing.T) {
	// Crossed on Wednesday the 7th; the following Monday is only 5 days
	// later, so the reminder waits for the Monday after.
	prev := &domain.InstrumentState{
		Status:           domain.StatusAbove,
		Threshold:        4.0,
		LastTradeDate:    "2026-01-09",
		CrossedAboveDate: datePtr("2026-01-07"),
		LastRemindedDate: datePtr("2026-01-07"),
	}
	in := baseInput()
	in.Today = "2026-01-12"
	in.Yield = 4.3
	in.LastTradeDate = "2026-01-12"
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindNone, out.Decision.Kind)
	require.NotNil(t, out.State) // refreshed, not notified
	assert.Equal(t, domain.Date("2026-01-07"), *out.State.LastRemindedDate)
}

func TestReminderSuppressedOffWeekday(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:           domain.StatusAbove,
		Threshold:        4.0,
		LastTradeDate:    "2026-01-06",
		LastRemindedDate: datePtr("2025-12-29"),
	}
	in := baseInput() // Wednesday
	in.Yield = 4.3
	in.Prev = prev

	out := Decide(in)
	assert.Equal(t, domain.KindNone, out.Decision.Kind)
}

func TestRefreshOnlyUpdatesFigures(t *testing.T) {
	prev := &domain.InstrumentState{
		Status:        domain.StatusBelow,
		CurrentYield:  3.0,
		Threshold:     4.0,
		LastTradeDate: "2026-01-06",
	}
	in := baseInput()
	in.Prev = prev

	out := Decide(in)

	assert.Equal(t, domain.KindNone, out.Decision.Kind)
	require.NotNil(t, out.State)
	assert.Equal(t, 3.2, out.State.CurrentYield)
	assert.Equal(t, domain.Date("2026-01-07"), out.State.LastTradeDate)
	assert.Nil(t, out.State.LastNotifiedDate)
}

func TestStaleRunOnlyRemindersFire(t *testing.T) {
	above := &domain.InstrumentState{
		Status:           domain.StatusAbove,
		CurrentYield:     4.5,
		Threshold:        4.0,
		LastTradeDate:    "2026-01-09",
		LastRemindedDate: datePtr("2026-01-05"),
	}

	t.Run("reminder fires from last known figures", func(t *testing.T) {
		in := Input{
			Ticker:          "VYM",
			Today:           "2026-01-12",
			Yield:           4.5,
			Threshold:       4.0,
			LastTradeDate:   "2026-01-09",
			Prev:            above,
			Stale:           true,
			ReminderWeekday: time.Monday,
		}
		out := Decide(in)

		assert.Equal(t, domain.KindReminder, out.Decision.Kind)
		assert.True(t, out.Decision.Stale)
		require.NotNil(t, out.State)
		assert.Equal(t, domain.Date("2026-01-12"), *out.State.LastRemindedDate)
		// Trade-date bookkeeping must not advance on a stale run.
		assert.Equal(t, domain.Date("2026-01-09"), out.State.LastTradeDate)
	})

	t.Run("no crossing on stale figures", func(t *testing.T) {
		below := &domain.InstrumentState{
			Status:        domain.StatusBelow,
			CurrentYield:  4.5, // would cross if fresh
			Threshold:     4.0,
			LastTradeDate: "2026-01-09",
		}
		in := Input{
			Ticker:          "VYM",
			Today:           "2026-01-12",
			Yield:           4.5,
			Threshold:       4.0,
			LastTradeDate:   "2026-01-09",
			Prev:            below,
			Stale:           true,
			ReminderWeekday: time.Monday,
		}
		out := Decide(in)

		assert.Equal(t, domain.KindNone, out.Decision.Kind)
		assert.Nil(t, out.State)
	})
}

func TestLifecycleSequence(t *testing.T) {
	// One instrument through a full cycle: discovery, crossing, quiet days,
	// a weekly reminder, then dropping back below.
	var prev *domain.InstrumentState

	step := func(today, tradeDate domain.Date, yield float64) Outcome {
		out := Decide(Input{
			Ticker:          "VYM",
			Today:           today,
			Yield:           yield,
			Threshold:       4.0,
			ReferencePrice:  100,
			Distribution:    4,
			LastTradeDate:   tradeDate,
			Prev:            prev,
			ReminderWeekday: time.Monday,
		})
		if out.State != nil {
			prev = out.State
		}
		return out
	}

	assert.Equal(t, domain.KindInitial, step("2026-01-05", "2026-01-05", 3.8).Decision.Kind)
	assert.Equal(t, domain.KindCrossedAbove, step("2026-01-06", "2026-01-06", 4.2).Decision.Kind)
	assert.Equal(t, domain.KindNone, step("2026-01-07", "2026-01-07", 4.3).Decision.Kind)
	// Saturday, no new session.
	assert.Equal(t, domain.KindNone, step("2026-01-10", "2026-01-09", 4.3).Decision.Kind)
	// Next Monday is only 6 days after the crossing reminder seed.
	assert.Equal(t, domain.KindNone, step("2026-01-12", "2026-01-12", 4.4).Decision.Kind)
	// The Monday after that qualifies.
	assert.Equal(t, domain.KindReminder, step("2026-01-19", "2026-01-19", 4.4).Decision.Kind)
	assert.Equal(t, domain.KindCrossedBelow, step("2026-01-20", "2026-01-20", 3.7).Decision.Kind)

	assert.Equal(t, domain.StatusBelow, prev.Status)
	assert.Nil(t, prev.CrossedAboveDate)
}
