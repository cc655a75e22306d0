// Package domain provides core domain models and types shared across the
// monitor: baselines, snapshots, instrument state and notification decisions.
package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates in the state document.
const DateLayout = "2006-01-02"

// Date is a calendar date in ISO yyyy-mm-dd form. The zero value ("") means
// "unset". Dates are kept as strings so the persisted state document stays
// byte-stable across load/save cycles.
type Date string

// NewDate returns the Date for the calendar day of t.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == ""
}

// Time parses the date at midnight UTC.
func (d Date) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", string(d), err)
	}
	return t, nil
}

// DaysSince returns the number of whole days from other to d.
// Both dates must be valid.
func (d Date) DaysSince(other Date) (int, error) {
	a, err := d.Time()
	if err != nil {
		return 0, err
	}
	b, err := other.Time()
	if err != nil {
		return 0, err
	}
	return int(a.Sub(b).Hours() / 24), nil
}

// Status is the per-instrument position relative to the threshold.
type Status string

const (
	// StatusBelow means the observed yield is under the threshold.
	StatusBelow Status = "below"
	// StatusAbove means the observed yield is at or over the threshold.
	StatusAbove Status = "above"
)

// NotificationKind classifies a decision emitted by the state machine.
type NotificationKind string

const (
	// KindInitial is the first-ever observation of an instrument, below threshold.
	KindInitial NotificationKind = "initial"
	// KindInitialAbove is the first-ever observation, already at/above threshold.
	KindInitialAbove NotificationKind = "initial_above"
	// KindCrossedAbove is a below→above transition.
	KindCrossedAbove NotificationKind = "crossed_above"
	// KindCrossedBelow is an above→below transition.
	KindCrossedBelow NotificationKind = "crossed_below"
	// KindReminder is the weekly re-notification while above threshold.
	KindReminder NotificationKind = "reminder"
	// KindNone means no notification is due this run.
	KindNone NotificationKind = ""
)

// Baseline is the long-run reference yield for an instrument: the count of
// calendar years it statistically represents and their years-weighted average
// yield (percent). Years only ever grows, one fold at a time.
type Baseline struct {
	Years int     `json:"years"`
	Yield float64 `json:"yield"`
}

// YearlyActual is one historical calendar year's realized yield: the year's
// total distributions divided by the final session's close. It is folded into
// a Baseline immediately and never persisted on its own.
type YearlyActual struct {
	Year          int
	RealizedYield float64
}

// Snapshot is the live view of an instrument as of its most recent trading
// session, as returned by the market-data collaborator.
type Snapshot struct {
	LiveYield              float64 `json:"yield"`
	ReferencePrice         float64 `json:"price"`
	AnnualizedDistribution float64 `json:"dividend"`
	LastTradeDate          Date    `json:"last_trade_date"`
}

// Instrument is the static per-instrument configuration. The seed baseline
// describes the yield history already averaged into the configuration, through
// calendar year BaselineYearEnd inclusive.
type Instrument struct {
	Ticker            string  `yaml:"-"`
	DisplayName       string  `yaml:"display_name" validate:"required"`
	InceptionDate     Date    `yaml:"inception_date" validate:"required"`
	SeedBaselineYears int     `yaml:"seed_baseline_years" validate:"gte=0"`
	SeedBaselineYield float64 `yaml:"seed_baseline_yield" validate:"gte=0"`
	BaselineYearEnd   int     `yaml:"baseline_year_end" validate:"required,gte=1900"`
	ThresholdOffset   float64 `yaml:"threshold_offset"`
}

// SeedBaseline returns the baseline the instrument was configured with.
func (i Instrument) SeedBaseline() Baseline {
	return Baseline{Years: i.SeedBaselineYears, Yield: i.SeedBaselineYield}
}

// Validate checks invariants that the validator tags cannot express.
func (i Instrument) Validate() error {
	inception, err := i.InceptionDate.Time()
	if err != nil {
		return fmt.Errorf("instrument %s: %w", i.Ticker, err)
	}
	if i.BaselineYearEnd < inception.Year() {
		return fmt.Errorf("instrument %s: baseline_year_end %d predates inception %s",
			i.Ticker, i.BaselineYearEnd, i.InceptionDate)
	}
	return nil
}

// InstrumentState is the persisted per-instrument record. When Status is
// "below" every CrossedAbove* and LastReminded* field is nil; they are
// populated only while the instrument is above threshold.
type InstrumentState struct {
	Status          Status   `json:"status"`
	Baseline        Baseline `json:"baseline"`
	CurrentYield    float64  `json:"current_yield"`
	Threshold       float64  `json:"threshold"`
	LastTradeDate   Date     `json:"last_trade_date"`
	LastCheckedDate Date     `json:"last_checked_date"`

	// LastYear is the calendar year currently being tracked: every completed
	// year before it has either been folded into the baseline or permanently
	// skipped by the backfill resolver.
	LastYear int `json:"last_year"`

	CrossedAboveDate           *Date    `json:"crossed_above_date"`
	CrossedAboveYield          *float64 `json:"crossed_above_yield"`
	CrossedAboveReferencePrice *float64 `json:"crossed_above_reference_price"`

	LastRemindedDate           *Date    `json:"last_reminded_date"`
	LastRemindedYield          *float64 `json:"last_reminded_yield"`
	LastRemindedReferencePrice *float64 `json:"last_reminded_reference_price"`

	LastNotifiedDate *Date `json:"last_notified_date"`
}

// ClearAboveBookkeeping nulls every field that is only meaningful while the
// instrument is above threshold.
func (s *InstrumentState) ClearAboveBookkeeping() {
	s.CrossedAboveDate = nil
	s.CrossedAboveYield = nil
	s.CrossedAboveReferencePrice = nil
	s.LastRemindedDate = nil
	s.LastRemindedYield = nil
	s.LastRemindedReferencePrice = nil
}

// Decision is the outcome of evaluating one instrument on one run.
type Decision struct {
	Ticker string
	Kind   NotificationKind
	Reason string

	// Figures the decision was rendered against.
	Yield          float64
	Threshold      float64
	ReferencePrice float64
	Distribution   float64
	Date           Date

	// Stale is true when the decision was made from last-known figures
	// because the day's snapshot could not be fetched.
	Stale bool
}

// Notify reports whether the decision should produce an outbound notification.
func (d Decision) Notify() bool {
	return d.Kind != KindNone
}
