// Package baseline maintains the long-run reference yield for an instrument
// and derives the live decision threshold from it.
//
// The ledger has exactly one mutation primitive, FoldYear: every baseline
// change — ordinary year rollover, gap backfill, initial-run catch-up — is one
// or more applications of it, in ascending year order. Values are carried at
// full float64 precision; rounding happens only at presentation boundaries,
// never between folds.
package baseline

import "github.com/aristath/divmon/internal/domain"

// FoldYear folds one calendar year's realized yield into the baseline,
// returning the years-weighted average over the enlarged window. Pure.
func FoldYear(b domain.Baseline, realizedYield float64) domain.Baseline {
	return domain.Baseline{
		Years: b.Years + 1,
		Yield: (b.Yield*float64(b.Years) + realizedYield) / float64(b.Years+1),
	}
}

// Threshold derives the live decision bar from a baseline and the
// instrument's static offset. The result is flat across an entire calendar
// year: the baseline only changes at year boundaries, so recomputing the
// threshold every run from the same baseline yields the same bar. Deriving it
// from any intra-year running statistic instead would let early-year
// observations swing the bar disproportionately, which is exactly the bias
// the fixed-for-the-year baseline exists to remove.
func Threshold(b domain.Baseline, offset float64) float64 {
	return b.Yield + offset
}
