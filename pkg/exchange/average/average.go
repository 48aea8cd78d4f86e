// Package average provides the outlier-trimmed averaging statistics used to
// combine simultaneous quotes from multiple exchanges into one robust value.
package average

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// DefaultPlaces is the default output precision in decimal places.
	DefaultPlaces int32 = 8
)

// DefaultOutlierPct is the default tolerance window around the median,
// in percent. Samples further away than this are discarded before averaging.
var DefaultOutlierPct = decimal.NewFromInt(50)

// Mean returns the arithmetic mean of vals rounded to places decimal places.
// A single value is returned rounded; an empty input is an error.
func Mean(vals []decimal.Decimal, places int32) (decimal.Decimal, error) {
	if len(vals) == 0 {
		return decimal.Decimal{}, ErrNoValues
	}
	if len(vals) == 1 {
		return vals[0].Round(places), nil
	}
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(vals)))).Round(places), nil
}

// Median returns the median of vals rounded to places decimal places.
//
// A single value is returned as-is, without rounding. With three or fewer
// values the exact middle element of the sorted list is returned. With four
// or more, the two elements straddling the midpoint are averaged.
func Median(vals []decimal.Decimal, places int32) (decimal.Decimal, error) {
	if len(vals) == 0 {
		return decimal.Decimal{}, ErrNoValues
	}
	sorted := sortedCopy(vals)
	mid := len(sorted) / 2

	if len(sorted) == 1 {
		return sorted[0], nil
	}
	if len(sorted) <= 3 {
		return sorted[mid].Round(places), nil
	}
	return Mean([]decimal.Decimal{sorted[mid-1], sorted[mid]}, places)
}

// TrimOutliers removes every value more than pct percent above or below the
// median of vals and returns the survivors in ascending order. The window is
// inclusive on both ends. A single value always survives.
func TrimOutliers(vals []decimal.Decimal, pct decimal.Decimal) ([]decimal.Decimal, error) {
	if len(vals) == 0 {
		return nil, ErrNoValues
	}
	if len(vals) == 1 {
		return []decimal.Decimal{vals[0]}, nil
	}

	frac := pct.Div(decimal.NewFromInt(100))
	low := decimal.NewFromInt(1).Sub(frac)
	high := decimal.NewFromInt(1).Add(frac)

	mid, err := Median(vals, DefaultPlaces)
	if err != nil {
		return nil, err
	}
	floor, ceil := mid.Mul(low), mid.Mul(high)

	out := make([]decimal.Decimal, 0, len(vals))
	for _, v := range vals {
		if v.GreaterThanOrEqual(floor) && v.LessThanOrEqual(ceil) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// TrimmedMean is the aggregation statistic: an outlier-trimmed median
// average rounded to places decimal places.
//
// When outPct is positive, values more than outPct percent away from the
// median are trimmed via TrimOutliers and the survivors are averaged. When
// outPct is zero (or negative), trimming depends on the sample count instead:
// three or fewer values yield the plain median, four to eight drop the single
// smallest and largest value, and more than eight drop the smallest and
// largest quarter (integer floor) before averaging.
func TrimmedMean(vals []decimal.Decimal, outPct decimal.Decimal, places int32) (decimal.Decimal, error) {
	if len(vals) == 0 {
		return decimal.Decimal{}, ErrNoValues
	}
	sorted := sortedCopy(vals)

	var kept []decimal.Decimal
	switch {
	case outPct.IsPositive():
		trimmed, err := TrimOutliers(sorted, outPct)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if len(trimmed) == 0 {
			return decimal.Decimal{}, fmt.Errorf("%w: every sample outside the %s%% window", ErrNoValues, outPct)
		}
		kept = trimmed
	case len(sorted) <= 3:
		return Median(sorted, places)
	case len(sorted) <= 8:
		kept = sorted[1 : len(sorted)-1]
	default:
		qt := len(sorted) / 4
		kept = sorted[qt : len(sorted)-qt]
	}

	return Mean(kept, places)
}

func sortedCopy(vals []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	copy(out, vals)
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}
