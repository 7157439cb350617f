package signature

import (
	"math"
	"sort"
	"time"
)

// DayLayout is the only accepted layout for date-only strings.
const DayLayout = "2006-01-02"

// ParseDay interprets a YYYY-MM-DD string as midnight UTC.
//
// Every weekday derived for a signature goes through here. Parsing the
// same string in local time would move it across a day boundary on some
// machines and change the signature.
func ParseDay(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Weekday returns the 0-6 (Sunday first) weekday index of a YYYY-MM-DD
// string under the UTC convention.
func Weekday(s string) (int, bool) {
	t, ok := ParseDay(s)
	if !ok {
		return 0, false
	}
	return int(t.Weekday()), true
}

// MakePatternSignature builds a signature from a distribution summary.
// It returns nil when the input cannot support a claim: missing or unknown
// classification, a spike ratio that is not a positive finite number, a
// top-decile share outside [0,1], or no day with activity.
func MakePatternSignature(in Input) *PatternSignature {
	fit := DistributionFit(in.DistributionClassification)
	if !fit.Valid() {
		return nil
	}
	if !isFinite(in.SpikeRatio) || in.SpikeRatio <= 0 {
		return nil
	}
	if !isFinite(in.Top10PercentDaysShare) || in.Top10PercentDaysShare < 0 || in.Top10PercentDaysShare > 1 {
		return nil
	}

	threshold := DefaultSpikeThreshold
	if in.SpikeThreshold != nil {
		threshold = *in.SpikeThreshold
		if !isFinite(threshold) || threshold <= 0 {
			return nil
		}
	}

	days := activeWeekdays(in.DailyCounts)
	if days == nil {
		return nil
	}

	return &PatternSignature{
		ObservedDistributionFit: fit,
		// The spike ratio already is peak-day over typical-day activity.
		ConcentrationRatio:     in.SpikeRatio,
		DayOfWeekPattern:       days,
		TopPercentileShare:     in.Top10PercentDaysShare,
		RelativeSpikeThreshold: threshold,
	}
}

// activeWeekdays returns the sorted weekday set of days with count > 0,
// or nil when no day had activity.
func activeWeekdays(counts []DailyCount) []int {
	var seen [7]bool
	active := false
	for _, c := range counts {
		if c.Count <= 0 {
			continue
		}
		active = true
		if wd, ok := Weekday(c.Date); ok {
			seen[wd] = true
		}
	}
	if !active {
		return nil
	}

	days := make([]int, 0, 7)
	for wd, ok := range seen {
		if ok {
			days = append(days, wd)
		}
	}
	sort.Ints(days)
	return days
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
