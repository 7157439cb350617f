// Package distribution summarizes how journal entries are spread over the
// days of a window: per-day counts, how spiky the busiest day is, how much
// of the activity the busiest tenth of days holds, and a coarse shape.
package distribution

import (
	"math"
	"sort"
	"time"

	"observer/internal/signature"
)

// Shape classification thresholds.
const (
	// PowerlawTopShare is the top-decile share at or above which activity
	// is classified as heavy-tailed.
	PowerlawTopShare = 0.5

	// LognormalSkewness is the sample skewness of active-day counts above
	// which activity is classified as right-skewed.
	LognormalSkewness = 1.0

	// TopFraction is the fraction of days counted as "busiest".
	TopFraction = 0.1
)

// Entry is one timestamped journal entry. Only CreatedAt takes part in
// the computation.
type Entry struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	Plaintext string `json:"plaintext,omitempty"`
}

// Summary is the distribution of one window.
type Summary struct {
	Classification        string                 `json:"classification"`
	SpikeRatio            float64                `json:"spikeRatio"`
	Top10PercentDaysShare float64                `json:"top10PercentDaysShare"`
	DailyCounts           []signature.DailyCount `json:"dailyCounts"`
}

// SignatureInput converts the summary into extractor input. A non-empty
// classification overrides the summary's own.
func (s *Summary) SignatureInput(classification string) signature.Input {
	if classification == "" {
		classification = s.Classification
	}
	counts := make([]signature.DailyCount, len(s.DailyCounts))
	copy(counts, s.DailyCounts)
	return signature.Input{
		DistributionClassification: classification,
		SpikeRatio:                 s.SpikeRatio,
		Top10PercentDaysShare:      s.Top10PercentDaysShare,
		DailyCounts:                counts,
	}
}

// Filter returns the entries created within [start, end]. Entries whose
// CreatedAt does not parse as RFC 3339 are dropped.
func Filter(entries []Entry, start, end time.Time) []Entry {
	var out []Entry
	for _, e := range entries {
		t, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
		if err != nil {
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Compute summarizes the entries created within [start, end] over a grid
// of windowDays UTC days beginning on the UTC day of start. Entries that
// land past the grid are not counted. It returns nil when the window is
// empty or inverted.
func Compute(entries []Entry, start, end time.Time, windowDays int) *Summary {
	if windowDays <= 0 || end.Before(start) {
		return nil
	}

	first := utcDay(start)
	counts := make([]int, windowDays)
	for _, e := range Filter(entries, start, end) {
		t, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)
		idx := int(utcDay(t).Sub(first).Hours() / 24)
		if idx < 0 || idx >= windowDays {
			continue
		}
		counts[idx]++
	}

	daily := make([]signature.DailyCount, windowDays)
	for i, c := range counts {
		daily[i] = signature.DailyCount{
			Date:  first.AddDate(0, 0, i).Format(signature.DayLayout),
			Count: c,
		}
	}

	return &Summary{
		Classification:        Classify(counts),
		SpikeRatio:            SpikeRatio(counts),
		Top10PercentDaysShare: TopShare(counts, TopFraction),
		DailyCounts:           daily,
	}
}

// SpikeRatio is the busiest day's count over the median active day.
// Formula: max(c) / median({c : c > 0}); 0 when no day is active.
func SpikeRatio(counts []int) float64 {
	active := activeCounts(counts)
	if len(active) == 0 {
		return 0
	}
	m := median(active)
	if m == 0 {
		return 0
	}
	peak := 0.0
	for _, c := range active {
		peak = math.Max(peak, c)
	}
	return peak / m
}

// TopShare is the share of the total held by the busiest ceil(fraction*n)
// days, at least one day.
func TopShare(counts []int, fraction float64) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}

	sorted := append([]int(nil), counts...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	k := int(math.Ceil(fraction * float64(len(sorted))))
	if k < 1 {
		k = 1
	}
	top := 0
	for _, c := range sorted[:k] {
		top += c
	}
	return float64(top) / float64(total)
}

// Classify assigns a coarse shape: "powerlaw" when the busiest tenth of
// days holds at least half of the activity, "lognormal" when active-day
// counts are strongly right-skewed, otherwise "normal". Windows without
// activity are left unclassified.
func Classify(counts []int) string {
	active := activeCounts(counts)
	if len(active) == 0 {
		return ""
	}
	if TopShare(counts, TopFraction) >= PowerlawTopShare {
		return string(signature.FitPowerlaw)
	}
	if skewness(active) > LognormalSkewness {
		return string(signature.FitLognormal)
	}
	return string(signature.FitNormal)
}

func activeCounts(counts []int) []float64 {
	var out []float64
	for _, c := range counts {
		if c > 0 {
			out = append(out, float64(c))
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// skewness is the population skewness m3 / m2^1.5; 0 for constant input.
func skewness(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	var m2, m3 float64
	for _, v := range values {
		d := v - mean
		m2 += d * d
		m3 += d * d * d
	}
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
