package signature

import (
	"math"
	"strconv"
	"strings"
)

// Top-decile share bands. A share exactly on a boundary belongs to medium.
const (
	ShareLowBelow  = 0.3
	ShareHighAbove = 0.6
)

// Concentration ratio bands.
const (
	ConcentrationLowBelow  = 1.5
	ConcentrationHighAbove = 3.0
)

// Spike threshold bands.
const (
	SpikeLowBelow  = 1.5
	SpikeHighAbove = 2.5
)

// SpikeThresholdTolerance is the largest spike threshold difference two
// signatures may have and still be considered the same pattern.
const SpikeThresholdTolerance = 0.1

// toleranceSlack absorbs binary rounding so that 2.0 vs 2.1 sits inside
// the tolerance.
const toleranceSlack = 1e-9

// ShareBand buckets a top-decile share.
func ShareBand(share float64) Band {
	return band(share, ShareLowBelow, ShareHighAbove)
}

// ConcentrationBand buckets a concentration ratio.
func ConcentrationBand(ratio float64) Band {
	return band(ratio, ConcentrationLowBelow, ConcentrationHighAbove)
}

// SpikeThresholdBand buckets a relative spike threshold.
func SpikeThresholdBand(threshold float64) Band {
	return band(threshold, SpikeLowBelow, SpikeHighAbove)
}

func band(v, lowBelow, highAbove float64) Band {
	switch {
	case v < lowBelow:
		return BandLow
	case v > highAbove:
		return BandHigh
	default:
		return BandMedium
	}
}

// DayShape serializes a weekday set as comma-separated ascending indices.
func DayShape(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range normalizeDays(days) {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// Coarsen projects a signature onto ordinal bands. A nil signature
// yields the zero value.
func Coarsen(s *PatternSignature) CoarsePatternSignature {
	if s == nil {
		return CoarsePatternSignature{}
	}
	return CoarsePatternSignature{
		DistributionClass:      s.ObservedDistributionFit,
		ConcentrationBand:      ConcentrationBand(s.ConcentrationRatio),
		DayOfWeekShape:         DayShape(s.DayOfWeekPattern),
		TopPercentileShareBand: ShareBand(s.TopPercentileShare),
		SpikeThresholdBand:     SpikeThresholdBand(s.RelativeSpikeThreshold),
	}
}

// Equal is the single identity rule for signatures. Two signatures match
// when they share the distribution fit, the exact set of active weekdays
// and the top-decile share band, and their spike thresholds differ by at
// most SpikeThresholdTolerance. Nil never matches anything.
func Equal(a, b *PatternSignature) bool {
	if a == nil || b == nil {
		return false
	}
	if a.ObservedDistributionFit != b.ObservedDistributionFit {
		return false
	}
	if !sameDays(a.DayOfWeekPattern, b.DayOfWeekPattern) {
		return false
	}
	if ShareBand(a.TopPercentileShare) != ShareBand(b.TopPercentileShare) {
		return false
	}
	return math.Abs(a.RelativeSpikeThreshold-b.RelativeSpikeThreshold) <= SpikeThresholdTolerance+toleranceSlack
}

func sameDays(a, b []int) bool {
	na, nb := normalizeDays(a), normalizeDays(b)
	if len(na) != len(nb) {
		return false
	}
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

// normalizeDays returns the distinct valid weekdays of days in ascending
// order. Callers may hand in unsorted or duplicated sets.
func normalizeDays(days []int) []int {
	var seen [7]bool
	for _, d := range days {
		if d >= 0 && d < 7 {
			seen[d] = true
		}
	}
	out := make([]int, 0, len(days))
	for d, ok := range seen {
		if ok {
			out = append(out, d)
		}
	}
	return out
}
