package signature

import "cmp"

// Compare is a total order over signatures, field by field: fit, weekday
// set, share band, spike threshold, concentration ratio, raw share.
// Nil sorts before any signature.
func Compare(a, b *PatternSignature) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if c := cmp.Compare(a.ObservedDistributionFit.rank(), b.ObservedDistributionFit.rank()); c != 0 {
		return c
	}
	if c := compareDays(normalizeDays(a.DayOfWeekPattern), normalizeDays(b.DayOfWeekPattern)); c != 0 {
		return c
	}
	if c := cmp.Compare(ShareBand(a.TopPercentileShare).rank(), ShareBand(b.TopPercentileShare).rank()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.RelativeSpikeThreshold, b.RelativeSpikeThreshold); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ConcentrationRatio, b.ConcentrationRatio); c != 0 {
		return c
	}
	return cmp.Compare(a.TopPercentileShare, b.TopPercentileShare)
}

func compareDays(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
