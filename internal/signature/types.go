// Package signature extracts compact structural fingerprints of how
// journaling activity is distributed across a time window, and decides
// whether two fingerprints describe the same pattern.
package signature

// DistributionFit is the observed shape of per-day activity.
type DistributionFit string

const (
	FitNormal    DistributionFit = "normal"
	FitLognormal DistributionFit = "lognormal"
	FitPowerlaw  DistributionFit = "powerlaw"
)

// rank gives each fit a fixed position in the total order used for
// tie-breaking. Unknown fits sort last.
func (f DistributionFit) rank() int {
	switch f {
	case FitNormal:
		return 0
	case FitLognormal:
		return 1
	case FitPowerlaw:
		return 2
	default:
		return 3
	}
}

// Valid reports whether f is one of the known fits.
func (f DistributionFit) Valid() bool {
	return f.rank() < 3
}

// DefaultSpikeThreshold is the multiplier over a typical day that counts
// as a spike when the caller does not supply one.
const DefaultSpikeThreshold = 2.0

// PatternSignature is the continuous fingerprint of one window.
type PatternSignature struct {
	ObservedDistributionFit DistributionFit `json:"observedDistributionFit"`

	// ConcentrationRatio is peak-day activity over typical-day activity.
	ConcentrationRatio float64 `json:"concentrationRatio"`

	// DayOfWeekPattern holds the weekday indices (0 = Sunday) that saw any
	// activity, sorted ascending and without duplicates.
	DayOfWeekPattern []int `json:"dayOfWeekPattern"`

	// TopPercentileShare is the share of total activity held by the
	// busiest 10% of days.
	TopPercentileShare float64 `json:"topPercentileShare"`

	RelativeSpikeThreshold float64 `json:"relativeSpikeThreshold"`
}

// DailyCount is the activity total for one calendar day (YYYY-MM-DD).
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Input is everything the extractor needs from a distribution summary.
type Input struct {
	DistributionClassification string       `json:"distributionClassification"`
	SpikeRatio                 float64      `json:"spikeRatio"`
	Top10PercentDaysShare      float64      `json:"top10PercentDaysShare"`
	DailyCounts                []DailyCount `json:"dailyCounts"`
	SpikeThreshold             *float64     `json:"spikeThreshold,omitempty"`
}

// Band is an ordinal bucket substituted for a raw value.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

func (b Band) rank() int {
	switch b {
	case BandLow:
		return 0
	case BandMedium:
		return 1
	default:
		return 2
	}
}

// CoarsePatternSignature is the ordinal projection of a PatternSignature.
type CoarsePatternSignature struct {
	DistributionClass      DistributionFit `json:"distributionClass"`
	ConcentrationBand      Band            `json:"concentrationBand"`
	DayOfWeekShape         string          `json:"dayOfWeekShape"`
	TopPercentileShareBand Band            `json:"topPercentileShareBand"`
	SpikeThresholdBand     Band            `json:"spikeThresholdBand"`
}
