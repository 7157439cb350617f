package distribution

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observer/internal/signature"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func entriesAt(stamps ...string) []Entry {
	out := make([]Entry, len(stamps))
	for i, s := range stamps {
		out[i] = Entry{ID: fmt.Sprintf("e%d", i), CreatedAt: s, Plaintext: "text"}
	}
	return out
}

func TestComputeWeek(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	end := mustTime(t, "2024-01-07T23:59:59Z")

	entries := entriesAt(
		"2024-01-01T08:00:00Z",
		"2024-01-01T21:30:00Z",
		"2024-01-02T09:00:00Z",
		"2024-01-04T12:00:00Z",
		"2023-12-31T23:59:59Z", // before the window
		"2024-01-08T00:00:00Z", // after the window
		"not a timestamp",
	)

	s := Compute(entries, start, end, 7)
	require.NotNil(t, s)
	require.Len(t, s.DailyCounts, 7)

	assert.Equal(t, signature.DailyCount{Date: "2024-01-01", Count: 2}, s.DailyCounts[0])
	assert.Equal(t, signature.DailyCount{Date: "2024-01-02", Count: 1}, s.DailyCounts[1])
	assert.Equal(t, signature.DailyCount{Date: "2024-01-04", Count: 1}, s.DailyCounts[3])
	assert.Equal(t, "2024-01-07", s.DailyCounts[6].Date)

	assert.InDelta(t, 2.0, s.SpikeRatio, 1e-9)
	assert.InDelta(t, 0.5, s.Top10PercentDaysShare, 1e-9)
	assert.Equal(t, "powerlaw", s.Classification)
}

func TestComputeUsesUTCDays(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	end := mustTime(t, "2024-01-07T23:59:59Z")

	// 23:30 at UTC-05:00 is already the next day in UTC.
	s := Compute(entriesAt("2024-01-01T23:30:00-05:00"), start, end, 7)
	require.NotNil(t, s)
	assert.Equal(t, 0, s.DailyCounts[0].Count)
	assert.Equal(t, 1, s.DailyCounts[1].Count)
}

func TestComputeInvalidWindow(t *testing.T) {
	start := mustTime(t, "2024-01-08T00:00:00Z")
	end := mustTime(t, "2024-01-01T00:00:00Z")

	assert.Nil(t, Compute(nil, start, end, 7))
	assert.Nil(t, Compute(nil, end, start, 0))
}

func TestComputeEmptyWindow(t *testing.T) {
	start := mustTime(t, "2024-01-01T00:00:00Z")
	end := mustTime(t, "2024-01-07T23:59:59Z")

	s := Compute(nil, start, end, 7)
	require.NotNil(t, s)
	assert.Equal(t, "", s.Classification)
	assert.Zero(t, s.SpikeRatio)
	assert.Zero(t, s.Top10PercentDaysShare)

	assert.Nil(t, signature.MakePatternSignature(s.SignatureInput("")))
}

func TestClassify(t *testing.T) {
	even := []int{2, 2, 2, 2, 2, 2, 2}
	assert.Equal(t, "normal", Classify(even))
	assert.InDelta(t, 1.0, SpikeRatio(even), 1e-9)

	skewed := make([]int, 30)
	for i := 0; i < 20; i++ {
		skewed[i] = 1
	}
	skewed[25] = 6
	assert.Equal(t, "lognormal", Classify(skewed))

	assert.Equal(t, "powerlaw", Classify([]int{10, 0, 0, 1, 0, 0, 0}))
	assert.Equal(t, "", Classify([]int{0, 0}))
}

func TestTopShare(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   float64
	}{
		{"empty", nil, 0},
		{"all zero", []int{0, 0, 0}, 0},
		{"single day", []int{4}, 1},
		{"ten days one top", []int{5, 1, 1, 1, 1, 1, 0, 0, 0, 0}, 0.5},
		{"eleven days two top", []int{3, 3, 1, 1, 1, 1, 1, 1, 0, 0, 0}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TopShare(tt.counts, TopFraction), 1e-9)
		})
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}

func TestSignatureInputOverride(t *testing.T) {
	s := &Summary{
		Classification:        "normal",
		SpikeRatio:            1.5,
		Top10PercentDaysShare: 0.2,
		DailyCounts:           []signature.DailyCount{{Date: "2024-01-01", Count: 1}},
	}

	assert.Equal(t, "normal", s.SignatureInput("").DistributionClassification)
	in := s.SignatureInput("lognormal")
	assert.Equal(t, "lognormal", in.DistributionClassification)

	in.DailyCounts[0].Count = 99
	assert.Equal(t, 1, s.DailyCounts[0].Count, "input must not alias the summary")
}
