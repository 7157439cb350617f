package crosslens

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observer/internal/distribution"
	"observer/internal/signature"
)

// weekEntries produces activity on Monday, Wednesday and Friday of the
// week of 2024-01-01: 3, 1 and 1 entries.
func weekEntries() []distribution.Entry {
	stamps := []string{
		"2024-01-01T08:00:00Z",
		"2024-01-01T12:00:00Z",
		"2024-01-01T20:00:00Z",
		"2024-01-03T09:00:00Z",
		"2024-01-05T22:00:00Z",
	}
	out := make([]distribution.Entry, len(stamps))
	for i, s := range stamps {
		out[i] = distribution.Entry{ID: fmt.Sprintf("w%d", i), CreatedAt: s}
	}
	return out
}

func shortArtifact() *Artifact {
	return &Artifact{
		Horizon:     HorizonShort,
		Lens:        "weekly",
		WindowStart: "2024-01-01T00:00:00Z",
		WindowEnd:   "2024-01-07T23:59:59Z",
		WindowDays:  7,
	}
}

// longArtifact carries a 2023 summary with activity on Mondays,
// Wednesdays and Fridays only and a medium top-decile share.
func longArtifact() *Artifact {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var daily []signature.DailyCount
	for i := 0; i < 365; i++ {
		d := start.AddDate(0, 0, i)
		count := 0
		switch d.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
			count = 1
		}
		daily = append(daily, signature.DailyCount{Date: d.Format(signature.DayLayout), Count: count})
	}
	return &Artifact{
		Horizon:     HorizonLong,
		Lens:        "yearly",
		WindowStart: "2023-01-01T00:00:00Z",
		WindowEnd:   "2023-12-31T23:59:59Z",
		WindowDays:  365,
		Distribution: &distribution.Summary{
			Classification:        "powerlaw",
			SpikeRatio:            3,
			Top10PercentDaysShare: 0.55,
			DailyCounts:           daily,
		},
	}
}

func TestOrchestrateMatch(t *testing.T) {
	short, long := shortArtifact(), longArtifact()

	out := Orchestrator{}.Orchestrate(short, long, weekEntries())
	require.False(t, out.Silent(), "silence: %s", out.Silence)
	require.NotNil(t, out.Persistence)

	assert.Equal(t, []string{"weekly", "yearly"}, out.Persistence.Lenses)
	assert.Equal(t, "This pattern appears in Weekly and Yearly.", out.Persistence.Statement)
	assert.Equal(t, []int{1, 3, 5}, out.Persistence.Signature.DayOfWeekPattern)

	require.NotNil(t, out.Short.Persistence)
	require.NotNil(t, out.Long.Persistence)
	assert.Equal(t, out.Short.Persistence, out.Long.Persistence)
	assert.NotSame(t, out.Short.Persistence, out.Long.Persistence)

	require.NotNil(t, out.Short.Debug)
	assert.True(t, out.Short.Debug.Match)
	assert.Empty(t, out.Short.Debug.SilenceReason)
	assert.Equal(t, signature.FitPowerlaw, out.Debug.ShortSignature.Classification)
	assert.InDelta(t, 3.0, out.Debug.ShortSignature.ConcentrationRatio, 1e-9)
	assert.InDelta(t, 3.0, out.Debug.LongSignature.ConcentrationRatio, 1e-9)

	assert.Nil(t, short.Persistence, "inputs are not mutated")
	assert.Nil(t, long.Persistence, "inputs are not mutated")
	assert.Nil(t, short.Debug)
}

func TestOrchestrateSilence(t *testing.T) {
	tests := []struct {
		name    string
		short   func() *Artifact
		long    func() *Artifact
		entries []distribution.Entry
		want    SilenceReason
	}{
		{
			name:    "missing short",
			short:   func() *Artifact { return nil },
			long:    longArtifact,
			entries: weekEntries(),
			want:    SilenceMissingArtifact,
		},
		{
			name:    "missing long",
			short:   shortArtifact,
			long:    func() *Artifact { return nil },
			entries: weekEntries(),
			want:    SilenceMissingArtifact,
		},
		{
			name: "swapped horizons",
			short: func() *Artifact {
				a := shortArtifact()
				a.Horizon = HorizonLong
				return a
			},
			long:    longArtifact,
			entries: weekEntries(),
			want:    SilenceInvalidHorizons,
		},
		{
			name:  "no long distribution",
			short: shortArtifact,
			long: func() *Artifact {
				a := longArtifact()
				a.Distribution = nil
				return a
			},
			entries: weekEntries(),
			want:    SilenceMissingDistribution,
		},
		{
			name:    "no short entries or summary",
			short:   shortArtifact,
			long:    longArtifact,
			entries: nil,
			want:    SilenceMissingDistribution,
		},
		{
			name: "unparseable short window",
			short: func() *Artifact {
				a := shortArtifact()
				a.WindowStart = "monday"
				return a
			},
			long:    longArtifact,
			entries: weekEntries(),
			want:    SilenceMissingDistribution,
		},
		{
			name:    "empty short window",
			short:   shortArtifact,
			long:    longArtifact,
			entries: []distribution.Entry{},
			want:    SilenceNoSignatures,
		},
		{
			name:  "different weekdays",
			short: shortArtifact,
			long:  longArtifact,
			entries: []distribution.Entry{
				{ID: "a", CreatedAt: "2024-01-02T10:00:00Z"},
			},
			want: SilenceNoMatch,
		},
		{
			name:  "overlapping windows",
			short: shortArtifact,
			long: func() *Artifact {
				a := longArtifact()
				a.WindowEnd = "2024-01-03T00:00:00Z"
				return a
			},
			entries: weekEntries(),
			want:    SilenceNoMatch,
		},
		{
			name:  "same lens",
			short: shortArtifact,
			long: func() *Artifact {
				a := longArtifact()
				a.Lens = "weekly"
				return a
			},
			entries: weekEntries(),
			want:    SilenceNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Orchestrator{}.Orchestrate(tt.short(), tt.long(), tt.entries)
			assert.True(t, out.Silent())
			assert.Equal(t, tt.want, out.Silence)
			assert.Equal(t, tt.want, out.Debug.SilenceReason)
			assert.False(t, out.Debug.Match)
			assert.Nil(t, out.Persistence)
			assert.Nil(t, out.Short.Persistence)
			assert.Nil(t, out.Long.Persistence)
		})
	}
}

func TestOrchestrateSilenceReplacesStaleDebug(t *testing.T) {
	stale := &Debug{Match: true, CacheKey: "old"}
	short := shortArtifact()
	short.Debug = stale
	long := longArtifact()
	long.Distribution = nil
	long.Debug = stale

	out := Orchestrator{}.Orchestrate(short, long, weekEntries())
	require.Equal(t, SilenceMissingDistribution, out.Silence)

	for _, a := range []Artifact{out.Short, out.Long} {
		require.NotNil(t, a.Debug)
		assert.False(t, a.Debug.Match)
		assert.Equal(t, SilenceMissingDistribution, a.Debug.SilenceReason)
		assert.Empty(t, a.Debug.CacheKey)
	}
	assert.True(t, stale.Match, "input debug is not modified")

	out = Orchestrator{}.Orchestrate(short, nil, weekEntries())
	require.NotNil(t, out.Short.Debug)
	assert.Equal(t, SilenceMissingArtifact, out.Short.Debug.SilenceReason)
	assert.Nil(t, out.Long.Debug)
}

func TestOrchestrateRecordsSignaturesOnNoMatch(t *testing.T) {
	entries := []distribution.Entry{{ID: "a", CreatedAt: "2024-01-02T10:00:00Z"}}

	out := Orchestrator{}.Orchestrate(shortArtifact(), longArtifact(), entries)
	require.Equal(t, SilenceNoMatch, out.Silence)
	assert.NotNil(t, out.Debug.ShortSignature)
	assert.NotNil(t, out.Debug.LongSignature)
}

func TestOrchestrateFallsBackToShortSummary(t *testing.T) {
	short := shortArtifact()
	short.Distribution = distribution.Compute(weekEntries(),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC), 7)

	out := Orchestrator{}.Orchestrate(short, longArtifact(), nil)
	assert.False(t, out.Silent(), "silence: %s", out.Silence)
}

func TestOrchestrateClassificationOverride(t *testing.T) {
	long := longArtifact()
	long.Classification = "normal"

	out := Orchestrator{}.Orchestrate(shortArtifact(), long, weekEntries())
	assert.Equal(t, SilenceNoMatch, out.Silence)
	assert.Equal(t, signature.FitNormal, out.Debug.LongSignature.Classification)
}

func TestOrchestrateCustomCompute(t *testing.T) {
	var gotDays int
	o := Orchestrator{
		Compute: func(entries []distribution.Entry, start, end time.Time, windowDays int) *distribution.Summary {
			gotDays = windowDays
			return nil
		},
	}

	out := o.Orchestrate(shortArtifact(), longArtifact(), weekEntries())
	assert.Equal(t, 7, gotDays)
	assert.Equal(t, SilenceMissingDistribution, out.Silence)
}

func TestHorizon(t *testing.T) {
	assert.True(t, HorizonShort.Valid())
	assert.False(t, Horizon("medium").Valid())
	assert.Equal(t, HorizonLong, HorizonShort.Other())
	assert.Equal(t, HorizonShort, HorizonLong.Other())
}
