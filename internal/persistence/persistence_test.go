package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observer/internal/signature"
)

func testSignature() *signature.PatternSignature {
	return &signature.PatternSignature{
		ObservedDistributionFit: signature.FitLognormal,
		ConcentrationRatio:      2.2,
		DayOfWeekPattern:        []int{1, 2, 4},
		TopPercentileShare:      0.42,
		RelativeSpikeThreshold:  signature.DefaultSpikeThreshold,
	}
}

func weekly(sig *signature.PatternSignature) Window {
	return Window{
		Lens:        "weekly",
		WindowStart: "2024-01-01T00:00:00Z",
		WindowEnd:   "2024-01-08T00:00:00Z",
		Signature:   sig,
	}
}

func yearly(sig *signature.PatternSignature) Window {
	return Window{
		Lens:        "yearly",
		WindowStart: "2023-01-01T00:00:00Z",
		WindowEnd:   "2023-12-31T23:59:59Z",
		Signature:   sig,
	}
}

func TestDetectMatchingPair(t *testing.T) {
	sig := testSignature()
	res := Detect([]Window{weekly(sig), yearly(sig)})
	require.NotNil(t, res)

	assert.Equal(t, []string{"weekly", "yearly"}, res.Lenses)
	assert.Equal(t, []string{"2024-01-01T00:00:00Z", "2023-01-01T00:00:00Z"}, res.WindowStarts)
	assert.Equal(t, []string{"2024-01-08T00:00:00Z", "2023-12-31T23:59:59Z"}, res.WindowEnds)
	assert.Same(t, sig, res.Signature)

	stmt := ToPersistenceStatement(res)
	require.NotNil(t, stmt)
	assert.Equal(t, "This pattern appears in Weekly and Yearly.", *stmt)
}

func TestDetectIndependentOfInputOrder(t *testing.T) {
	sig := testSignature()
	forward := Detect([]Window{weekly(sig), yearly(sig)})
	reverse := Detect([]Window{yearly(sig), weekly(sig)})
	require.NotNil(t, forward)
	assert.Equal(t, forward, reverse)
}

func TestDetectOverlappingWindows(t *testing.T) {
	sig := testSignature()
	y := yearly(sig)
	y.WindowStart = "2024-01-05T00:00:00Z"
	y.WindowEnd = "2024-12-31T23:59:59Z"

	assert.Nil(t, Detect([]Window{weekly(sig), y}))
}

func TestDetectTouchingBoundsOverlap(t *testing.T) {
	sig := testSignature()
	y := yearly(sig)
	y.WindowStart = "2023-01-01T00:00:00Z"
	y.WindowEnd = "2024-01-01T00:00:00Z"

	assert.Nil(t, Detect([]Window{weekly(sig), y}), "a shared instant is an overlap")
}

func TestDetectSameLens(t *testing.T) {
	sig := testSignature()
	other := weekly(sig)
	other.WindowStart = "2023-06-01T00:00:00Z"
	other.WindowEnd = "2023-06-08T00:00:00Z"

	assert.Nil(t, Detect([]Window{weekly(sig), other}))
}

func TestDetectTooFewSignatures(t *testing.T) {
	sig := testSignature()
	tests := []struct {
		name    string
		windows []Window
	}{
		{"empty", nil},
		{"single window", []Window{weekly(sig)}},
		{"one signatured", []Window{weekly(sig), yearly(nil)}},
		{"none signatured", []Window{weekly(nil), yearly(nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Detect(tt.windows))
		})
	}
}

func TestDetectSignatureMismatch(t *testing.T) {
	other := testSignature()
	other.ObservedDistributionFit = signature.FitPowerlaw

	assert.Nil(t, Detect([]Window{weekly(testSignature()), yearly(other)}))
}

func TestDetectUnparseablePolicy(t *testing.T) {
	sig := testSignature()
	broken := yearly(sig)
	broken.WindowStart = "last year"

	windows := []Window{weekly(sig), broken}

	assert.NotNil(t, Detector{Unparseable: FailOpen}.Detect(windows))
	assert.Nil(t, Detector{Unparseable: FailSafe}.Detect(windows))
}

func TestDetectDeterministicTieBreak(t *testing.T) {
	low := testSignature()
	high := testSignature()
	high.ConcentrationRatio = 2.9

	monthly := Window{
		Lens:        "monthly",
		WindowStart: "2022-03-01T00:00:00Z",
		WindowEnd:   "2022-03-31T23:59:59Z",
		Signature:   low,
	}

	a := []Window{weekly(high), yearly(high), monthly}
	b := []Window{monthly, yearly(high), weekly(high)}

	ra, rb := Detect(a), Detect(b)
	require.NotNil(t, ra)
	assert.Equal(t, ra, rb)
	assert.Equal(t, "monthly", ra.Lenses[0])
	assert.Same(t, low, ra.Signature)
}

func TestParsePolicies(t *testing.T) {
	p, ok := ParseUnparseablePolicy("fail-safe")
	assert.True(t, ok)
	assert.Equal(t, FailSafe, p)
	assert.Equal(t, "fail-safe", p.String())

	_, ok = ParseUnparseablePolicy("maybe")
	assert.False(t, ok)

	f, ok := ParseStatementForm("literal")
	assert.True(t, ok)
	assert.Equal(t, FormLiteral, f)
}

func TestStatement(t *testing.T) {
	res := &Result{
		Signature:    testSignature(),
		Lenses:       []string{"weekly", "yearly"},
		WindowStarts: []string{"a", "b"},
		WindowEnds:   []string{"c", "d"},
	}

	assert.Nil(t, ToPersistenceStatement(nil))
	assert.Nil(t, ToPersistenceStatement(&Result{Lenses: []string{"weekly"}}))
	assert.Nil(t, ToPersistenceStatement(&Result{Lenses: []string{"weekly", "monthly", "yearly"}}))

	first := ToPersistenceStatement(res)
	second := ToPersistenceStatement(res)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Equal(t, "This pattern appears in Weekly and Yearly.", *first)

	literal := Statements{Form: FormLiteral}.Render(res)
	require.NotNil(t, literal)
	assert.Equal(t, LiteralStatement, *literal)
}

func TestDisplayName(t *testing.T) {
	s := Statements{DisplayNames: map[string]string{"weekly": "This Week"}}
	assert.Equal(t, "This Week", s.DisplayName("weekly"))
	assert.Equal(t, "Yearly", s.DisplayName("yearly"))
	assert.Equal(t, "Quarterly", s.DisplayName("quarterly"))
	assert.Equal(t, "", s.DisplayName(""))
}
