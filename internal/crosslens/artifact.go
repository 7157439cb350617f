// Package crosslens pairs a short-window artifact with a long-window
// artifact and attaches a persistence claim to both when, and only when,
// the same activity pattern shows up in each.
package crosslens

import (
	"observer/internal/distribution"
	"observer/internal/signature"
)

// Horizon tags which half of a pairing an artifact is.
type Horizon string

const (
	HorizonShort Horizon = "short"
	HorizonLong  Horizon = "long"
)

// Valid reports whether h is a known horizon.
func (h Horizon) Valid() bool {
	return h == HorizonShort || h == HorizonLong
}

// Other returns the opposite horizon.
func (h Horizon) Other() Horizon {
	if h == HorizonShort {
		return HorizonLong
	}
	return HorizonShort
}

// Artifact is one lens's computed view over an identity's entries, as
// produced by the presentation layer.
type Artifact struct {
	Horizon     Horizon `json:"horizon"`
	Lens        string  `json:"lens"`
	WindowStart string  `json:"windowStart"`
	WindowEnd   string  `json:"windowEnd"`

	// WindowDays is the fixed length of the window in days.
	WindowDays int `json:"windowDays"`

	// Distribution is the pre-computed summary. Long-window artifacts are
	// expected to carry one; short-window summaries are recomputed from
	// source entries when those are supplied.
	Distribution *distribution.Summary `json:"distribution,omitempty"`

	// Classification optionally overrides Distribution.Classification.
	Classification string `json:"classification,omitempty"`

	Persistence *Persistence `json:"persistence"`
	Debug       *Debug       `json:"debug,omitempty"`
}

// Persistence is the claim attached to both artifacts of a matched pair.
type Persistence struct {
	Signature    *signature.PatternSignature `json:"signature"`
	Lenses       []string                    `json:"lenses"`
	WindowStarts []string                    `json:"windowStarts"`
	WindowEnds   []string                    `json:"windowEnds"`
	Statement    string                      `json:"statement"`
}

// CompactSignature is the part of a signature recorded in telemetry.
type CompactSignature struct {
	Classification     signature.DistributionFit `json:"classification"`
	ConcentrationRatio float64                   `json:"concentrationRatio"`
}

// Debug is the telemetry attached to artifacts handed back to callers.
type Debug struct {
	CacheKey       string            `json:"cacheKey,omitempty"`
	ShortInCache   bool              `json:"shortInCache"`
	LongInCache    bool              `json:"longInCache"`
	ShortSignature *CompactSignature `json:"shortSignature"`
	LongSignature  *CompactSignature `json:"longSignature"`
	Match          bool              `json:"match"`
	SilenceReason  SilenceReason     `json:"silenceReason,omitempty"`
}

// SilenceReason says why no claim was made.
type SilenceReason string

const (
	SilenceMissingArtifact     SilenceReason = "Missing artifact"
	SilenceInvalidHorizons     SilenceReason = "Invalid horizons"
	SilenceMissingDistribution SilenceReason = "Missing distribution data"
	SilenceNoSignatures        SilenceReason = "Failed to compute signatures"
	SilenceNoMatch             SilenceReason = "No pattern match detected"
	SilenceNoStatement         SilenceReason = "Failed to generate statement"
)

func compact(s *signature.PatternSignature) *CompactSignature {
	if s == nil {
		return nil
	}
	return &CompactSignature{
		Classification:     s.ObservedDistributionFit,
		ConcentrationRatio: s.ConcentrationRatio,
	}
}

// Clone returns a copy of a that shares no mutable state with it, except
// the Distribution summary, which is never modified after creation.
func (a Artifact) Clone() Artifact {
	out := a
	out.Persistence = a.Persistence.clone()
	if a.Debug != nil {
		d := a.Debug.clone()
		out.Debug = &d
	}
	return out
}

func (p *Persistence) clone() *Persistence {
	if p == nil {
		return nil
	}
	out := *p
	out.Lenses = append([]string(nil), p.Lenses...)
	out.WindowStarts = append([]string(nil), p.WindowStarts...)
	out.WindowEnds = append([]string(nil), p.WindowEnds...)
	if p.Signature != nil {
		sig := *p.Signature
		sig.DayOfWeekPattern = append([]int(nil), p.Signature.DayOfWeekPattern...)
		out.Signature = &sig
	}
	return &out
}

func (d Debug) clone() Debug {
	out := d
	if d.ShortSignature != nil {
		s := *d.ShortSignature
		out.ShortSignature = &s
	}
	if d.LongSignature != nil {
		l := *d.LongSignature
		out.LongSignature = &l
	}
	return out
}
