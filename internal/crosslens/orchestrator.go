package crosslens

import (
	"time"

	"observer/internal/distribution"
	"observer/internal/persistence"
	"observer/internal/signature"
)

// ComputeFunc computes the distribution of entries over a window.
type ComputeFunc func(entries []distribution.Entry, start, end time.Time, windowDays int) *distribution.Summary

// Orchestrator runs extraction, detection and statement rendering for one
// short/long artifact pair. The zero value is ready to use.
type Orchestrator struct {
	Detector   persistence.Detector
	Statements persistence.Statements

	// Compute defaults to distribution.Compute.
	Compute ComputeFunc
}

// Outcome is the result of one orchestration. When Silence is empty both
// artifacts carry the same Persistence; otherwise neither carries one.
type Outcome struct {
	Short       Artifact
	Long        Artifact
	Persistence *Persistence
	Debug       Debug
	Silence     SilenceReason
}

// Silent reports whether no claim was made.
func (o Outcome) Silent() bool {
	return o.Silence != ""
}

// Orchestrate pairs short and long. shortEntries are the source entries
// of the short window; the short summary is recomputed from them, and
// only falls back to short.Distribution when no entries are supplied.
// Neither input is modified.
func (o Orchestrator) Orchestrate(short, long *Artifact, shortEntries []distribution.Entry) Outcome {
	if short == nil || long == nil {
		out := Outcome{Silence: SilenceMissingArtifact}
		if short != nil {
			out.Short = short.Clone()
			out.Short.Persistence = nil
		}
		if long != nil {
			out.Long = long.Clone()
			out.Long.Persistence = nil
		}
		out = o.silence(out, nil, nil)
		if short == nil {
			out.Short.Debug = nil
		}
		if long == nil {
			out.Long.Debug = nil
		}
		return out
	}

	out := Outcome{Short: short.Clone(), Long: long.Clone()}
	out.Short.Persistence, out.Long.Persistence = nil, nil

	if short.Horizon != HorizonShort || long.Horizon != HorizonLong {
		out.Silence = SilenceInvalidHorizons
		return o.silence(out, nil, nil)
	}

	shortSummary := o.shortSummary(short, shortEntries)
	longSummary := long.Distribution
	if shortSummary == nil || longSummary == nil {
		out.Silence = SilenceMissingDistribution
		return o.silence(out, nil, nil)
	}

	shortSig := signature.MakePatternSignature(shortSummary.SignatureInput(short.Classification))
	longSig := signature.MakePatternSignature(longSummary.SignatureInput(long.Classification))
	if shortSig == nil || longSig == nil {
		out.Silence = SilenceNoSignatures
		return o.silence(out, shortSig, longSig)
	}

	result := o.Detector.Detect([]persistence.Window{
		{Lens: short.Lens, WindowStart: short.WindowStart, WindowEnd: short.WindowEnd, Signature: shortSig},
		{Lens: long.Lens, WindowStart: long.WindowStart, WindowEnd: long.WindowEnd, Signature: longSig},
	})
	if result == nil {
		out.Silence = SilenceNoMatch
		return o.silence(out, shortSig, longSig)
	}

	stmt := o.Statements.Render(result)
	if stmt == nil {
		out.Silence = SilenceNoStatement
		return o.silence(out, shortSig, longSig)
	}

	p := &Persistence{
		Signature:    result.Signature,
		Lenses:       result.Lenses,
		WindowStarts: result.WindowStarts,
		WindowEnds:   result.WindowEnds,
		Statement:    *stmt,
	}
	out.Persistence = p
	out.Debug = Debug{
		ShortSignature: compact(shortSig),
		LongSignature:  compact(longSig),
		Match:          true,
	}
	out.Short.Persistence = p.clone()
	out.Long.Persistence = p.clone()
	out.Short.Debug = debugPtr(out.Debug)
	out.Long.Debug = debugPtr(out.Debug)
	return out
}

func (o Orchestrator) shortSummary(short *Artifact, entries []distribution.Entry) *distribution.Summary {
	if entries == nil {
		return short.Distribution
	}
	start, err := time.Parse(time.RFC3339Nano, short.WindowStart)
	if err != nil {
		return nil
	}
	end, err := time.Parse(time.RFC3339Nano, short.WindowEnd)
	if err != nil {
		return nil
	}
	compute := o.Compute
	if compute == nil {
		compute = distribution.Compute
	}
	return compute(entries, start, end, short.WindowDays)
}

func (o Orchestrator) silence(out Outcome, shortSig, longSig *signature.PatternSignature) Outcome {
	out.Debug = Debug{
		ShortSignature: compact(shortSig),
		LongSignature:  compact(longSig),
		SilenceReason:  out.Silence,
	}
	out.Short.Debug = debugPtr(out.Debug)
	out.Long.Debug = debugPtr(out.Debug)
	return out
}

func debugPtr(d Debug) *Debug {
	c := d.clone()
	return &c
}
