// Package persistence decides whether one activity pattern recurs across
// two different lenses over non-overlapping windows, and renders the one
// sentence that may be said about it.
package persistence

import (
	"cmp"
	"time"

	"observer/internal/signature"
)

// Window is one lens's view: its bounds (RFC 3339) and its signature,
// which is nil when the window had insufficient data.
type Window struct {
	Lens        string                      `json:"lens"`
	WindowStart string                      `json:"windowStart"`
	WindowEnd   string                      `json:"windowEnd"`
	Signature   *signature.PatternSignature `json:"signature"`
}

// Result is a successful detection. It always names exactly two
// distinct lenses whose windows do not overlap.
type Result struct {
	Signature    *signature.PatternSignature `json:"signature"`
	Lenses       []string                    `json:"lenses"`
	WindowStarts []string                    `json:"windowStarts"`
	WindowEnds   []string                    `json:"windowEnds"`
}

// UnparseablePolicy decides how a window bound that is not a valid
// RFC 3339 instant takes part in the overlap test.
type UnparseablePolicy int

const (
	// FailOpen treats a pair with an unparseable bound as not
	// overlapping, so the pair may still produce a claim.
	FailOpen UnparseablePolicy = iota
	// FailSafe treats such a pair as overlapping and excludes it.
	FailSafe
)

// String returns the configuration spelling of the policy.
func (p UnparseablePolicy) String() string {
	if p == FailSafe {
		return "fail-safe"
	}
	return "fail-open"
}

// ParseUnparseablePolicy maps the configuration spelling to a policy.
func ParseUnparseablePolicy(s string) (UnparseablePolicy, bool) {
	switch s {
	case "", "fail-open":
		return FailOpen, true
	case "fail-safe":
		return FailSafe, true
	default:
		return FailOpen, false
	}
}

// Detector finds persistent patterns. The zero value uses FailOpen.
type Detector struct {
	Unparseable UnparseablePolicy
}

// Detect runs a zero-value Detector.
func Detect(windows []Window) *Result {
	return Detector{}.Detect(windows)
}

type bounds struct {
	start, end time.Time
	ok         bool
}

type candidate struct {
	a, b Window
}

// Detect returns the persistent pattern across windows, or nil when no
// claim can be made. A claim needs two signatured windows from different
// lenses that do not overlap and whose signatures are Equal. When several
// pairs qualify the same one is chosen regardless of input order.
func (d Detector) Detect(windows []Window) *Result {
	if len(windows) < 2 {
		return nil
	}

	signed := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Signature != nil {
			signed = append(signed, w)
		}
	}
	if len(signed) < 2 {
		return nil
	}

	var best *candidate
	for i := 0; i < len(signed); i++ {
		for j := i + 1; j < len(signed); j++ {
			a, b := signed[i], signed[j]
			if a.Lens == b.Lens {
				continue
			}
			if d.Overlaps(a, b) {
				continue
			}
			if !signature.Equal(a.Signature, b.Signature) {
				continue
			}
			if b.Lens < a.Lens {
				a, b = b, a
			}
			c := candidate{a: a, b: b}
			if best == nil || compareCandidates(c, *best) < 0 {
				best = &c
			}
		}
	}
	if best == nil {
		return nil
	}

	return &Result{
		Signature:    best.a.Signature,
		Lenses:       []string{best.a.Lens, best.b.Lens},
		WindowStarts: []string{best.a.WindowStart, best.b.WindowStart},
		WindowEnds:   []string{best.a.WindowEnd, best.b.WindowEnd},
	}
}

// Overlaps reports whether two windows share any instant. Bounds are
// inclusive.
func (d Detector) Overlaps(a, b Window) bool {
	ba, bb := parseBounds(a), parseBounds(b)
	if !ba.ok || !bb.ok {
		return d.Unparseable == FailSafe
	}
	return !ba.start.After(bb.end) && !bb.start.After(ba.end)
}

func parseBounds(w Window) bounds {
	start, err := time.Parse(time.RFC3339Nano, w.WindowStart)
	if err != nil {
		return bounds{}
	}
	end, err := time.Parse(time.RFC3339Nano, w.WindowEnd)
	if err != nil {
		return bounds{}
	}
	return bounds{start: start, end: end, ok: true}
}

func compareCandidates(x, y candidate) int {
	if c := signature.Compare(x.a.Signature, y.a.Signature); c != 0 {
		return c
	}
	if c := signature.Compare(x.b.Signature, y.b.Signature); c != 0 {
		return c
	}
	if c := cmp.Compare(x.a.Lens, y.a.Lens); c != 0 {
		return c
	}
	if c := cmp.Compare(x.b.Lens, y.b.Lens); c != 0 {
		return c
	}
	if c := compareInstants(x.a.WindowStart, y.a.WindowStart); c != 0 {
		return c
	}
	if c := compareInstants(x.b.WindowStart, y.b.WindowStart); c != 0 {
		return c
	}
	if c := compareInstants(x.a.WindowEnd, y.a.WindowEnd); c != 0 {
		return c
	}
	return compareInstants(x.b.WindowEnd, y.b.WindowEnd)
}

// compareInstants orders parseable instants chronologically, before any
// unparseable value; unparseable values fall back to byte order.
func compareInstants(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	switch {
	case errA == nil && errB == nil:
		if c := ta.Compare(tb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
