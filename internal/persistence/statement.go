package persistence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// StatementForm selects which fixed sentence template is rendered.
type StatementForm int

const (
	// FormNamed names both lenses: "This pattern appears in Weekly and Yearly."
	FormNamed StatementForm = iota
	// FormLiteral is the fixed sentence for the weekly/yearly pairing. It
	// ignores the result's lenses, so only use it for that pair.
	FormLiteral
)

// LiteralStatement is the sentence rendered under FormLiteral.
const LiteralStatement = "This pattern appears in both Weekly and Yearly views."

// ParseStatementForm maps the configuration spelling to a form.
func ParseStatementForm(s string) (StatementForm, bool) {
	switch s {
	case "", "named":
		return FormNamed, true
	case "literal":
		return FormLiteral, true
	default:
		return FormNamed, false
	}
}

// DefaultDisplayNames maps the built-in lenses to their display names.
var DefaultDisplayNames = map[string]string{
	"weekly":  "Weekly",
	"monthly": "Monthly",
	"yearly":  "Yearly",
}

// Statements renders persistence statements. The zero value uses FormNamed
// and DefaultDisplayNames.
type Statements struct {
	Form         StatementForm
	DisplayNames map[string]string
}

// ToPersistenceStatement renders r with the zero-value Statements.
func ToPersistenceStatement(r *Result) *string {
	return Statements{}.Render(r)
}

// Render returns the single sentence for r, or nil when r is nil or does
// not name exactly two lenses. The sentence carries no dates, counts or
// judgement; identical results always render identically.
func (s Statements) Render(r *Result) *string {
	if r == nil || len(r.Lenses) != 2 {
		return nil
	}

	var out string
	if s.Form == FormLiteral {
		out = LiteralStatement
	} else {
		out = "This pattern appears in " + s.DisplayName(r.Lenses[0]) + " and " + s.DisplayName(r.Lenses[1]) + "."
	}
	return &out
}

// DisplayName returns the presentation name of a lens. Lenses without a
// configured name are shown with their first letter upper-cased.
func (s Statements) DisplayName(lens string) string {
	names := s.DisplayNames
	if names == nil {
		names = DefaultDisplayNames
	}
	if name, ok := names[lens]; ok {
		return name
	}
	if name, ok := DefaultDisplayNames[lens]; ok {
		return name
	}
	return titleCase(lens)
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
