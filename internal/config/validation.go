package config

import (
	"fmt"
	"strings"

	"observer/internal/persistence"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Fields returns the names of the offending fields.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// ValidateConfig checks every section and returns ValidationErrors when
// any field is invalid.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateEngine(&c.Engine)...)
	errs = append(errs, validateLenses(&c.Lenses)...)
	errs = append(errs, validateStatementLenses(&c.Engine, &c.Lenses)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if c.Journal.Path == "" {
		errs = append(errs, ValidationError{Field: "journal.path", Message: "path is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateEngine(e *EngineConfig) ValidationErrors {
	var errs ValidationErrors
	if _, ok := persistence.ParseUnparseablePolicy(e.UnparseableDates); !ok {
		errs = append(errs, ValidationError{
			Field:   "engine.unparseable_dates",
			Message: fmt.Sprintf("invalid policy: %s (valid: fail-open, fail-safe)", e.UnparseableDates),
		})
	}
	if _, ok := persistence.ParseStatementForm(e.StatementForm); !ok {
		errs = append(errs, ValidationError{
			Field:   "engine.statement_form",
			Message: fmt.Sprintf("invalid statement form: %s (valid: named, literal)", e.StatementForm),
		})
	}
	return errs
}

// validateStatementLenses rejects the literal statement for any pairing
// other than weekly/yearly, since its sentence names those two views.
func validateStatementLenses(e *EngineConfig, l *LensesConfig) ValidationErrors {
	form, ok := persistence.ParseStatementForm(e.StatementForm)
	if !ok || form != persistence.FormLiteral {
		return nil
	}
	if l.Short == "weekly" && l.Long == "yearly" {
		return nil
	}
	return ValidationErrors{{
		Field:   "engine.statement_form",
		Message: fmt.Sprintf("literal form requires lenses weekly and yearly, got %s and %s", l.Short, l.Long),
	}}
}

func validateLenses(l *LensesConfig) ValidationErrors {
	var errs ValidationErrors

	if l.Short == "" {
		errs = append(errs, ValidationError{Field: "lenses.short", Message: "lens name is required"})
	}
	if l.Long == "" {
		errs = append(errs, ValidationError{Field: "lenses.long", Message: "lens name is required"})
	}
	if l.Short != "" && l.Short == l.Long {
		errs = append(errs, ValidationError{
			Field:   "lenses.long",
			Message: "short and long lenses must differ",
		})
	}
	if l.ShortDays < 1 {
		errs = append(errs, ValidationError{Field: "lenses.short_days", Message: "must be at least 1"})
	}
	if l.LongDays <= l.ShortDays {
		errs = append(errs, ValidationError{
			Field:   "lenses.long_days",
			Message: fmt.Sprintf("must exceed short_days (%d)", l.ShortDays),
		})
	}
	for lens, name := range l.DisplayNames {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, ValidationError{
				Field:   "lenses.display_names." + lens,
				Message: "display name cannot be empty",
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	return errs
}
