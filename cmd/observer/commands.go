package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"observer/internal/config"
	"observer/internal/crosslens"
	"observer/internal/distribution"
	"observer/internal/health"
	"observer/internal/journal"
	"observer/internal/pairing"
	"observer/internal/persistence"
	"observer/internal/schemavalidation"
	"observer/internal/signature"
)

// journalArg in place of an artifact file builds that artifact from the
// journal using the configured lens.
const journalArg = "-"

func (a *app) cmdSignature(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: observer signature <input.json>", errUsage)
	}
	var in signature.Input
	if err := readDoc(args[0], schemavalidation.KindInput, &in); err != nil {
		return err
	}

	sig := signature.MakePatternSignature(in)
	out := struct {
		Signature *signature.PatternSignature     `json:"signature"`
		Coarse    *signature.CoarsePatternSignature `json:"coarse"`
	}{Signature: sig}
	if sig != nil {
		c := signature.Coarsen(sig)
		out.Coarse = &c
	}
	return a.writeJSON(out)
}

func (a *app) cmdDetect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: observer detect <windows.json>", errUsage)
	}
	var windows []persistence.Window
	if err := readDoc(args[0], schemavalidation.KindWindows, &windows); err != nil {
		return err
	}

	started := time.Now()
	det := persistence.Detector{Unparseable: a.cfg.UnparseablePolicy()}
	result := det.Detect(windows)
	statement := a.cfg.Statements().Render(result)

	reason := ""
	if result == nil {
		reason = string(crosslens.SilenceNoMatch)
	}
	a.metrics.RecordOutcome(reason, time.Since(started))
	a.log.Info("detection finished", "windows", len(windows), "match", result != nil,
		"unparseable_dates", det.Unparseable.String())

	return a.writeJSON(struct {
		Result    *persistence.Result `json:"result"`
		Statement *string             `json:"statement"`
	}{result, statement})
}

func (a *app) cmdPair(args []string) error {
	fs := flag.NewFlagSet("pair", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	identity := fs.String("identity", "", "data owner identity")
	fingerprint := fs.String("fingerprint", "", "dataset fingerprint (default: journal fingerprint)")
	entriesPath := fs.String("entries", "", "JSON file with the short window's source entries")
	shortStart := fs.String("short-start", "", "start day of a journal-built short window (YYYY-MM-DD)")
	longStart := fs.String("long-start", "", "start day of a journal-built long window (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: observer pair [flags] <short.json|-> <long.json|->", errUsage)
	}
	shortArg, longArg := fs.Arg(0), fs.Arg(1)

	var j *journal.Journal
	if shortArg == journalArg || longArg == journalArg || fileExists(a.cfg.Journal.Path) {
		var err error
		if j, err = journal.Open(a.cfg.Journal.Path); err != nil {
			return err
		}
		defer j.Close()
	}

	short, err := a.loadArtifact(shortArg, crosslens.HorizonShort, *shortStart, j)
	if err != nil {
		return err
	}
	long, err := a.loadArtifact(longArg, crosslens.HorizonLong, *longStart, j)
	if err != nil {
		return err
	}

	entries, err := a.shortEntries(*entriesPath, short, j)
	if err != nil {
		return err
	}

	fp := *fingerprint
	if fp == "" && j != nil {
		if fp, err = j.Fingerprint(); err != nil {
			return err
		}
	}

	cache := a.newCache(a.cfg)
	key := pairing.NewKey(*identity, fp)

	cache.Submit(key, crosslens.HorizonShort, *short, entries)
	longOut, _ := cache.Submit(key, crosslens.HorizonLong, *long, nil)
	// The short half was stored before the long one existed; look it up
	// again so both carry the same outcome.
	shortOut, _ := cache.Lookup(key, crosslens.HorizonShort)

	a.log.Info("pairing finished", "cache_key", key.Digest(),
		"match", longOut.Persistence != nil, "entries", len(entries))

	return a.writeJSON(struct {
		Short crosslens.Artifact `json:"short"`
		Long  crosslens.Artifact `json:"long"`
	}{shortOut, longOut})
}

// newCache builds a pairing cache whose orchestrator follows cfg.
func (a *app) newCache(cfg *config.Config) *pairing.Cache {
	return pairing.New(
		pairing.WithOrchestrator(orchestratorFor(cfg)),
		pairing.WithLogger(a.log),
		pairing.WithMetrics(a.metrics),
	)
}

func orchestratorFor(cfg *config.Config) crosslens.Orchestrator {
	return crosslens.Orchestrator{
		Detector:   persistence.Detector{Unparseable: cfg.UnparseablePolicy()},
		Statements: cfg.Statements(),
	}
}

func (a *app) loadArtifact(arg string, h crosslens.Horizon, start string, j *journal.Journal) (*crosslens.Artifact, error) {
	if arg != journalArg {
		var art crosslens.Artifact
		if err := readDoc(arg, schemavalidation.KindArtifact, &art); err != nil {
			return nil, err
		}
		return &art, nil
	}

	day, ok := signature.ParseDay(start)
	if !ok {
		return nil, fmt.Errorf("%w: -%s-start YYYY-MM-DD is required when reading the %s artifact from the journal", errUsage, h, h)
	}
	lens, days := a.cfg.Lenses.Short, a.cfg.Lenses.ShortDays
	if h == crosslens.HorizonLong {
		lens, days = a.cfg.Lenses.Long, a.cfg.Lenses.LongDays
	}
	end := day.AddDate(0, 0, days).Add(-time.Second)

	art := &crosslens.Artifact{
		Horizon:     h,
		Lens:        lens,
		WindowStart: day.Format(time.RFC3339),
		WindowEnd:   end.Format(time.RFC3339),
		WindowDays:  days,
	}
	if h == crosslens.HorizonLong {
		entries, err := j.EntriesBetween(day, end)
		if err != nil {
			return nil, err
		}
		art.Distribution = distribution.Compute(entries, day, end, days)
	}
	return art, nil
}

// shortEntries returns the short window's source entries from -entries
// or the journal. nil means the artifact's own summary is used.
func (a *app) shortEntries(path string, short *crosslens.Artifact, j *journal.Journal) ([]distribution.Entry, error) {
	if path != "" {
		var entries []distribution.Entry
		if err := readDoc(path, schemavalidation.KindEntries, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}
	if j == nil {
		return nil, nil
	}
	start, err := time.Parse(time.RFC3339Nano, short.WindowStart)
	if err != nil {
		return nil, nil
	}
	end, err := time.Parse(time.RFC3339Nano, short.WindowEnd)
	if err != nil {
		return nil, nil
	}
	return j.EntriesBetween(start, end)
}

func (a *app) cmdImport(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: observer import <entries.json>", errUsage)
	}
	var entries []distribution.Entry
	if err := readDoc(args[0], schemavalidation.KindEntries, &entries); err != nil {
		return err
	}

	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	if err := j.InsertAll(entries); err != nil {
		return err
	}
	a.log.Info("entries imported", "count", len(entries))
	return a.printJournal(j)
}

func (a *app) cmdRemove(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: observer remove <id>...", errUsage)
	}
	if !fileExists(a.cfg.Journal.Path) {
		return fmt.Errorf("no journal at %s", a.cfg.Journal.Path)
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()

	// Every id must exist before anything is deleted.
	removed := make([]distribution.Entry, 0, len(args))
	for _, id := range args {
		e, err := j.Get(id)
		if err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
		e.Plaintext = ""
		removed = append(removed, e)
	}
	for _, e := range removed {
		if err := j.Delete(e.ID); err != nil {
			return fmt.Errorf("remove %s: %w", e.ID, err)
		}
	}
	a.log.Info("entries removed", "count", len(removed))

	fp, err := j.Fingerprint()
	if err != nil {
		return err
	}
	n, err := j.Count()
	if err != nil {
		return err
	}
	return a.writeJSON(struct {
		Removed     []distribution.Entry `json:"removed"`
		Fingerprint string               `json:"fingerprint"`
		Entries     int64                `json:"entries"`
	}{removed, fp, n})
}

func (a *app) cmdFingerprint(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: observer fingerprint", errUsage)
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer j.Close()
	return a.printJournal(j)
}

// errUnhealthy makes the health command exit non-zero after printing its
// report.
var errUnhealthy = errors.New("unhealthy")

func (a *app) cmdHealth(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: observer health", errUsage)
	}

	checker := health.NewChecker()
	checker.RegisterFunc("config", true, health.CustomCheck(a.cfg.Validate))
	checker.RegisterFunc("schemas", true, health.CustomCheck(schemavalidation.Check))
	if fileExists(a.cfg.Journal.Path) {
		j, err := journal.Open(a.cfg.Journal.Path)
		if err != nil {
			checker.RegisterFunc("journal", false, health.CustomCheck(func() error { return err }))
		} else {
			defer j.Close()
			checker.RegisterFunc("journal", false, health.DatabaseCheck(j))
		}
	} else {
		checker.RegisterFunc("journal", false, func(context.Context) health.CheckResult {
			return health.CheckResult{
				Status:  health.StatusDegraded,
				Message: "journal not created yet",
			}
		})
	}

	report := checker.Report(ctx)
	a.log.Info("health checked", "status", string(report.Status), "components", checker.Names())
	if err := a.writeJSON(report); err != nil {
		return err
	}
	if report.Status == health.StatusUnhealthy {
		return errUnhealthy
	}
	return nil
}

func (a *app) printJournal(j *journal.Journal) error {
	fp, err := j.Fingerprint()
	if err != nil {
		return err
	}
	n, err := j.Count()
	if err != nil {
		return err
	}
	return a.writeJSON(struct {
		Fingerprint string `json:"fingerprint"`
		Entries     int64  `json:"entries"`
	}{fp, n})
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readDoc(path string, kind schemavalidation.Kind, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := schemavalidation.Decode(kind, data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
