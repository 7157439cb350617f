package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"observer/internal/config"
	"observer/internal/crosslens"
	"observer/internal/distribution"
	"observer/internal/pairing"
	"observer/internal/schemavalidation"
)

// maxRequestBytes bounds one request line.
const maxRequestBytes = 16 << 20

// serveRequest is one line read by serve. Op is "submit" (the default)
// or "forget".
type serveRequest struct {
	Op          string               `json:"op,omitempty"`
	Identity    string               `json:"identity"`
	Fingerprint string               `json:"fingerprint"`
	Artifact    *crosslens.Artifact  `json:"artifact,omitempty"`
	Entries     []distribution.Entry `json:"entries,omitempty"`
}

type serveResponse struct {
	Artifact  *crosslens.Artifact `json:"artifact,omitempty"`
	Forgotten *int                `json:"forgotten,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// cmdServe keeps one pairing cache for the life of the process, answering
// each request line on stdin with one response line on stdout until EOF.
// When a config file is in use, edits to it swap the cache's detection
// policy and statement form without dropping stored artifacts.
func (a *app) cmdServe(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: observer serve", errUsage)
	}

	cache := a.newCache(a.cfg)

	if a.configPath != "" && fileExists(a.configPath) {
		loader := config.NewLoader(a.configPath)
		if _, err := loader.Load(); err != nil {
			return err
		}
		loader.OnChange(func(_, cfg *config.Config) {
			cache.SetOrchestrator(orchestratorFor(cfg))
			a.log.Info("config reloaded",
				"unparseable_dates", cfg.Engine.UnparseableDates,
				"statement_form", cfg.Engine.StatementForm)
		})
		if err := loader.Watch(); err != nil {
			return err
		}
		defer loader.Close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case err := <-loader.Errors():
					a.log.Warn("config reload failed", "error", err)
				case <-done:
					return
				}
			}
		}()
	}

	a.log.Info("serving", "config", a.configPath)

	scanner := bufio.NewScanner(a.stdin)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(a.stdout)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := enc.Encode(a.handle(cache, line)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}
	return nil
}

func (a *app) handle(cache *pairing.Cache, line []byte) serveResponse {
	var req serveRequest
	if err := schemavalidation.Decode(schemavalidation.KindRequest, line, &req); err != nil {
		a.log.Warn("request rejected", "error", err)
		return serveResponse{Error: err.Error()}
	}

	if req.Op == "forget" {
		n := cache.Forget(req.Identity)
		a.log.Info("identity forgotten", "keys", n)
		return serveResponse{Forgotten: &n}
	}

	key := pairing.NewKey(req.Identity, req.Fingerprint)
	out, ok := cache.Submit(key, req.Artifact.Horizon, *req.Artifact, req.Entries)
	if !ok {
		return serveResponse{Error: fmt.Sprintf("unknown horizon %q", req.Artifact.Horizon)}
	}
	return serveResponse{Artifact: &out}
}
