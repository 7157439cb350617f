package pairing

import (
	"sync"
	"time"

	"observer/internal/crosslens"
	"observer/internal/distribution"
	"observer/internal/logging"
	"observer/internal/metrics"
)

// Cache pairs artifacts stored under the same key. Every store, lookup
// and comparison runs under one mutex, so two callers submitting the two
// halves of a key concurrently always produce exactly one comparison
// that sees both.
type Cache struct {
	mu           sync.Mutex
	store        Store
	orchestrator crosslens.Orchestrator
	lastIdentity string

	logger  *logging.Logger
	metrics *metrics.ObserverMetrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore replaces the default MemoryStore.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// WithOrchestrator sets the orchestrator run when both halves are present.
func WithOrchestrator(o crosslens.Orchestrator) Option {
	return func(c *Cache) { c.orchestrator = o }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func WithMetrics(m *metrics.ObserverMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.logger = c.logger.WithComponent("pairing")
	return c
}

// Store upserts the slot for h under key, leaving the other horizon's
// slot untouched. It reports false when h is not a known horizon.
func (c *Cache) Store(key Key, h crosslens.Horizon, a crosslens.Artifact, entries []distribution.Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(key, h, a, entries)
}

// Lookup returns the caller's artifact for h with pairing telemetry in
// its Debug. When both halves are present the orchestrator runs; on a
// match the caller's slot is overwritten with the persistence-attached
// artifact, which is returned. The bool is false when no artifact is
// stored for h.
func (c *Cache) Lookup(key Key, h crosslens.Horizon) (crosslens.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(key, h)
}

// Submit resets the cache if key's identity differs from the last one
// seen, stores a under h and looks it up, as one atomic step.
func (c *Cache) Submit(key Key, h crosslens.Horizon, a crosslens.Artifact, entries []distribution.Entry) (crosslens.Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked(key.Identity)
	if !c.storeLocked(key, h, a, entries) {
		return a, false
	}
	return c.lookupLocked(key, h)
}

// SetOrchestrator replaces the orchestrator used by later comparisons.
// Claims already attached to stored artifacts are kept.
func (c *Cache) SetOrchestrator(o crosslens.Orchestrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orchestrator = o
}

// ResetIfIdentityChanged clears the whole cache when identity differs
// from the last identity seen and reports whether it did.
func (c *Cache) ResetIfIdentityChanged(identity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(identity)
}

// Forget drops every entry stored for identity.
func (c *Cache) Forget(identity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.ClearByIdentity(identity)
	c.metrics.SetCachedKeys(c.store.Len())
	return n
}

// Len returns the number of keys held.
func (c *Cache) Len() int {
	return c.store.Len()
}

func (c *Cache) resetLocked(identity string) bool {
	identity = normalizeIdentity(identity)
	if identity == c.lastIdentity {
		return false
	}
	c.lastIdentity = identity
	c.store.Clear()
	c.metrics.RecordReset()
	c.metrics.SetCachedKeys(0)
	c.logger.Debug("identity changed, cache cleared")
	return true
}

func (c *Cache) storeLocked(key Key, h crosslens.Horizon, a crosslens.Artifact, entries []distribution.Entry) bool {
	if !h.Valid() {
		c.logger.Warn("store rejected", "cache_key", key.Digest(), "horizon", string(h))
		return false
	}
	key.Identity = normalizeIdentity(key.Identity)

	e, _ := c.store.Get(key)
	e.set(h, &Slot{Artifact: a.Clone(), Entries: entries})
	c.store.Put(key, e)
	c.metrics.SetCachedKeys(c.store.Len())

	c.logger.Debug("slot stored", "cache_key", key.Digest(), "horizon", string(h), "lens", a.Lens)
	return true
}

func (c *Cache) lookupLocked(key Key, h crosslens.Horizon) (crosslens.Artifact, bool) {
	key.Identity = normalizeIdentity(key.Identity)
	e, _ := c.store.Get(key)

	own := e.Slot(h)
	debug := crosslens.Debug{
		CacheKey:     key.String(),
		ShortInCache: e.Short != nil,
		LongInCache:  e.Long != nil,
	}

	if e.Short == nil || e.Long == nil {
		debug.SilenceReason = crosslens.SilenceMissingArtifact
		state := metrics.LookupPartial
		if own == nil {
			state = metrics.LookupMissing
		}
		c.metrics.RecordLookup(state)
		c.logger.Debug("lookup incomplete", "cache_key", key.Digest(), "horizon", string(h),
			"short_in_cache", debug.ShortInCache, "long_in_cache", debug.LongInCache)

		if own == nil {
			return crosslens.Artifact{Horizon: h, Debug: &debug}, false
		}
		out := own.Artifact.Clone()
		out.Persistence = nil
		out.Debug = &debug
		return out, true
	}

	started := time.Now()
	outcome := c.orchestrator.Orchestrate(&e.Short.Artifact, &e.Long.Artifact, e.Short.Entries)
	c.metrics.RecordOutcome(string(outcome.Silence), time.Since(started))

	debug.ShortSignature = outcome.Debug.ShortSignature
	debug.LongSignature = outcome.Debug.LongSignature
	debug.Match = outcome.Debug.Match
	debug.SilenceReason = outcome.Debug.SilenceReason

	out := outcome.Short
	if h == crosslens.HorizonLong {
		out = outcome.Long
	}
	out.Debug = &debug

	if outcome.Silent() {
		c.metrics.RecordLookup(metrics.LookupSilent)
		c.logger.Debug("pair compared without match", "cache_key", key.Digest(),
			"horizon", string(h), "reason", string(outcome.Silence))
		return out, true
	}

	c.metrics.RecordLookup(metrics.LookupMatched)
	e.set(h, &Slot{Artifact: out.Clone(), Entries: own.Entries})
	c.store.Put(key, e)
	c.logger.Debug("persistence attached", "cache_key", key.Digest(), "horizon", string(h))
	return out, true
}
