package orchestrator

import (
	"context"
	"time"

	"streamres/work/logger"
	"streamres/work/mediaid"
	"streamres/work/metrics"
	"streamres/work/providers"
	"streamres/work/types"

	"github.com/dgraph-io/ristretto/v2"
)

// Orchestrator sequences calls to the upstream stream providers for one
// content id and merges the results.
//
// Policy: for movie/series ids the primary provider is consulted first and a
// non-empty answer short-circuits everything else; only an empty primary
// answer falls through to the secondaries, queried one after another in
// registration order. Anime ids skip the primary entirely. Every provider
// call is isolated — an error or panic from one provider contributes zero
// candidates, gets logged and counted, and never prevents the remaining
// providers from being collected or escapes to the caller.
type Orchestrator struct {
	primary       providers.Provider
	secondaries   []providers.Provider
	callTimeout   time.Duration
	responseCache *ristretto.Cache[string, []types.StreamCandidate]
	cacheTTL      time.Duration
}

// New creates an orchestrator over the registered providers. Secondary
// order is fixed at construction and preserved in merged results. The
// response cache keeps recent non-empty answers so a client hammering the
// same title (players retry stream lists aggressively) does not multiply
// upstream calls.
func New(primary providers.Provider, secondaries []providers.Provider, callTimeout, cacheTTL time.Duration) *Orchestrator {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []types.StreamCandidate]{
		NumCounters: 10_000,
		MaxCost:     5_000,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	return &Orchestrator{
		primary:       primary,
		secondaries:   secondaries,
		callTimeout:   callTimeout,
		responseCache: cache,
		cacheTTL:      cacheTTL,
	}
}

// Resolve returns the merged, source-labeled candidate list for a content
// id. The result is possibly empty and never accompanied by an error: every
// upstream failure has already been absorbed and logged by the time this
// returns.
func (o *Orchestrator) Resolve(ctx context.Context, id mediaid.ID, settings types.Settings) []types.StreamCandidate {
	cacheKey := id.String()
	if cached, found := o.responseCache.Get(cacheKey); found {
		return cached
	}

	var merged []types.StreamCandidate

	if !id.IsAnime() && o.primary != nil && o.primary.Handles(id) && o.primary.Enabled(settings) {
		merged = o.callProvider(ctx, o.primary, id, settings)
		if len(merged) > 0 {
			o.cacheResult(cacheKey, merged)
			return merged
		}
	}

	// secondaries run sequentially in registration order, never raced, so
	// the merged list is deterministic for a given set of provider answers
	for _, p := range o.secondaries {
		if !p.Handles(id) || !p.Enabled(settings) {
			continue
		}
		merged = append(merged, o.callProvider(ctx, p, id, settings)...)
	}

	if len(merged) > 0 {
		o.cacheResult(cacheKey, merged)
	}
	return merged
}

// Close releases the response cache.
func (o *Orchestrator) Close() {
	o.responseCache.Close()
}

// cacheResult stores a non-empty answer with the configured TTL.
func (o *Orchestrator) cacheResult(key string, candidates []types.StreamCandidate) {
	o.responseCache.SetWithTTL(key, candidates, int64(len(candidates)), o.cacheTTL)
}

// callProvider runs one provider call under a timeout with full isolation:
// errors and panics both collapse to an empty contribution.
func (o *Orchestrator) callProvider(ctx context.Context, p providers.Provider, id mediaid.ID, settings types.Settings) (result []types.StreamCandidate) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ProviderRequests.WithLabelValues(p.Name(), "error").Inc()
			logger.Error("{orchestrator - callProvider} provider %s panicked for %s: %v", p.Name(), id.String(), rec)
			result = nil
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	candidates, err := p.Streams(callCtx, id, settings)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(p.Name(), "error").Inc()
		logger.Warn("{orchestrator - callProvider} provider %s failed for %s: %v", p.Name(), id.String(), err)
		return nil
	}

	// re-stamp the label so a provider forgetting to tag its own
	// candidates still merges with correct display precedence
	for i := range candidates {
		if candidates[i].SourceLabel == "" {
			candidates[i].SourceLabel = p.Name()
		}
	}

	if len(candidates) == 0 {
		metrics.ProviderRequests.WithLabelValues(p.Name(), "empty").Inc()
		return nil
	}

	metrics.ProviderRequests.WithLabelValues(p.Name(), "ok").Inc()
	metrics.ProviderCandidates.WithLabelValues(p.Name()).Add(float64(len(candidates)))
	return candidates
}
