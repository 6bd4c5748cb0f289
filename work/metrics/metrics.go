package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderRequests counts upstream provider calls by provider name and
// outcome ("ok", "empty", "error"). Provider failures are isolated and never
// surface to clients, so this counter is the only place they stay visible.
var ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamres_provider_requests_total",
	Help: "Number of upstream provider requests by outcome",
}, []string{"provider", "outcome"})

// ProviderCandidates counts stream candidates returned per provider.
var ProviderCandidates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamres_provider_candidates_total",
	Help: "Number of stream candidates returned by providers",
}, []string{"provider"})

// CacheRefreshes counts TV link cache refresh attempts by outcome
// ("ok", "error", "inflight").
var CacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamres_cache_refresh_total",
	Help: "Number of TV link cache refresh attempts",
}, []string{"outcome"})

// CacheAge exposes the age of the TV link cache in seconds. A steadily
// climbing value past the refresh interval means the resolver keeps failing.
var CacheAge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "streamres_cache_age_seconds",
	Help: "Age of the TV link cache since its last successful refresh",
})

// ConfigDecodes counts config segment decodes by the stage that succeeded
// ("json", "urlencoded", "base64", or "none" when every stage failed).
var ConfigDecodes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamres_config_decode_total",
	Help: "Number of config segment decode attempts by winning stage",
}, []string{"stage"})

// StreamRequests counts stream endpoint requests by content namespace.
var StreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "streamres_stream_requests_total",
	Help: "Number of stream resolution requests by content id namespace",
}, []string{"namespace"})
