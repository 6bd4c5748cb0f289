package tvcache

import (
	"context"
	"encoding/json"
	"os"
	"sync/atomic"
	"time"

	"streamres/work/logger"
	"streamres/work/metrics"
	"streamres/work/parser"
	"streamres/work/resolvercli"

	"github.com/google/renameio/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Resolver is the narrow capability the cache needs from the external
// channel resolver. The production implementation shells out to a binary
// (resolvercli.Client); tests substitute an in-process fake. Keeping the
// interface this small means the transport can change without touching any
// cache logic.
type Resolver interface {
	ResolveOne(ctx context.Context, name string) (string, error)
	DumpAll(ctx context.Context) ([]resolvercli.ChannelLink, error)
}

// Cache maps live TV channel names to externally resolved playable URLs.
//
// Freshness is tracked cache-wide: the timestamp marks the last successful
// bulk refresh, not per-entry insertion. Exceeding the threshold never
// invalidates entries; stale links keep being served while a background
// refresh runs. At most one refresh is in flight at any time; concurrent
// triggers collapse into that one and return immediately.
//
// The link map is swapped wholesale on refresh through an atomic pointer, so
// readers always observe either the complete previous map or the complete
// new one, never a half-built mix.
type Cache struct {
	links     atomic.Pointer[xsync.MapOf[string, []string]]
	timestamp atomic.Int64 // ms epoch of the last successful refresh, 0 = never
	updating  atomic.Bool  // single-flight refresh guard

	resolver       Resolver
	picker         *parser.VariantPicker // optional, nil disables variant selection
	pool           *ants.Pool            // optional, nil falls back to bare goroutines
	path           string
	ttl            time.Duration
	resolveTimeout time.Duration
	dumpTimeout    time.Duration

	sf       singleflight.Group // dedups concurrent single-name resolves
	stopChan chan struct{}
	started  atomic.Bool
}

// snapshotFile is the durable JSON shape: a cache-wide timestamp plus the
// full link table.
type snapshotFile struct {
	Timestamp int64                `json:"timestamp"`
	Links     map[string]linkValue `json:"links"`
}

// linkValue serializes a single URL as a bare string and multiple URLs as an
// array, matching what the resolver dump itself emits.
type linkValue []string

func (lv linkValue) MarshalJSON() ([]byte, error) {
	if len(lv) == 1 {
		return json.Marshal(lv[0])
	}
	return json.Marshal([]string(lv))
}

func (lv *linkValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*lv = linkValue{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*lv = linkValue(many)
	return nil
}

// New creates a cache bound to its resolver, durable file path and
// freshness threshold. The pool and picker may be nil.
func New(resolver Resolver, path string, ttl, resolveTimeout, dumpTimeout time.Duration, pool *ants.Pool, picker *parser.VariantPicker) *Cache {
	c := &Cache{
		resolver:       resolver,
		picker:         picker,
		pool:           pool,
		path:           path,
		ttl:            ttl,
		resolveTimeout: resolveTimeout,
		dumpTimeout:    dumpTimeout,
		stopChan:       make(chan struct{}),
	}
	c.links.Store(xsync.NewMapOf[string, []string]())
	return c
}

// Load reads the durable snapshot from disk, if one exists. A missing or
// corrupt file leaves the cache empty; the scheduled refresh rebuilds it.
func (c *Cache) Load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("{tvcache - Load} failed to read cache file %s: %v", c.path, err)
		}
		return
	}

	var snapshot snapshotFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.Warn("{tvcache - Load} cache file %s is corrupt, starting empty: %v", c.path, err)
		return
	}

	fresh := xsync.NewMapOf[string, []string]()
	for name, urls := range snapshot.Links {
		if name != "" && len(urls) > 0 {
			fresh.Store(name, urls)
		}
	}
	c.links.Store(fresh)
	c.timestamp.Store(snapshot.Timestamp)

	logger.Info("{tvcache - Load} loaded %d channel links from %s (age %s)", fresh.Size(), c.path, c.Age().Round(time.Second))
}

// Resolve returns the cached URL for a channel name, the first one when a
// channel has several mirrors. When the cache is stale or has never been
// populated it kicks off a background refresh without waiting for it, so the
// caller still gets an immediate answer: the cached value, or "" when there
// is none yet.
func (c *Cache) Resolve(name string) string {
	if c.Stale() {
		c.triggerRefresh()
	}

	urls, ok := c.links.Load().Load(name)
	if !ok || len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// ResolveAll returns every cached URL for a channel name.
func (c *Cache) ResolveAll(name string) []string {
	urls, _ := c.links.Load().Load(name)
	return urls
}

// ResolveUncached synchronously resolves a single channel name through the
// external resolver. It exists for the cold-start window when the cache has
// never been populated; it must not become the steady-state path because
// every call costs a subprocess spawn. The result is inserted into the
// in-memory map opportunistically but not persisted. Concurrent calls for
// the same name collapse into one resolver invocation.
func (c *Cache) ResolveUncached(ctx context.Context, name string) string {
	result, err, _ := c.sf.Do(name, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
		defer cancel()

		link, err := c.resolver.ResolveOne(callCtx, name)
		if err != nil {
			return "", err
		}
		if c.picker != nil {
			link = c.picker.BestVariant(callCtx, link)
		}
		return link, nil
	})
	if err != nil {
		logger.Debug("{tvcache - ResolveUncached} resolve failed for %q: %v", name, err)
		return ""
	}

	link := result.(string)
	if link != "" {
		c.links.Load().Store(name, []string{link})
	}
	return link
}

// Refresh performs a bulk refresh: one resolver dump, an atomic swap of the
// whole link map, a timestamp update and a persist to disk. It returns false
// and leaves the previous cache fully intact on any failure, including when
// another refresh is already in flight.
func (c *Cache) Refresh() bool {
	if !c.updating.CompareAndSwap(false, true) {
		metrics.CacheRefreshes.WithLabelValues("inflight").Inc()
		return false
	}
	defer c.updating.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), c.dumpTimeout)
	defer cancel()

	started := time.Now()
	dump, err := c.resolver.DumpAll(ctx)
	if err != nil {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		logger.Warn("{tvcache - Refresh} resolver dump failed, keeping previous cache: %v", err)
		return false
	}
	if len(dump) == 0 {
		metrics.CacheRefreshes.WithLabelValues("error").Inc()
		logger.Warn("{tvcache - Refresh} resolver dump returned no channels, keeping previous cache")
		return false
	}

	fresh := xsync.NewMapOf[string, []string]()
	for _, link := range dump {
		fresh.Store(link.Name, link.URLs)
	}

	c.links.Store(fresh)
	c.timestamp.Store(time.Now().UnixMilli())
	metrics.CacheRefreshes.WithLabelValues("ok").Inc()
	metrics.CacheAge.Set(0)

	logger.Info("{tvcache - Refresh} refreshed %d channel links in %s", fresh.Size(), time.Since(started).Round(time.Millisecond))

	if err := c.persist(); err != nil {
		// the in-memory cache stays authoritative; the next scheduled
		// refresh retries the write
		logger.Error("{tvcache - Refresh} failed to persist cache to %s: %v", c.path, err)
	}
	return true
}

// triggerRefresh starts a refresh in the background unless one is already in
// flight. The fast-path check keeps request handling from queuing duplicate
// pool tasks; Refresh itself re-checks under compare-and-swap so a race here
// only costs a no-op task.
func (c *Cache) triggerRefresh() {
	if c.updating.Load() {
		return
	}

	task := func() { c.Refresh() }
	if c.pool != nil {
		if err := c.pool.Submit(task); err == nil {
			return
		}
	}
	go task()
}

// persist writes the snapshot through a temp file and an atomic rename so a
// crash mid-write never leaves a truncated cache file behind.
func (c *Cache) persist() error {
	current := c.links.Load()
	snapshot := snapshotFile{
		Timestamp: c.timestamp.Load(),
		Links:     make(map[string]linkValue, current.Size()),
	}
	current.Range(func(name string, urls []string) bool {
		snapshot.Links[name] = linkValue(urls)
		return true
	})

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(c.path, data, 0644)
}

// Stale reports whether the cache-wide timestamp is past the freshness
// threshold. A never-populated cache is always stale.
func (c *Cache) Stale() bool {
	ts := c.timestamp.Load()
	if ts == 0 {
		return true
	}
	return time.Since(time.UnixMilli(ts)) > c.ttl
}

// Populated reports whether the cache holds any links at all, loaded from
// disk or fetched since startup.
func (c *Cache) Populated() bool {
	return c.links.Load().Size() > 0
}

// Age returns the time elapsed since the last successful refresh, or a very
// large value when no refresh ever succeeded.
func (c *Cache) Age() time.Duration {
	ts := c.timestamp.Load()
	if ts == 0 {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(time.UnixMilli(ts))
}

// Len returns the number of cached channels.
func (c *Cache) Len() int {
	return c.links.Load().Size()
}

// Start launches the refresh scheduler: one refresh a few seconds after
// startup so initialization is never blocked on the resolver, then one per
// freshness interval. Start is idempotent.
func (c *Cache) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		startup := time.NewTimer(5 * time.Second)
		defer startup.Stop()

		select {
		case <-startup.C:
			c.triggerRefresh()
		case <-c.stopChan:
			return
		}

		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics.CacheAge.Set(c.Age().Seconds())
				c.triggerRefresh()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop terminates the refresh scheduler. An in-flight refresh is allowed to
// finish; only future scheduling stops.
func (c *Cache) Stop() {
	if c.started.CompareAndSwap(true, false) {
		close(c.stopChan)
	}
}
