package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"streamres/work/mediaid"
	"streamres/work/providers"
	"streamres/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable provider for exercising the merge policy.
type fakeProvider struct {
	name      string
	animeOnly bool
	enabled   bool
	answers   []types.StreamCandidate
	err       error
	panics    bool
	calls     int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Handles(id mediaid.ID) bool {
	if f.animeOnly {
		return id.IsAnime()
	}
	return !id.IsAnime() && id.Kind != mediaid.KindTV
}

func (f *fakeProvider) Enabled(settings types.Settings) bool { return f.enabled }

func (f *fakeProvider) Streams(ctx context.Context, id mediaid.ID, settings types.Settings) ([]types.StreamCandidate, error) {
	f.calls++
	if f.panics {
		panic("provider bug")
	}
	return f.answers, f.err
}

func candidates(urls ...string) []types.StreamCandidate {
	out := make([]types.StreamCandidate, 0, len(urls))
	for _, u := range urls {
		out = append(out, types.StreamCandidate{URL: u})
	}
	return out
}

func mustParse(t *testing.T, raw string) mediaid.ID {
	t.Helper()
	id, err := mediaid.Parse(raw)
	require.NoError(t, err)
	return id
}

func TestPrimaryShortCircuits(t *testing.T) {
	primary := &fakeProvider{name: "cinestream", enabled: true, answers: candidates("https://p.example.com/a")}
	secondary := &fakeProvider{name: "other", enabled: true, answers: candidates("https://s.example.com/b")}

	o := New(primary, []providers.Provider{secondary}, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	require.Len(t, got, 1)
	assert.Equal(t, "https://p.example.com/a", got[0].URL)
	assert.Equal(t, 0, secondary.calls, "non-empty primary answer must not reach secondaries")
}

func TestEmptyPrimaryFallsThrough(t *testing.T) {
	primary := &fakeProvider{name: "cinestream", enabled: true}
	secondary := &fakeProvider{name: "other", enabled: true, answers: candidates("https://s.example.com/b")}

	o := New(primary, []providers.Provider{secondary}, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	require.Len(t, got, 1)
	assert.Equal(t, "https://s.example.com/b", got[0].URL)
	assert.Equal(t, 1, primary.calls)
}

func TestAnimeSkipsPrimary(t *testing.T) {
	primary := &fakeProvider{name: "cinestream", enabled: true, answers: candidates("https://p.example.com/a")}
	haven := &fakeProvider{name: "animehaven", animeOnly: true, enabled: true, answers: candidates("https://h.example.com/1")}
	nexus := &fakeProvider{name: "animenexus", animeOnly: true, enabled: true, answers: candidates("https://n.example.com/1")}

	o := New(primary, []providers.Provider{haven, nexus}, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "kitsu:44042:5"), types.Settings{})
	assert.Equal(t, 0, primary.calls, "anime ids never touch the primary")
	require.Len(t, got, 2)
	// registration order is preserved in the merged list
	assert.Equal(t, "https://h.example.com/1", got[0].URL)
	assert.Equal(t, "https://n.example.com/1", got[1].URL)
}

func TestProviderErrorIsolated(t *testing.T) {
	broken := &fakeProvider{name: "broken", animeOnly: true, enabled: true, err: errors.New("upstream down")}
	healthy := &fakeProvider{name: "healthy", animeOnly: true, enabled: true, answers: candidates("https://ok.example.com/1")}

	o := New(nil, []providers.Provider{broken, healthy}, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "mal:5114:3"), types.Settings{})
	require.Len(t, got, 1)
	assert.Equal(t, "https://ok.example.com/1", got[0].URL)
}

func TestProviderPanicIsolated(t *testing.T) {
	panicky := &fakeProvider{name: "panicky", animeOnly: true, enabled: true, panics: true}
	healthy := &fakeProvider{name: "healthy", animeOnly: true, enabled: true, answers: candidates("https://ok.example.com/1")}

	o := New(nil, []providers.Provider{panicky, healthy}, time.Second, time.Minute)
	defer o.Close()

	var got []types.StreamCandidate
	require.NotPanics(t, func() {
		got = o.Resolve(context.Background(), mustParse(t, "mal:5114:3"), types.Settings{})
	})
	require.Len(t, got, 1)
	assert.Equal(t, "https://ok.example.com/1", got[0].URL)
}

func TestDisabledProviderSkipped(t *testing.T) {
	off := &fakeProvider{name: "off", animeOnly: true, enabled: false, answers: candidates("https://off.example.com/1")}

	o := New(nil, []providers.Provider{off}, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "kitsu:1:1"), types.Settings{})
	assert.Empty(t, got)
	assert.Equal(t, 0, off.calls)
}

func TestSourceLabelRestamped(t *testing.T) {
	p := &fakeProvider{name: "cinestream", enabled: true, answers: []types.StreamCandidate{
		{URL: "https://a.example.com", SourceLabel: ""},
		{URL: "https://b.example.com", SourceLabel: "custom"},
	}}

	o := New(p, nil, time.Second, time.Minute)
	defer o.Close()

	got := o.Resolve(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	require.Len(t, got, 2)
	assert.Equal(t, "cinestream", got[0].SourceLabel)
	assert.Equal(t, "custom", got[1].SourceLabel, "a provider's own label is kept")
}

func TestResponseCacheSuppressesRepeatCalls(t *testing.T) {
	p := &fakeProvider{name: "cinestream", enabled: true, answers: candidates("https://a.example.com")}

	o := New(p, nil, time.Second, time.Minute)
	defer o.Close()

	id := mustParse(t, "tt0111161")
	first := o.Resolve(context.Background(), id, types.Settings{})
	require.Len(t, first, 1)

	// ristretto admits asynchronously; wait until the entry is visible
	require.Eventually(t, func() bool {
		_, found := o.responseCache.Get(id.String())
		return found
	}, time.Second, 5*time.Millisecond)

	second := o.Resolve(context.Background(), id, types.Settings{})
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.calls, "cached answer must not hit the provider again")
}

func TestEmptyResultNotCached(t *testing.T) {
	p := &fakeProvider{name: "cinestream", enabled: true}

	o := New(p, nil, time.Second, time.Minute)
	defer o.Close()

	id := mustParse(t, "tt0111161")
	assert.Empty(t, o.Resolve(context.Background(), id, types.Settings{}))
	assert.Empty(t, o.Resolve(context.Background(), id, types.Settings{}))
	assert.Equal(t, 2, p.calls, "empty answers are retried, not cached")
}
