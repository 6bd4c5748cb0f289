package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamres/work/client"
	"streamres/work/mediaid"
	"streamres/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) mediaid.ID {
	t.Helper()
	id, err := mediaid.Parse(raw)
	require.NoError(t, err)
	return id
}

func TestCineStreamRequestShape(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"streams":[{"url":"https://cdn.example.com/movie.mp4","title":"1080p"}]}`))
	}))
	defer srv.Close()

	p := NewCineStream(client.New(100), srv.URL, true)
	got, err := p.Streams(context.Background(),
		mustParse(t, "tt0903747:5:14"),
		types.Settings{"tmdbApiKey": "k123"})
	require.NoError(t, err)

	assert.Equal(t, "/api/streams/tt0903747", gotPath)
	assert.Contains(t, gotQuery, "ns=imdb")
	assert.Contains(t, gotQuery, "season=5")
	assert.Contains(t, gotQuery, "episode=14")
	assert.Contains(t, gotQuery, "tmdb_key=k123")

	require.Len(t, got, 1)
	assert.Equal(t, "CineStream", got[0].SourceLabel)
	assert.Equal(t, "1080p", got[0].Title)
}

func TestCineStreamHandles(t *testing.T) {
	p := NewCineStream(client.New(100), "http://up.example.com", true)
	assert.True(t, p.Handles(mustParse(t, "tt0111161")))
	assert.True(t, p.Handles(mustParse(t, "tmdb:603")))
	assert.False(t, p.Handles(mustParse(t, "kitsu:1:1")))
	assert.False(t, p.Handles(mustParse(t, "tv:Rai 1")))
}

func TestEnabledFlagPrecedence(t *testing.T) {
	p := NewCineStream(client.New(100), "http://up.example.com", true)
	assert.True(t, p.Enabled(types.Settings{}))
	assert.False(t, p.Enabled(types.Settings{"cineStreamEnabled": "false"}))

	// no base URL means disabled no matter what settings say
	unconfigured := NewCineStream(client.New(100), "", true)
	assert.False(t, unconfigured.Enabled(types.Settings{"cineStreamEnabled": "true"}))
}

func TestAnimeProviderRequestShape(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"streams":[{"url":"https://cdn.example.com/ep5.mp4","quality":"720p"}]}`))
	}))
	defer srv.Close()

	p := NewAnimeHaven(client.New(100), srv.URL, true)
	got, err := p.Streams(context.Background(),
		mustParse(t, "kitsu:44042:5"),
		types.Settings{"animeLanguage": "it"})
	require.NoError(t, err)

	assert.Equal(t, "/api/anime/kitsu/44042/5", gotPath)
	assert.Equal(t, "lang=it", gotQuery)

	require.Len(t, got, 1)
	assert.Equal(t, "AnimeHaven", got[0].SourceLabel)
	assert.Equal(t, "720p", got[0].Title, "quality backfills a missing title")
}

func TestAnimeProviderWholeEntryDefaultsToEpisodeOne(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"streams":[]}`))
	}))
	defer srv.Close()

	p := NewAnimeNexus(client.New(100), srv.URL, true)
	_, err := p.Streams(context.Background(), mustParse(t, "mal:5114"), types.Settings{})
	require.NoError(t, err)
	assert.Equal(t, "/api/anime/mal/5114/1", gotPath)
}

func TestNotFoundMeansNotCarried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := NewCineStream(client.New(100), srv.URL, true)
	got, err := p.Streams(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	assert.NoError(t, err, "404 is an answer, not a failure")
	assert.Empty(t, got)
}

func TestServerErrorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewCineStream(client.New(100), srv.URL, true)
	_, err := p.Streams(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	assert.Error(t, err)
}

func TestMalformedPayloadIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not json</html>"))
	}))
	defer srv.Close()

	p := NewCineStream(client.New(100), srv.URL, true)
	_, err := p.Streams(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	assert.Error(t, err)
}

func TestEmptyURLEntriesDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"streams":[{"url":"","title":"broken"},{"url":"https://ok.example.com/a.mp4","title":"ok"}]}`))
	}))
	defer srv.Close()

	p := NewCineStream(client.New(100), srv.URL, true)
	got, err := p.Streams(context.Background(), mustParse(t, "tt0111161"), types.Settings{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Title)
}
