package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"streamres/work/assembler"
	"streamres/work/channels"
	"streamres/work/config"
	"streamres/work/decoder"
	"streamres/work/logger"
	"streamres/work/mediaid"
	"streamres/work/metrics"
	"streamres/work/orchestrator"
	"streamres/work/settings"
	"streamres/work/types"
	"streamres/work/utils"

	"github.com/gorilla/mux"
)

// App bundles the services the HTTP surface needs. Handlers only sequence
// calls into these; resolution logic lives in the services themselves.
type App struct {
	Cfg          *config.Config
	Store        *settings.Store
	Orchestrator *orchestrator.Orchestrator
	Assembler    *assembler.Assembler
	Registry     *channels.Registry
	Version      string
}

// manifest is the addon descriptor served to clients.
type manifest struct {
	ID          string         `json:"id"`
	Version     string         `json:"version"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Resources   []string       `json:"resources"`
	Types       []string       `json:"types"`
	IDPrefixes  []string       `json:"idPrefixes"`
	Catalogs    []catalogEntry `json:"catalogs"`
	Behavior    behaviorHints  `json:"behaviorHints"`
}

type catalogEntry struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Extra []catalogExtra `json:"extra,omitempty"`
}

type catalogExtra struct {
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
}

type behaviorHints struct {
	Configurable bool `json:"configurable"`
}

// meta is one catalog entry for a live TV channel.
type meta struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Poster string   `json:"poster,omitempty"`
	Genres []string `json:"genres,omitempty"`
}

type metasResponse struct {
	Metas []meta `json:"metas"`
}

// HandleManifest serves the addon manifest. The optional config segment is
// merged like on every other route so an install link primes the settings
// before the first stream request arrives.
func HandleManifest(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app.mergeConfigSegment(mux.Vars(r)["config"])

		m := manifest{
			ID:          "community.streamres",
			Version:     app.Version,
			Name:        "StreamRes",
			Description: "Resolves movies, series, anime and live TV into playable streams from multiple upstream sources",
			Resources:   []string{"stream", "catalog"},
			Types:       []string{"movie", "series", "anime", "tv"},
			IDPrefixes:  []string{"tt", "tmdb:", "kitsu:", "mal:", "tv:"},
			Catalogs: []catalogEntry{
				{
					Type: "tv",
					ID:   "streamres_tv",
					Name: "Live TV",
					Extra: []catalogExtra{
						{Name: "genre", Options: app.Registry.Categories()},
					},
				},
			},
			Behavior: behaviorHints{Configurable: true},
		}

		writeJSON(w, m)
	}
}

// HandleStream is the main resolution entry point. Whatever goes wrong
// downstream, the answer is a 200 with a (possibly empty) stream list;
// resolution failures are an expected silent outcome, not an error state.
func HandleStream(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		app.mergeConfigSegment(vars["config"])

		contentType := vars["type"]
		rawID := strings.TrimSuffix(vars["id"], ".json")
		snapshot := app.Store.Snapshot()

		if contentType == "tv" {
			app.respondTV(w, r, rawID, snapshot)
			return
		}

		id, err := mediaid.Parse(rawID)
		if err != nil {
			logger.Debug("{handlers - HandleStream} unparseable id %q: %v", rawID, err)
			writeJSON(w, types.StreamResponse{Streams: []types.StreamEntry{}})
			return
		}

		metrics.StreamRequests.WithLabelValues(id.Kind.String()).Inc()

		if id.Kind == mediaid.KindTV {
			app.respondTV(w, r, id.Value, snapshot)
			return
		}

		candidates := app.Orchestrator.Resolve(r.Context(), id, snapshot)
		writeJSON(w, types.StreamResponse{Streams: types.ToEntries(candidates)})
	}
}

// respondTV assembles the live TV stream list for a channel id, accepting
// both the tv: prefixed form and a bare (possibly sanitized) channel name.
func (app *App) respondTV(w http.ResponseWriter, r *http.Request, rawID string, snapshot types.Settings) {
	metrics.StreamRequests.WithLabelValues("tv").Inc()

	name := strings.TrimPrefix(rawID, "tv:")
	ch, ok := app.Registry.Get(name)
	if !ok {
		logger.Debug("{handlers - respondTV} unknown channel %q", name)
		writeJSON(w, types.StreamResponse{Streams: []types.StreamEntry{}})
		return
	}

	candidates := app.Assembler.Assemble(r.Context(), ch, snapshot)
	writeJSON(w, types.StreamResponse{Streams: types.ToEntries(candidates)})
}

// HandleCatalog serves the live TV catalog, optionally filtered by the
// genre extra.
func HandleCatalog(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		app.mergeConfigSegment(vars["config"])

		genre := r.URL.Query().Get("genre")

		var metas []meta
		for _, ch := range app.Registry.All() {
			if genre != "" && ch.Category != genre {
				continue
			}
			m := meta{
				ID:     "tv:" + utils.SanitizeChannelName(ch.Name),
				Type:   "tv",
				Name:   ch.Name,
				Poster: ch.Logo,
			}
			if ch.Category != "" {
				m.Genres = []string{ch.Category}
			}
			metas = append(metas, m)
		}

		if metas == nil {
			metas = []meta{}
		}
		writeJSON(w, metasResponse{Metas: metas})
	}
}

// HandlePlaylist exports the live channels as an M3U playlist, one entry
// per channel using its highest-priority assembled candidate. Channels with
// nothing playable are skipped.
func HandlePlaylist(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := app.Store.Snapshot()

		w.Header().Set("Content-Type", "audio/x-mpegurl")

		var b strings.Builder
		b.WriteString("#EXTM3U\n")

		for _, ch := range app.Registry.All() {
			candidates := app.Assembler.Assemble(r.Context(), ch, snapshot)
			if len(candidates) == 0 {
				continue
			}

			fmt.Fprintf(&b, "#EXTINF:-1 tvg-id=%q tvg-logo=%q group-title=%q,%s\n",
				ch.TvgID, ch.Logo, ch.Category, ch.Name)
			b.WriteString(candidates[0].URL)
			b.WriteString("\n")
		}

		if _, err := w.Write([]byte(b.String())); err != nil {
			logger.Debug("{handlers - HandlePlaylist} write failed: %v", err)
		}
	}
}

// HandleLogo redirects to a channel's logo image.
func HandleLogo(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["channel"]
		ch, ok := app.Registry.Get(name)
		if !ok || ch.Logo == "" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, ch.Logo, http.StatusFound)
	}
}

// HandleLanding serves a minimal landing page pointing at the manifest.
func HandleLanding(app *App) http.HandlerFunc {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>StreamRes</title></head>
<body>
<h1>StreamRes</h1>
<p>Stream resolution addon is running.</p>
<p>Install via <a href="%s/manifest.json">%s/manifest.json</a></p>
</body>
</html>
`, app.Cfg.BaseURL, app.Cfg.BaseURL)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}

// mergeConfigSegment decodes an optional config path segment and merges it
// into the shared settings store. Segments the decoder skips or cannot
// understand contribute nothing; the request proceeds either way.
func (app *App) mergeConfigSegment(segment string) {
	if segment == "" || decoder.Skip(segment) {
		return
	}
	if partial := decoder.Decode(segment); len(partial) > 0 {
		app.Store.Merge(partial)
	}
}

// writeJSON marshals v with the addon's standard response headers. The
// stream and catalog endpoints are CORS-open by protocol requirement.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("{handlers - writeJSON} marshal failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Debug("{handlers - writeJSON} write failed: %v", err)
	}
}
