package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"streamres/work/config"
	"streamres/work/handlers"
	"streamres/work/logger"
	"streamres/work/middleware"
	"streamres/work/settings"
	"streamres/work/tvcache"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// StatusResponse carries the operational snapshot exposed through the admin
// API: cache freshness, registry size, settings volume and basic process
// statistics for monitoring and capacity planning.
type StatusResponse struct {
	Version        string `json:"version"`
	Uptime         string `json:"uptime"`
	CacheAge       string `json:"cacheAge"`
	CachePopulated bool   `json:"cachePopulated"`
	CachedLinks    int    `json:"cachedLinks"`
	Channels       int    `json:"channels"`
	SettingsKeys   int    `json:"settingsKeys"`
	MemoryUsage    string `json:"memoryUsage"`
	WorkerThreads  int    `json:"workerThreads"`
	Goroutines     int    `json:"goroutines"`
}

// RefreshResponse acknowledges a manually requested cache refresh. The
// refresh itself runs in the background; a concurrent one already in flight
// wins and the request becomes a no-op.
type RefreshResponse struct {
	Requested bool   `json:"requested"`
	Message   string `json:"message"`
}

var startTime = time.Now()

// setupAdminRoutes wires the password-protected admin endpoints onto the
// router. When no admin password hash is configured the endpoints stay
// registered but refuse every request, so the surface is never silently open.
func setupAdminRoutes(router *mux.Router, app *handlers.App, cache *tvcache.Cache, store *settings.Store) {
	router.HandleFunc("/admin/status",
		adminAuth(app.Cfg, middleware.Gzip(handleAdminStatus(app, cache, store)))).Methods("GET")
	router.HandleFunc("/admin/refresh",
		adminAuth(app.Cfg, handleAdminRefresh(cache))).Methods("POST")
}

// adminAuth guards an admin handler with HTTP basic auth checked against the
// configured bcrypt hash. The username is ignored; only the password matters.
func adminAuth(cfg *config.Config, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.AdminPasswordHash == "" {
			http.Error(w, "admin interface not configured", http.StatusServiceUnavailable)
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="streamres admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// handleAdminStatus returns the live operational snapshot.
func handleAdminStatus(app *handlers.App, cache *tvcache.Cache, store *settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		status := StatusResponse{
			Version:        app.Version,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			CacheAge:       cache.Age().Round(time.Second).String(),
			CachePopulated: cache.Populated(),
			CachedLinks:    cache.Len(),
			Channels:       app.Registry.Len(),
			SettingsKeys:   store.Len(),
			MemoryUsage:    fmt.Sprintf("%.1f MB", float64(mem.Alloc)/1024/1024),
			WorkerThreads:  app.Cfg.WorkerThreads,
			Goroutines:     runtime.NumGoroutine(),
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Debug("{main - handleAdminStatus} encode failed: %v", err)
		}
	}
}

// handleAdminRefresh kicks off a link cache refresh in the background. If a
// refresh is already in flight the request reports that instead of queueing
// a second one.
func handleAdminRefresh(cache *tvcache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := RefreshResponse{Requested: true, Message: "refresh requested"}
		go func() {
			if !cache.Refresh() {
				logger.Debug("{main - handleAdminRefresh} refresh skipped, another in flight")
			}
		}()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Debug("{main - handleAdminRefresh} encode failed: %v", err)
		}
	}
}
