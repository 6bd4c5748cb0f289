package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamres/work/assembler"
	"streamres/work/channels"
	"streamres/work/client"
	"streamres/work/config"
	"streamres/work/handlers"
	"streamres/work/logger"
	"streamres/work/middleware"
	"streamres/work/orchestrator"
	"streamres/work/parser"
	"streamres/work/providers"
	"streamres/work/resolvercli"
	"streamres/work/settings"
	"streamres/work/tvcache"
)

var (
	Version = "v0.1.0" // default version
)

// responseCacheTTL bounds how long a resolved provider answer may be served
// without asking upstream again.
const responseCacheTTL = 5 * time.Minute

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()
	logger.SetLogLevel(cfg.LogLevel)

	// Initialize worker pool
	workerPool, err := ants.NewPool(cfg.WorkerThreads, ants.WithPreAlloc(true))
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer workerPool.Release()

	// Initialize HTTP client
	httpClient := client.New(cfg.ProviderRateLimit)

	// TV link cache: external resolver + variant picker + durable snapshot
	resolver := resolvercli.New(cfg.ResolverBin, cfg.ObfuscateUrls)
	picker := parser.NewVariantPicker(httpClient, cfg.ObfuscateUrls)
	linkCache := tvcache.New(resolver, cfg.CachePath, cfg.CacheRefreshInterval,
		cfg.ResolveTimeout, cfg.DumpTimeout, workerPool, picker)
	linkCache.Load()

	// cold start with no snapshot: bootstrap the resolver's own cache so
	// the first dump has something to dump, then refresh right away
	if !linkCache.Populated() {
		bootstrap := func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.DumpTimeout)
			defer cancel()
			if err := resolver.BuildCache(ctx); err != nil {
				logger.Warn("{main} resolver cache bootstrap failed: %v", err)
			}
			linkCache.Refresh()
		}
		if err := workerPool.Submit(bootstrap); err != nil {
			go bootstrap()
		}
	}

	linkCache.Start()
	defer linkCache.Stop()

	// Static channel registry; a missing file just disables live TV
	registry := channels.NewRegistry(cfg.ChannelInclude, cfg.ChannelExclude, cfg.ObfuscateUrls)
	if err := registry.LoadFile(cfg.ChannelsPath); err != nil {
		logger.Warn("{main} channel registry load failed: %v", err)
	}

	// Providers: one primary, secondaries in registration order
	primary := providers.NewCineStream(httpClient, cfg.CineStreamURL, cfg.CineStreamEnabled)
	secondaries := []providers.Provider{
		providers.NewAnimeHaven(httpClient, cfg.AnimeHavenURL, cfg.AnimeHavenEnabled),
		providers.NewAnimeNexus(httpClient, cfg.AnimeNexusURL, cfg.AnimeNexusEnabled),
	}

	orch := orchestrator.New(primary, secondaries, cfg.ProviderTimeout, responseCacheTTL)
	defer orch.Close()

	store := settings.NewStore()

	app := &handlers.App{
		Cfg:          cfg,
		Store:        store,
		Orchestrator: orch,
		Assembler:    assembler.New(linkCache, cfg),
		Registry:     registry,
		Version:      Version,
	}

	// Setup HTTP routes
	router := mux.NewRouter()

	// Manifest, with and without a leading config segment
	router.HandleFunc("/manifest.json", middleware.Gzip(handlers.HandleManifest(app))).Methods("GET")
	router.HandleFunc("/{config}/manifest.json", middleware.Gzip(handlers.HandleManifest(app))).Methods("GET")

	// Stream resolution
	router.HandleFunc("/stream/{type}/{id}", middleware.Gzip(handlers.HandleStream(app))).Methods("GET")
	router.HandleFunc("/{config}/stream/{type}/{id}", middleware.Gzip(handlers.HandleStream(app))).Methods("GET")

	// Live TV catalog
	router.HandleFunc("/catalog/tv/{catalogId}", middleware.Gzip(handlers.HandleCatalog(app))).Methods("GET")
	router.HandleFunc("/{config}/catalog/tv/{catalogId}", middleware.Gzip(handlers.HandleCatalog(app))).Methods("GET")

	// Playlist export and channel logos
	router.HandleFunc("/playlist.m3u", middleware.Gzip(handlers.HandlePlaylist(app))).Methods("GET")
	router.HandleFunc("/logo/{channel}", handlers.HandleLogo(app)).Methods("GET")

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// add the admin routes
	setupAdminRoutes(router, app, linkCache, store)

	// landing page last so it doesn't shadow anything
	router.HandleFunc("/", handlers.HandleLanding(app)).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.ListenPort)

	// show info
	logger.Info("Starting StreamRes %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Base URL: %s", cfg.BaseURL)
	logger.Info("  - Listen Port: %d", cfg.ListenPort)
	logger.Info("  - Worker Threads: %d", cfg.WorkerThreads)
	logger.Info("  - Channels: %d", registry.Len())
	logger.Info("  - Cache Path: %s", cfg.CachePath)
	logger.Info("  - Cache Refresh: %s", cfg.CacheRefreshInterval)
	logger.Info("  - Resolver: %s", cfg.ResolverBin)
	logger.Info("  - Debug Enabled: %v", cfg.Debug)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// shut down cleanly on SIGINT/SIGTERM so the link cache and worker pool
	// deferred stops actually run
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		logger.Info("{main} shutdown requested")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("{main} shutdown error: %v", err)
		}
	}()

	// fire us up
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
