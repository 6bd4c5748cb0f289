package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration for the stream-resolution addon.
// It covers the HTTP surface, the external channel resolver, the TV link
// cache, the upstream providers, and the proxy defaults applied whenever a
// request's own settings do not override them.
type Config struct {
	BaseURL              string        `json:"baseURL"`              // Public base URL for the addon (manifest and playlist links)
	ListenPort           int           `json:"listenPort"`           // HTTP listen port
	LogLevel             string        `json:"logLevel"`             // Minimum log level: DEBUG, INFO, WARN, ERROR
	Debug                bool          `json:"debug"`                // Enable debug logging shortcuts
	ObfuscateUrls        bool          `json:"obfuscateUrls"`        // Obfuscate upstream URLs in logs
	WorkerThreads        int           `json:"workerThreads"`        // Size of the background worker pool
	CachePath            string        `json:"cachePath"`            // Durable TV link cache file
	ChannelsPath         string        `json:"channelsPath"`         // Static channel registry file
	ResolverBin          string        `json:"resolverBin"`          // External channel resolver binary
	CacheRefreshInterval time.Duration `json:"cacheRefreshInterval"` // Staleness threshold and scheduler period for the link cache
	ResolveTimeout       time.Duration `json:"resolveTimeout"`       // Timeout for a single-name resolver call
	DumpTimeout          time.Duration `json:"dumpTimeout"`          // Timeout for a bulk resolver dump
	ProviderTimeout      time.Duration `json:"providerTimeout"`      // Per-call timeout for upstream provider requests
	ProviderRateLimit    int           `json:"providerRateLimit"`    // Outbound provider requests per second
	ChannelInclude       string        `json:"channelInclude"`       // Optional category include regex for the channel registry
	ChannelExclude       string        `json:"channelExclude"`       // Optional category exclude regex for the channel registry

	// Defaults below are consulted only when the per-request settings map
	// does not carry the corresponding key. Environment variables override
	// the file values at load time.
	ProxyURL          string `json:"proxyUrl"`          // Generic proxy base URL
	ProxyPassword     string `json:"proxyPassword"`     // Generic proxy api password
	TVProxyURL        string `json:"tvProxyUrl"`        // TV-specific proxy base URL
	CineStreamURL     string `json:"cineStreamUrl"`     // Primary provider base URL
	AnimeHavenURL     string `json:"animeHavenUrl"`     // Secondary anime provider base URL
	AnimeNexusURL     string `json:"animeNexusUrl"`     // Secondary anime provider base URL
	CineStreamEnabled bool   `json:"cineStreamEnabled"` // Primary provider enabled flag
	AnimeHavenEnabled bool   `json:"animeHavenEnabled"` // AnimeHaven enabled flag
	AnimeNexusEnabled bool   `json:"animeNexusEnabled"` // AnimeNexus enabled flag

	AdminPasswordHash string `json:"-"` // bcrypt hash for the admin endpoints, env only
}

// ConfigFile mirrors Config for the on-disk JSON format. Duration fields are
// stored as strings (e.g. "12h") and parsed into time.Duration on load.
type ConfigFile struct {
	BaseURL              string `json:"baseURL"`
	ListenPort           int    `json:"listenPort"`
	LogLevel             string `json:"logLevel"`
	Debug                bool   `json:"debug"`
	ObfuscateUrls        bool   `json:"obfuscateUrls"`
	WorkerThreads        int    `json:"workerThreads"`
	CachePath            string `json:"cachePath"`
	ChannelsPath         string `json:"channelsPath"`
	ResolverBin          string `json:"resolverBin"`
	CacheRefreshInterval string `json:"cacheRefreshInterval"` // Duration string (e.g. "12h")
	ResolveTimeout       string `json:"resolveTimeout"`       // Duration string (e.g. "5s")
	DumpTimeout          string `json:"dumpTimeout"`          // Duration string (e.g. "30s")
	ProviderTimeout      string `json:"providerTimeout"`      // Duration string (e.g. "10s")
	ProviderRateLimit    int    `json:"providerRateLimit"`
	ChannelInclude       string `json:"channelInclude"`
	ChannelExclude       string `json:"channelExclude"`
	ProxyURL             string `json:"proxyUrl"`
	ProxyPassword        string `json:"proxyPassword"`
	TVProxyURL           string `json:"tvProxyUrl"`
	CineStreamURL        string `json:"cineStreamUrl"`
	AnimeHavenURL        string `json:"animeHavenUrl"`
	AnimeNexusURL        string `json:"animeNexusUrl"`
	CineStreamEnabled    *bool  `json:"cineStreamEnabled"`
	AnimeHavenEnabled    *bool  `json:"animeHavenEnabled"`
	AnimeNexusEnabled    *bool  `json:"animeNexusEnabled"`
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// defaultConfigPath is where the settings volume mounts the config file.
const defaultConfigPath = "/settings/config.json"

// LoadConfig loads the configuration from file or returns the cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Attempts to load from /settings/config.json.
//   - Falls back to default config if the file is missing or invalid.
//   - Applies environment overrides for proxy and provider defaults.
//   - Runs validation to ensure safe defaults.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	config, err := loadFromFile(defaultConfigPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", defaultConfigPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	applyEnvOverrides(config)
	validateAndSetDefaults(config)

	configCache = config
	return config
}

// ClearConfigCache resets the cached configuration, forcing a reload on the
// next LoadConfig call. Used by the admin reload flow.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config, parsing duration strings.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		BaseURL:           cf.BaseURL,
		ListenPort:        cf.ListenPort,
		LogLevel:          cf.LogLevel,
		Debug:             cf.Debug,
		ObfuscateUrls:     cf.ObfuscateUrls,
		WorkerThreads:     cf.WorkerThreads,
		CachePath:         cf.CachePath,
		ChannelsPath:      cf.ChannelsPath,
		ResolverBin:       cf.ResolverBin,
		ProviderRateLimit: cf.ProviderRateLimit,
		ChannelInclude:    cf.ChannelInclude,
		ChannelExclude:    cf.ChannelExclude,
		ProxyURL:          cf.ProxyURL,
		ProxyPassword:     cf.ProxyPassword,
		TVProxyURL:        cf.TVProxyURL,
		CineStreamURL:     cf.CineStreamURL,
		AnimeHavenURL:     cf.AnimeHavenURL,
		AnimeNexusURL:     cf.AnimeNexusURL,
		CineStreamEnabled: boolOr(cf.CineStreamEnabled, true),
		AnimeHavenEnabled: boolOr(cf.AnimeHavenEnabled, true),
		AnimeNexusEnabled: boolOr(cf.AnimeNexusEnabled, true),
	}

	var err error
	if config.CacheRefreshInterval, err = parseDuration(cf.CacheRefreshInterval); err != nil {
		return nil, fmt.Errorf("invalid cacheRefreshInterval: %w", err)
	}
	if config.ResolveTimeout, err = parseDuration(cf.ResolveTimeout); err != nil {
		return nil, fmt.Errorf("invalid resolveTimeout: %w", err)
	}
	if config.DumpTimeout, err = parseDuration(cf.DumpTimeout); err != nil {
		return nil, fmt.Errorf("invalid dumpTimeout: %w", err)
	}
	if config.ProviderTimeout, err = parseDuration(cf.ProviderTimeout); err != nil {
		return nil, fmt.Errorf("invalid providerTimeout: %w", err)
	}

	return config, nil
}

// parseDuration parses a duration string, treating empty as zero so that
// validateAndSetDefaults can fill in the default.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// boolOr dereferences an optional bool from the config file, falling back
// when the field was absent.
func boolOr(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}

// applyEnvOverrides layers environment variables over the file values. The
// environment wins so a container deployment can configure the proxy and
// provider endpoints without shipping a config file.
func applyEnvOverrides(config *Config) {
	config.ProxyURL = envString("PROXY_URL", config.ProxyURL)
	config.ProxyPassword = envString("PROXY_PASSWORD", config.ProxyPassword)
	config.TVProxyURL = envString("TV_PROXY_URL", config.TVProxyURL)
	config.CineStreamURL = envString("CINESTREAM_URL", config.CineStreamURL)
	config.AnimeHavenURL = envString("ANIMEHAVEN_URL", config.AnimeHavenURL)
	config.AnimeNexusURL = envString("ANIMENEXUS_URL", config.AnimeNexusURL)
	config.CineStreamEnabled = envBool("CINESTREAM_ENABLED", config.CineStreamEnabled)
	config.AnimeHavenEnabled = envBool("ANIMEHAVEN_ENABLED", config.AnimeHavenEnabled)
	config.AnimeNexusEnabled = envBool("ANIMENEXUS_ENABLED", config.AnimeNexusEnabled)
	config.AdminPasswordHash = envString("ADMIN_PASSWORD_HASH", config.AdminPasswordHash)
	config.ResolverBin = envString("RESOLVER_BIN", config.ResolverBin)
	config.LogLevel = envString("LOG_LEVEL", config.LogLevel)
}

// envString returns the environment value for key, or fallback when unset.
func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envBool returns the environment value for key parsed as a bool, or
// fallback when unset or unparseable.
func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getDefaultConfig returns a baseline configuration with sensible defaults
// when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		BaseURL:              "http://localhost:8080",
		ListenPort:           8080,
		LogLevel:             "INFO",
		Debug:                false,
		ObfuscateUrls:        false,
		WorkerThreads:        8,
		CachePath:            "/settings/tv-links.json",
		ChannelsPath:         "/settings/channels.json",
		ResolverBin:          "tv-resolver",
		CacheRefreshInterval: 12 * time.Hour,
		ResolveTimeout:       5 * time.Second,
		DumpTimeout:          30 * time.Second,
		ProviderTimeout:      10 * time.Second,
		ProviderRateLimit:    10,
		CineStreamEnabled:    true,
		AnimeHavenEnabled:    true,
		AnimeNexusEnabled:    true,
	}
}

// validateAndSetDefaults ensures all config values are valid, filling in
// defaults for missing or invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.ListenPort <= 0 || config.ListenPort > 65535 {
		config.ListenPort = 8080
	}
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 8
	}
	if config.CachePath == "" {
		config.CachePath = "/settings/tv-links.json"
	}
	if config.ChannelsPath == "" {
		config.ChannelsPath = "/settings/channels.json"
	}
	if config.ResolverBin == "" {
		config.ResolverBin = "tv-resolver"
	}
	if config.CacheRefreshInterval <= 0 {
		config.CacheRefreshInterval = 12 * time.Hour
	}
	if config.ResolveTimeout <= 0 {
		config.ResolveTimeout = 5 * time.Second
	}
	if config.DumpTimeout <= 0 {
		config.DumpTimeout = 30 * time.Second
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 10 * time.Second
	}
	if config.ProviderRateLimit <= 0 {
		config.ProviderRateLimit = 10
	}
}

// CreateExampleConfig writes an example config file to disk. Used by the
// container entrypoint when the settings volume starts empty.
func CreateExampleConfig(path string) error {
	truthy := true
	example := ConfigFile{
		BaseURL:              "http://localhost:8080",
		ListenPort:           8080,
		LogLevel:             "INFO",
		Debug:                false,
		ObfuscateUrls:        true,
		WorkerThreads:        8,
		CachePath:            "/settings/tv-links.json",
		ChannelsPath:         "/settings/channels.json",
		ResolverBin:          "tv-resolver",
		CacheRefreshInterval: "12h",
		ResolveTimeout:       "5s",
		DumpTimeout:          "30s",
		ProviderTimeout:      "10s",
		ProviderRateLimit:    10,
		ProxyURL:             "https://proxy.example.com",
		ProxyPassword:        "",
		TVProxyURL:           "https://tv-proxy.example.com",
		CineStreamURL:        "https://cinestream.example.com",
		AnimeHavenURL:        "https://animehaven.example.com",
		AnimeNexusURL:        "https://animenexus.example.com",
		CineStreamEnabled:    &truthy,
		AnimeHavenEnabled:    &truthy,
		AnimeNexusEnabled:    &truthy,
	}

	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
