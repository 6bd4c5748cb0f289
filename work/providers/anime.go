package providers

import (
	"context"
	"fmt"
	"net/url"

	"streamres/work/client"
	"streamres/work/mediaid"
	"streamres/work/types"
)

// animeProvider is the shared implementation behind the secondary anime
// providers. Both upstreams speak the same API shape and differ only in
// base URL, label and settings key, so one client type covers them.
type animeProvider struct {
	httpClient     *client.HeaderSettingClient
	name           string
	settingsKey    string
	baseURL        string
	enabledDefault bool
}

// NewAnimeHaven creates the AnimeHaven secondary provider client.
func NewAnimeHaven(httpClient *client.HeaderSettingClient, baseURL string, enabledDefault bool) Provider {
	return &animeProvider{
		httpClient:     httpClient,
		name:           "AnimeHaven",
		settingsKey:    "animeHavenEnabled",
		baseURL:        baseURL,
		enabledDefault: enabledDefault,
	}
}

// NewAnimeNexus creates the AnimeNexus secondary provider client.
func NewAnimeNexus(httpClient *client.HeaderSettingClient, baseURL string, enabledDefault bool) Provider {
	return &animeProvider{
		httpClient:     httpClient,
		name:           "AnimeNexus",
		settingsKey:    "animeNexusEnabled",
		baseURL:        baseURL,
		enabledDefault: enabledDefault,
	}
}

func (p *animeProvider) Name() string { return p.name }

// Handles accepts anime namespaces only.
func (p *animeProvider) Handles(id mediaid.ID) bool {
	return id.IsAnime()
}

func (p *animeProvider) Enabled(settings types.Settings) bool {
	if p.baseURL == "" {
		return false
	}
	return settings.GetBool(p.settingsKey, p.enabledDefault)
}

// Streams queries the anime endpoint. The id's absolute episode number maps
// to a path segment; a whole-entry id (movie or OVA) uses episode 1, the
// convention both upstreams document.
func (p *animeProvider) Streams(ctx context.Context, id mediaid.ID, settings types.Settings) ([]types.StreamCandidate, error) {
	episode := 1
	if id.Episode != nil {
		episode = *id.Episode
	}

	endpoint := fmt.Sprintf("%s/api/anime/%s/%s/%d",
		p.baseURL, id.Kind.String(), url.PathEscape(id.Value), episode)

	query := url.Values{}
	if lang := settings.Get("animeLanguage", ""); lang != "" {
		query.Set("lang", lang)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return fetchStreams(ctx, p.httpClient, endpoint, p.Name())
}
