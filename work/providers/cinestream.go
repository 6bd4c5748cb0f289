package providers

import (
	"context"
	"fmt"
	"net/url"

	"streamres/work/client"
	"streamres/work/mediaid"
	"streamres/work/types"
)

// CineStream is the primary movie/series provider. Its API takes an IMDB or
// TMDB id plus optional season/episode and answers with a JSON stream list.
type CineStream struct {
	httpClient     *client.HeaderSettingClient
	baseURL        string
	enabledDefault bool
}

// NewCineStream creates the primary provider client.
func NewCineStream(httpClient *client.HeaderSettingClient, baseURL string, enabledDefault bool) *CineStream {
	return &CineStream{
		httpClient:     httpClient,
		baseURL:        baseURL,
		enabledDefault: enabledDefault,
	}
}

func (p *CineStream) Name() string { return "CineStream" }

// Handles accepts the movie/series namespaces only; anime ids never reach
// this provider.
func (p *CineStream) Handles(id mediaid.ID) bool {
	return id.Kind == mediaid.KindIMDB || id.Kind == mediaid.KindTMDB
}

// Enabled honors the per-request flag, falling back to config.
func (p *CineStream) Enabled(settings types.Settings) bool {
	if p.baseURL == "" {
		return false
	}
	return settings.GetBool("cineStreamEnabled", p.enabledDefault)
}

// Streams queries the provider's stream endpoint. The settings map may carry
// an API key the provider accepts as a query parameter; absent keys are
// simply omitted.
func (p *CineStream) Streams(ctx context.Context, id mediaid.ID, settings types.Settings) ([]types.StreamCandidate, error) {
	endpoint := fmt.Sprintf("%s/api/streams/%s", p.baseURL, url.PathEscape(id.Value))

	query := url.Values{}
	query.Set("ns", id.Kind.String())
	if id.Season != nil {
		query.Set("season", fmt.Sprintf("%d", *id.Season))
	}
	if id.Episode != nil {
		query.Set("episode", fmt.Sprintf("%d", *id.Episode))
	}
	if key := settings.Get("tmdbApiKey", ""); key != "" {
		query.Set("tmdb_key", key)
	}

	return fetchStreams(ctx, p.httpClient, endpoint+"?"+query.Encode(), p.Name())
}
