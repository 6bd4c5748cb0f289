package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"streamres/work/client"
	"streamres/work/mediaid"
	"streamres/work/types"
)

// Provider is one upstream stream source. Implementations wrap the
// provider's HTTP contract and nothing more; scraping details live on the
// provider's side of the wire. Streams returns the candidates the provider
// currently knows for an id, or an error the orchestrator will swallow and
// log — providers never decide what a failure means for the request.
type Provider interface {
	// Name is the stable label stamped onto every candidate this
	// provider produces.
	Name() string

	// Handles reports whether the provider serves this id's namespace.
	Handles(id mediaid.ID) bool

	// Enabled consults the request settings, falling back to the
	// provider's configured default.
	Enabled(settings types.Settings) bool

	// Streams fetches candidates for the id. An empty slice with a nil
	// error means the provider answered and has nothing.
	Streams(ctx context.Context, id mediaid.ID, settings types.Settings) ([]types.StreamCandidate, error)
}

// streamsPayload is the JSON response shape shared by all provider APIs.
type streamsPayload struct {
	Streams []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Quality string `json:"quality"`
	} `json:"streams"`
}

// maxProviderBody bounds how much of a provider response gets read; a
// well-formed answer is a few KB and anything bigger is a misbehaving
// upstream.
const maxProviderBody = 1 << 20

// fetchStreams performs one provider API call and maps the payload to
// candidates tagged with the provider's label.
func fetchStreams(ctx context.Context, httpClient *client.HeaderSettingClient, url, label string) ([]types.StreamCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// a 404 is the provider's way of saying "not carried", not a failure
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, err
	}

	var payload streamsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unparseable provider response: %w", err)
	}

	candidates := make([]types.StreamCandidate, 0, len(payload.Streams))
	for _, s := range payload.Streams {
		if s.URL == "" {
			continue
		}
		title := s.Title
		if title == "" {
			title = s.Quality
		}
		candidates = append(candidates, types.StreamCandidate{
			URL:         s.URL,
			Title:       title,
			SourceLabel: label,
		})
	}
	return candidates, nil
}
