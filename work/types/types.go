package types

import "strconv"

// Settings is the per-session configuration map that influences provider and
// proxy behavior. Keys are free-form; unknown keys pass through untouched so
// a newer client can carry options an older server simply ignores. Values are
// stored as strings regardless of the JSON scalar type they arrived as.
//
// A Settings value is either a partial set produced by the config decoder or
// a snapshot taken from the shared store for the duration of one request.
// Snapshots are plain maps and must not be shared across requests.
type Settings map[string]string

// Get returns the value for key, or fallback when the key is absent or empty.
// Fallback resolution happens here, at the point of use, never at merge time.
func (s Settings) Get(key, fallback string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return fallback
}

// GetBool interprets the value for key as a boolean, falling back when the
// key is absent or unparseable. Accepts the strconv.ParseBool forms plus
// "on"/"off".
func (s Settings) GetBool(key string, fallback bool) bool {
	v, ok := s[key]
	if !ok || v == "" {
		return fallback
	}
	switch v {
	case "on":
		return true
	case "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// StreamCandidate is one playable stream option offered to the client. A
// candidate is immutable after creation; downstream code only filters and
// reorders candidate lists, never rewrites them.
type StreamCandidate struct {
	URL         string // final playable URL, possibly wrapped by a proxy template
	Title       string // human-readable variant description (quality, language)
	SourceLabel string // provider or assembly step that produced this candidate
	Proxied     bool   // true when URL has been wrapped by a proxy template
}

// StreamEntry is the wire shape of a single stream in the addon response.
type StreamEntry struct {
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// StreamResponse is the wire shape of the stream endpoint payload. An empty
// Streams slice is a valid, expected response, not an error indicator.
type StreamResponse struct {
	Streams []StreamEntry `json:"streams"`
}

// ToEntries converts internal candidates to their wire shape, preserving order.
func ToEntries(candidates []StreamCandidate) []StreamEntry {
	entries := make([]StreamEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, StreamEntry{
			Name:  c.SourceLabel,
			Title: c.Title,
			URL:   c.URL,
		})
	}
	return entries
}
