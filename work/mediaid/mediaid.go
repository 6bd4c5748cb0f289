package mediaid

import (
	"fmt"
	"strings"
)

// Kind tags the namespace a content id belongs to. The namespace decides
// which providers are consulted: IMDB and TMDB ids go to the movie/series
// path, Kitsu and MAL ids to the anime path, TV ids to the live channel path.
type Kind int

const (
	KindIMDB Kind = iota // IMDB title id (tt-prefixed)
	KindTMDB             // TMDB numeric id
	KindKitsu            // Kitsu anime id
	KindMAL              // MyAnimeList anime id
	KindTV               // live TV channel id
)

// String returns the lowercase namespace name.
func (k Kind) String() string {
	switch k {
	case KindIMDB:
		return "imdb"
	case KindTMDB:
		return "tmdb"
	case KindKitsu:
		return "kitsu"
	case KindMAL:
		return "mal"
	case KindTV:
		return "tv"
	}
	return "unknown"
}

// ID is a parsed content identifier. Season and Episode are pointers so the
// "absent" state stays distinct from zero. The 3-segment series form carries
// both season and episode; the 2-segment anime form carries an absolute
// episode number with no season; the 1-segment form is a movie or a whole
// anime entry. Season without episode never occurs.
type ID struct {
	Kind    Kind
	Value   string // namespace-local id: "tt0111161", "603", "44042", "Rai 1"
	Season  *int
	Episode *int
}

// IsAnime reports whether the id belongs to an anime namespace.
func (id ID) IsAnime() bool {
	return id.Kind == KindKitsu || id.Kind == KindMAL
}

// String reassembles the canonical colon-joined form of the id, used as a
// stable cache key.
func (id ID) String() string {
	var b strings.Builder
	switch id.Kind {
	case KindIMDB:
		b.WriteString(id.Value)
	default:
		b.WriteString(id.Kind.String())
		b.WriteString(":")
		b.WriteString(id.Value)
	}
	if id.Season != nil {
		fmt.Fprintf(&b, ":%d", *id.Season)
	}
	if id.Episode != nil {
		fmt.Fprintf(&b, ":%d", *id.Episode)
	}
	return b.String()
}

// Parse interprets a raw request id into a tagged ID.
//
// Namespace prefixes tmdb:, kitsu:, mal: and tv: are stripped first; a bare
// tt-prefixed id is IMDB. The remaining colon-separated segments follow the
// positional convention shared by the upstream catalogs:
//
//	1 segment  -> movie / whole entry (no season, no episode)
//	2 segments -> id + absolute episode (anime numbering, no season)
//	3 segments -> id + season + episode
//
// TV ids are never split: a channel id is the full remainder, colons and all.
func Parse(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ID{}, fmt.Errorf("empty content id")
	}

	kind := KindIMDB
	rest := raw
	switch {
	case strings.HasPrefix(raw, "tmdb:"):
		kind, rest = KindTMDB, strings.TrimPrefix(raw, "tmdb:")
	case strings.HasPrefix(raw, "kitsu:"):
		kind, rest = KindKitsu, strings.TrimPrefix(raw, "kitsu:")
	case strings.HasPrefix(raw, "mal:"):
		kind, rest = KindMAL, strings.TrimPrefix(raw, "mal:")
	case strings.HasPrefix(raw, "tv:"):
		kind, rest = KindTV, strings.TrimPrefix(raw, "tv:")
	case strings.HasPrefix(raw, "tt"):
		kind = KindIMDB
	default:
		return ID{}, fmt.Errorf("unrecognized content id namespace: %q", raw)
	}

	if rest == "" {
		return ID{}, fmt.Errorf("empty id after namespace prefix in %q", raw)
	}

	// channel names may legitimately contain colons
	if kind == KindTV {
		return ID{Kind: KindTV, Value: rest}, nil
	}

	parts := strings.Split(rest, ":")
	switch len(parts) {
	case 1:
		return ID{Kind: kind, Value: parts[0]}, nil
	case 2:
		ep, err := parsePositive(parts[1])
		if err != nil {
			return ID{}, fmt.Errorf("bad episode in %q: %w", raw, err)
		}
		return ID{Kind: kind, Value: parts[0], Episode: &ep}, nil
	case 3:
		season, err := parsePositive(parts[1])
		if err != nil {
			return ID{}, fmt.Errorf("bad season in %q: %w", raw, err)
		}
		ep, err := parsePositive(parts[2])
		if err != nil {
			return ID{}, fmt.Errorf("bad episode in %q: %w", raw, err)
		}
		return ID{Kind: kind, Value: parts[0], Season: &season, Episode: &ep}, nil
	}
	return ID{}, fmt.Errorf("too many segments in content id %q", raw)
}

// parsePositive parses a non-negative decimal segment.
func parsePositive(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty segment")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-numeric segment %q", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
