package decoder

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"streamres/work/logger"
	"streamres/work/metrics"
	"streamres/work/types"

	"github.com/grafana/regexp"
)

// The config segment arrives as one opaque path element whose encoding
// depends on which client produced the install link: plain JSON, a
// percent-encoded JSON object, or a base64 blob (sometimes with its padding
// percent-encoded, sometimes with the padding stripped entirely). Decoding is
// an ordered cascade of pure stages; the first stage that yields a non-empty
// settings map wins and later stages are never consulted.
//
// Decoding never fails the caller: a segment no stage understands simply
// contributes an empty settings map.

// minSegmentLen is the shortest string that can plausibly hold an encoded
// settings object ("{}" percent-encoded is already 6 bytes; anything shorter
// is a routing fragment, not a config segment).
const minSegmentLen = 8

// reservedTokens are leading path words that name addon resources. A segment
// starting with one of these is part of the route, never a config blob, and
// is skipped before any decode stage runs.
var reservedTokens = []string{
	"manifest",
	"stream",
	"catalog",
	"meta",
	"playlist",
	"metrics",
	"admin",
	"logo",
	"favicon",
}

// base64Shape matches strings made entirely of base64 alphabet characters,
// covering both standard and URL-safe variants with optional padding.
var base64Shape = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)

// stage is one step of the decode cascade. The bool result reports whether
// the stage produced usable settings; a false return hands the raw value to
// the next stage untouched.
type stage struct {
	name string
	fn   func(raw string) (types.Settings, bool)
}

// stages lists the cascade in precedence order. Order is load-bearing: a raw
// JSON object must never be percent-decoded first, and a percent-encoded
// blob must be unescaped before the base64 shape check can match it.
var stages = []stage{
	{name: "json", fn: decodeJSON},
	{name: "urlencoded", fn: decodeURLEncoded},
	{name: "base64", fn: decodeBase64},
}

// Decode turns an opaque config path segment into a settings map. On total
// failure it returns an empty, non-nil Settings; it never returns an error
// and never panics on malformed input.
func Decode(raw string) types.Settings {
	if Skip(raw) {
		return types.Settings{}
	}

	for _, s := range stages {
		if settings, ok := s.fn(raw); ok && len(settings) > 0 {
			metrics.ConfigDecodes.WithLabelValues(s.name).Inc()
			logger.Debug("{decoder - Decode} decoded %d settings keys via %s stage", len(settings), s.name)
			return settings
		}
	}

	metrics.ConfigDecodes.WithLabelValues("none").Inc()
	logger.Debug("{decoder - Decode} no stage decoded segment (%d bytes), treating as empty settings", len(raw))
	return types.Settings{}
}

// Skip reports whether the segment must not be treated as a config blob:
// too short to hold one, or beginning with a reserved routing token.
func Skip(raw string) bool {
	if len(raw) < minSegmentLen {
		return true
	}
	lower := strings.ToLower(raw)
	for _, token := range reservedTokens {
		if strings.HasPrefix(lower, token) {
			return true
		}
	}
	return false
}

// decodeJSON is stage 1: the segment is already a JSON object.
func decodeJSON(raw string) (types.Settings, bool) {
	return parseObject(raw)
}

// decodeURLEncoded is stage 2: percent-decode, then retry the JSON parse.
// Segments without any percent-encoding are left for the next stage.
func decodeURLEncoded(raw string) (types.Settings, bool) {
	if !strings.Contains(raw, "%") {
		return nil, false
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, false
	}
	return parseObject(unescaped)
}

// decodeBase64 is stage 3: if the (percent-decoded) segment looks like
// base64, normalize its padding, decode it, and parse the result either
// directly or through brace extraction.
func decodeBase64(raw string) (types.Settings, bool) {
	candidate := raw
	if strings.Contains(raw, "%") {
		if unescaped, err := url.QueryUnescape(raw); err == nil {
			candidate = unescaped
		}
	}

	// "eyJ" is how every base64-encoded JSON object starts ({" plus one
	// more byte); the alphabet match catches blobs with other leading keys.
	if !strings.HasPrefix(candidate, "eyJ") && !base64Shape.MatchString(candidate) {
		return nil, false
	}

	decoded, ok := decodeBase64Value(candidate)
	if !ok {
		return nil, false
	}

	// outer decode first; the brace-extraction fallback only runs when the
	// whole decoded text is not itself a JSON object
	if settings, ok := parseObject(decoded); ok {
		return settings, true
	}

	start := strings.Index(decoded, "{")
	end := strings.LastIndex(decoded, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	return parseObject(decoded[start : end+1])
}

// decodeBase64Value normalizes padding and tries the standard alphabet
// first, then the URL-safe one. Clients are known to ship blobs with the
// "=" padding percent-encoded or stripped outright.
func decodeBase64Value(s string) (string, bool) {
	s = strings.ReplaceAll(s, "%3D", "=")
	s = strings.ReplaceAll(s, "%3d", "=")
	s = strings.TrimRight(s, "=")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}

	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return string(data), true
	}
	if data, err := base64.URLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return string(data), true
	}
	if data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return string(data), true
	}
	return "", false
}

// parseObject unmarshals a JSON object into a flat settings map. Scalar
// values are stringified; nested objects and arrays are kept as their JSON
// text so unknown structured keys still round-trip through the store.
func parseObject(s string) (types.Settings, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, false
	}

	settings := make(types.Settings, len(parsed))
	for key, value := range parsed {
		settings[key] = stringify(value)
	}
	return settings, true
}

// stringify flattens a decoded JSON value to the string form used by the
// settings map.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	case float64:
		// integers survive the float64 round-trip without a decimal point
		text, _ := json.Marshal(v)
		return string(text)
	default:
		text, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(text)
	}
}
