package parser

import (
	"bufio"
	"context"
	"net/http"
	"net/url"
	"strings"

	"streamres/work/client"
	"streamres/work/logger"
	"streamres/work/utils"

	"github.com/grafov/m3u8"
)

// VariantPicker resolves HLS master playlists down to a single concrete
// media playlist URL. The external channel resolver frequently hands back a
// master playlist carrying several quality variants; most IPTV players cope
// with that, but the TV proxy template wraps exactly one URL, so the highest
// bandwidth variant is selected here before the link enters the cache.
type VariantPicker struct {
	httpClient *client.HeaderSettingClient
	obfuscate  bool
}

// NewVariantPicker creates a picker that fetches playlists through the
// shared header-setting client.
func NewVariantPicker(httpClient *client.HeaderSettingClient, obfuscate bool) *VariantPicker {
	return &VariantPicker{
		httpClient: httpClient,
		obfuscate:  obfuscate,
	}
}

// BestVariant fetches the playlist behind rawURL and, when it turns out to
// be a master playlist, returns the URL of its highest-bandwidth variant
// resolved against the master URL. Every failure path, from the fetch to the
// decode, returns rawURL unchanged: a link we could not inspect is still a
// link worth serving.
func (vp *VariantPicker) BestVariant(ctx context.Context, rawURL string) string {
	if !looksLikePlaylist(rawURL) {
		return rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}

	resp, err := vp.httpClient.Do(req)
	if err != nil {
		logger.Debug("{parser - BestVariant} fetch failed for %s: %v", utils.LogURL(vp.obfuscate, rawURL), err)
		return rawURL
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("{parser - BestVariant} HTTP %d for %s", resp.StatusCode, utils.LogURL(vp.obfuscate, rawURL))
		return rawURL
	}

	playlist, kind, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), true)
	if err != nil || kind != m3u8.MASTER {
		// media playlists play as-is, no selection needed
		return rawURL
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return rawURL
	}

	best := pickHighestBandwidth(master)
	if best == "" {
		return rawURL
	}

	resolved := resolveAgainst(rawURL, best)
	logger.Debug("{parser - BestVariant} selected variant %s for master %s",
		utils.LogURL(vp.obfuscate, resolved), utils.LogURL(vp.obfuscate, rawURL))
	return resolved
}

// looksLikePlaylist filters out URLs that cannot be HLS playlists so direct
// MPEG-TS and DASH links never trigger a fetch.
func looksLikePlaylist(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, ".m3u8") || strings.Contains(lower, ".m3u")
}

// pickHighestBandwidth returns the variant URI with the largest declared
// bandwidth, or "" when the master carries no usable variants.
func pickHighestBandwidth(master *m3u8.MasterPlaylist) string {
	best := ""
	bestBandwidth := uint32(0)
	for _, variant := range master.Variants {
		if variant == nil || variant.URI == "" {
			continue
		}
		if best == "" || variant.Bandwidth > bestBandwidth {
			best = variant.URI
			bestBandwidth = variant.Bandwidth
		}
	}
	return best
}

// resolveAgainst resolves a possibly relative variant URI against the master
// playlist URL.
func resolveAgainst(masterURL, variantURI string) string {
	base, err := url.Parse(masterURL)
	if err != nil {
		return variantURI
	}
	ref, err := url.Parse(variantURI)
	if err != nil {
		return variantURI
	}
	return base.ResolveReference(ref).String()
}
