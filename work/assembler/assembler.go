package assembler

import (
	"context"
	"net/url"
	"strings"

	"streamres/work/channels"
	"streamres/work/config"
	"streamres/work/tvcache"
	"streamres/work/types"
)

// Assembler turns a live TV channel's raw links — static links from the
// registry plus the dynamically resolved one from the link cache — into the
// final ordered stream candidate list.
//
// The four assembly steps are independent and additive; none suppresses
// another and the output preserves step order: primary static, alternate
// quality static, tertiary static, dynamic. Free-to-air links are served
// untouched; everything else is wrapped by a proxy template when the
// matching proxy settings are present.
type Assembler struct {
	cache *tvcache.Cache
	cfg   *config.Config
}

// New creates an assembler over the shared link cache and the config that
// supplies environment-derived proxy defaults.
func New(cache *tvcache.Cache, cfg *config.Config) *Assembler {
	return &Assembler{
		cache: cache,
		cfg:   cfg,
	}
}

// Assemble builds the candidate list for one channel under the given
// request settings. It never fails; a channel with no usable links yields an
// empty list.
func (a *Assembler) Assemble(ctx context.Context, ch channels.Channel, settings types.Settings) []types.StreamCandidate {
	proxyBase := settings.Get("proxyUrl", a.cfg.ProxyURL)
	proxyPassword := settings.Get("proxyPassword", a.cfg.ProxyPassword)
	tvProxyBase := settings.Get("tvProxyUrl", a.cfg.TVProxyURL)

	var out []types.StreamCandidate

	// step 1: primary static link
	if ch.Link != "" {
		out = append(out, a.staticCandidate(ch, ch.Link, ch.Name, proxyBase, proxyPassword))
	}

	// step 2: alternate-quality static link, same policy, independently
	if ch.LinkHD != "" {
		out = append(out, a.staticCandidate(ch, ch.LinkHD, ch.Name+" (HD)", proxyBase, proxyPassword))
	}

	// step 3: tertiary static link goes through the TV proxy when one is
	// configured, directly otherwise
	if ch.BackupLink != "" {
		if tvProxyBase != "" && !ch.FreeToAir {
			out = append(out, types.StreamCandidate{
				URL:         wrapTVProxy(tvProxyBase, ch.BackupLink),
				Title:       ch.Name + " (backup)",
				SourceLabel: "TV",
				Proxied:     true,
			})
		} else {
			out = append(out, types.StreamCandidate{
				URL:         ch.BackupLink,
				Title:       ch.Name + " (backup)",
				SourceLabel: "TV",
			})
		}
	}

	// step 4: dynamically resolved link, only worth offering when a TV
	// proxy can wrap it — the raw resolved link is not considered safely
	// playable on its own
	if tvProxyBase != "" {
		if resolved := a.dynamicLink(ctx, ch.Name); resolved != "" {
			out = append(out, types.StreamCandidate{
				URL:         wrapTVProxy(tvProxyBase, resolved),
				Title:       ch.Name + " (live)",
				SourceLabel: "TV",
				Proxied:     true,
			})
		}
	}

	return out
}

// staticCandidate applies the free-to-air / generic-proxy / direct cascade
// to a single static link.
func (a *Assembler) staticCandidate(ch channels.Channel, link, title, proxyBase, proxyPassword string) types.StreamCandidate {
	// free-to-air channels are never wrapped, whatever is configured
	if ch.FreeToAir {
		return types.StreamCandidate{URL: link, Title: title, SourceLabel: "TV"}
	}

	if proxyBase != "" && proxyPassword != "" {
		return types.StreamCandidate{
			URL:         wrapGenericProxy(proxyBase, proxyPassword, link),
			Title:       title,
			SourceLabel: "TV",
			Proxied:     true,
		}
	}

	// last resort: the unmodified link
	return types.StreamCandidate{URL: link, Title: title, SourceLabel: "TV"}
}

// dynamicLink consults the link cache, falling back to a synchronous
// single-name resolve only for the cold-start window when the cache has
// never been populated.
func (a *Assembler) dynamicLink(ctx context.Context, name string) string {
	if resolved := a.cache.Resolve(name); resolved != "" {
		return resolved
	}
	if !a.cache.Populated() {
		return a.cache.ResolveUncached(ctx, name)
	}
	return ""
}

// wrapGenericProxy builds the generic proxy URL for a link. The proxy route
// depends on the content type: manifests go through the mpd endpoint,
// everything else through the generic stream endpoint.
func wrapGenericProxy(base, password, link string) string {
	route := "/proxy/stream/"
	if strings.Contains(strings.ToLower(link), ".mpd") {
		route = "/proxy/mpd/"
	}

	query := url.Values{}
	query.Set("api_password", password)
	query.Set("d", link)
	return strings.TrimRight(base, "/") + route + "?" + query.Encode()
}

// wrapTVProxy builds the TV-specific proxy URL for a link.
func wrapTVProxy(base, link string) string {
	return strings.TrimRight(base, "/") + "/proxy/m3u?url=" + url.QueryEscape(link)
}
