package client

import (
	"net/http"
	"time"

	"go.uber.org/ratelimit"
)

// defaultUserAgent is sent on every outbound request unless overridden.
// Some upstream providers reject requests without a browser-looking agent.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// HeaderSettingClient wraps http.Client to stamp a consistent header set on
// every outbound request and to pace calls through a shared rate limiter so
// bursts of concurrent stream resolutions do not hammer a single upstream.
type HeaderSettingClient struct {
	Client    *http.Client
	limiter   ratelimit.Limiter
	userAgent string
}

// New creates a client limited to perSecond outbound requests. Individual
// calls are bounded by the caller's request context, not by a client-wide
// timeout, so long provider calls and short resolver probes can share one
// transport.
func New(perSecond int) *HeaderSettingClient {
	if perSecond <= 0 {
		perSecond = 10
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
	}

	return &HeaderSettingClient{
		Client:    httpClient,
		limiter:   ratelimit.New(perSecond),
		userAgent: defaultUserAgent,
	}
}

// Do paces the request through the rate limiter, applies the standard
// headers, and executes it. Cancellation flows through the request context.
func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.limiter.Take()
	hsc.setHeaders(req)
	return hsc.Client.Do(req)
}

// setHeaders applies the standard outbound header set without clobbering
// headers the caller set explicitly.
func (hsc *HeaderSettingClient) setHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", hsc.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	req.Header.Set("Connection", "keep-alive")
}
