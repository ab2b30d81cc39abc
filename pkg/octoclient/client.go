// Package octoclient implements the Transport Gate: the single place this
// module sends HTTP requests to the upstream API. It owns the cookie/header
// construction, the transport knobs the upstream API is picky about, and
// tags each failure with a scrapeerrors code (transient fetch or rejected
// credential).
package octoclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/matzehuels/octoscrape/pkg/observability"
	"github.com/matzehuels/octoscrape/pkg/scrapeerrors"
)

const defaultTimeout = 10 * time.Second

// Client posts GraphQL request bodies built by pkg/codec to the upstream
// endpoint and returns the raw response bytes for pkg/codec to parse.
//
// Client is safe for concurrent use by multiple goroutines: the underlying
// http.Client and cookie jar are both goroutine-safe, and headers are fixed
// at construction time.
type Client struct {
	http      *http.Client
	endpoint  string
	userAgent string
	cookie    string
}

// New builds a Client. The upstream API is sensitive to redirect handling
// and protocol version, so the transport is pinned the way the reference
// scraper's reqwest client pins it: redirects disabled, HTTP/1.1 forced, a
// cookie jar for _px continuity across requests, and a 10s timeout.
func New(endpoint, userAgent, pxCookie string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				ForceAttemptHTTP2: false,
				// Empty (non-nil) TLSNextProto disables the automatic HTTP/2
				// upgrade, pinning every connection to HTTP/1.1.
				TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
			},
		},
		endpoint:  endpoint,
		userAgent: userAgent,
		cookie:    pxCookie,
	}
}

// SetCredential updates the _px cookie value used for subsequent requests.
// Safe to call between batches once all in-flight requests from the prior
// batch have completed (see pkg/arguments for the RWMutex discipline that
// guarantees this).
func (c *Client) SetCredential(pxCookie string) {
	c.cookie = pxCookie
}

// Post sends body to the configured endpoint and returns the raw response
// bytes. 401 and 403 responses (most commonly an expired _px cookie) are
// reported as [scrapeerrors.ErrCodeCredentialRefreshFailed]; network
// failures and every other non-200 status are reported as
// [scrapeerrors.ErrCodeFetchTransient]. The callers (pkg/taskrunner's
// batch-gate and AttributeScraper.Discover) treat both codes alike: they
// refresh the credential and retry the request.
func (c *Client) Post(ctx context.Context, body []byte) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeInternal, err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != "" {
		req.Header.Set("Cookie", fmt.Sprintf("_px=%s", c.cookie))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	observability.HTTP().OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeFetchTransient, err, "sending request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.HTTP().OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, scrapeerrors.Wrap(scrapeerrors.ErrCodeFetchTransient, err, "reading response body")
	}

	observability.HTTP().OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeCredentialRefreshFailed, "credential rejected: status %d", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeFetchTransient, "upstream status %d", resp.StatusCode)
	default:
		return nil, scrapeerrors.New(scrapeerrors.ErrCodeFetchTransient, "unexpected status %d", resp.StatusCode)
	}
}
