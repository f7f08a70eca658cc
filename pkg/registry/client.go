package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	lberrors "github.com/matzehuels/livebundle/pkg/errors"
	"github.com/matzehuels/livebundle/pkg/observability"
)

const (
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes caps a single module file.
	maxBodyBytes = 32 << 20

	userAgent = "livebundle"
)

// Options configures a [Client].
type Options struct {
	// Timeout bounds each request. Zero selects DefaultTimeout.
	Timeout time.Duration
	// Headers are applied to every request.
	Headers map[string]string
	// HTTPClient overrides the transport. Its own Timeout is left untouched;
	// the per-request deadline is applied through the request context.
	HTTPClient *http.Client
}

// Client fetches registry files.
type Client struct {
	http    *http.Client
	timeout time.Duration
	headers map[string]string
}

// Response is a successfully fetched file.
type Response struct {
	Body []byte
	// URL is the final URL after redirects.
	URL string
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc, timeout: opts.Timeout, headers: opts.Headers}
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Fetch performs a GET of rawURL and returns the body and final URL.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, lberrors.Wrap(lberrors.ErrCodeInvalidInput, err, "build request for %s", rawURL)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := req.URL.Host, req.URL.Path
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodGet, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodGet, host, path, err)
		return nil, classify(ctx, rawURL, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(rawURL, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}
	if len(body) > maxBodyBytes {
		return nil, lberrors.New(lberrors.ErrCodeUnsupported, "%s exceeds %d bytes", rawURL, maxBodyBytes)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return &Response{Body: body, URL: final}, nil
}

func checkStatus(rawURL string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	se := &lberrors.StatusError{URL: rawURL, StatusCode: code}
	return lberrors.Wrap(se.Code(), se, "fetch %s", rawURL)
}

func classify(ctx context.Context, rawURL string, err error) error {
	var uerr *url.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &uerr) && uerr.Timeout()) {
		return lberrors.Wrap(lberrors.ErrCodeTimeout, err, "fetch %s", rawURL)
	}
	return lberrors.Wrap(lberrors.ErrCodeNetwork, err, "fetch %s", rawURL)
}
