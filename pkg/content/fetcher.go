package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/umputun/postkit/pkg/domain"
)

// DefaultMaxBodySize limits a single downloaded resource
const DefaultMaxBodySize = 20 << 20

// Response is a downloaded resource
type Response struct {
	URL         string
	ContentType string
	Body        []byte
}

// HTTPFetcher downloads article pages and images. It never retries.
type HTTPFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// NewHTTPFetcher creates a new fetcher with per-request timeout and user agent
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		timeout:     timeout,
		userAgent:   userAgent,
		maxBodySize: DefaultMaxBodySize,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithMaxBodySize sets the body size limit, larger responses are rejected with domain.ErrFetchNetwork
func (f *HTTPFetcher) WithMaxBodySize(n int64) *HTTPFetcher {
	f.maxBodySize = n
	return f
}

// Fetch downloads urlStr. Errors are classified as domain.ErrFetchTimeout,
// domain.ErrFetchNetwork or *domain.HTTPError (domain.ErrFetchHTTP).
func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string) (*Response, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse URL: %w", domain.ErrFetchNetwork, err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", domain.ErrFetchNetwork, urlStr)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", domain.ErrFetchNetwork, err)
	}
	addBrowserHeaders(req)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("fetch %s: %w", urlStr, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &domain.HTTPError{StatusCode: resp.StatusCode, URL: urlStr}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read body of %s: %w", urlStr, err))
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: body of %s exceeds %d bytes", domain.ErrFetchNetwork, urlStr, f.maxBodySize)
	}

	// relative links resolve against the final location after redirects
	finalURL := urlStr
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{URL: finalURL, ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// classify maps a transport error to the fetch error taxonomy
func classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrFetchTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", domain.ErrFetchTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrFetchNetwork, err)
	}
}
