package domain

import (
	"errors"
	"fmt"
)

// error taxonomy shared by all pipeline stages
var (
	ErrFeedUnavailable        = errors.New("feed unavailable")
	ErrFeedFormat             = errors.New("feed has no recognizable entries")
	ErrFetchTimeout           = errors.New("fetch timeout")
	ErrFetchHTTP              = errors.New("fetch http error")
	ErrFetchNetwork           = errors.New("fetch network error")
	ErrExtractionInsufficient = errors.New("extraction insufficient")
	ErrFileSystem             = errors.New("file system error")
)

// HTTPError is returned for a non-2xx response
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Unwrap makes errors.Is(err, ErrFetchHTTP) work for any status
func (e *HTTPError) Unwrap() error {
	return ErrFetchHTTP
}

// ErrorKind returns a stable name for the taxonomy class of err
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFeedUnavailable):
		return "feed_unavailable"
	case errors.Is(err, ErrFeedFormat):
		return "feed_format"
	case errors.Is(err, ErrFetchTimeout):
		return "fetch_timeout"
	case errors.Is(err, ErrFetchHTTP):
		return "fetch_http"
	case errors.Is(err, ErrFetchNetwork):
		return "fetch_network"
	case errors.Is(err, ErrExtractionInsufficient):
		return "extraction_insufficient"
	case errors.Is(err, ErrFileSystem):
		return "file_system"
	default:
		return "unknown"
	}
}
