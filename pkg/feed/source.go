package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/umputun/postkit/pkg/domain"
)

var maxFeedSize int64 = 32 << 20

// Source loads RSS/Atom feeds from an URL or a local file
type Source struct {
	client    *http.Client
	userAgent string
}

// NewSource creates a new feed source
func NewSource(timeout time.Duration, userAgent string) *Source {
	return &Source{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Load reads the feed document from source and returns its entries in document order.
// A source that exists on disk, or uses the file:// scheme, is read as a local file.
func (s *Source) Load(ctx context.Context, source string) (*domain.Feed, error) {
	data, err := s.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedUnavailable, err)
	}

	feed, err := parse(data)
	if err != nil {
		return nil, err
	}
	lgr.Printf("[DEBUG] loaded %s feed %q with %d entries from %s", feed.Kind, feed.Title, len(feed.Entries), source)
	return feed, nil
}

// read returns the raw feed document
func (s *Source) read(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("empty feed source")
	}
	if path, ok := localPath(source); ok {
		data, err := os.ReadFile(path) //nolint:gosec // feed path is provided by the caller
		if err != nil {
			return nil, fmt.Errorf("read feed file: %w", err)
		}
		return data, nil
	}

	body, err := s.fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	if int64(len(data)) > maxFeedSize {
		return nil, fmt.Errorf("feed body exceeds %d bytes", maxFeedSize)
	}
	return data, nil
}

// fetch retrieves content from a URL
func (s *Source) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)

	addFeedHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &domain.HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	return resp.Body, nil
}

// localPath decides whether source refers to a file on disk
func localPath(source string) (string, bool) {
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return "", false
		}
		return u.Path, true
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return "", false
	}
	if _, err := os.Stat(source); err == nil || !strings.Contains(source, "://") {
		return source, true
	}
	return "", false
}

// kinds maps detected document root types to feed variants
var kinds = map[gofeed.FeedType]domain.FeedKind{
	gofeed.FeedTypeRSS:  domain.FeedKindRSS,
	gofeed.FeedTypeAtom: domain.FeedKindAtom,
	gofeed.FeedTypeJSON: domain.FeedKindJSON,
}

// parse detects the feed variant by its root element and normalizes its items
func parse(data []byte) (*domain.Feed, error) {
	kind, ok := kinds[gofeed.DetectFeedType(bytes.NewReader(data))]
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized feed document", domain.ErrFeedUnavailable)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s feed: %w", domain.ErrFeedUnavailable, kind, err)
	}
	if len(parsed.Items) == 0 {
		return nil, fmt.Errorf("%w: %s document %q has no items", domain.ErrFeedFormat, kind, parsed.Title)
	}

	result := &domain.Feed{
		Title:   parsed.Title,
		Link:    parsed.Link,
		Kind:    kind,
		Entries: make([]domain.FeedEntry, 0, len(parsed.Items)),
	}
	for i, item := range parsed.Items {
		result.Entries = append(result.Entries, toEntry(i, item))
	}
	return result, nil
}

// toEntry converts a gofeed item into a feed entry
func toEntry(idx int, item *gofeed.Item) domain.FeedEntry {
	entry := domain.FeedEntry{
		Title:     strings.TrimSpace(item.Title),
		Link:      strings.TrimSpace(item.Link),
		Summary:   item.Description,
		Content:   item.Content,
		FeedIndex: idx,
	}

	// set published time
	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		entry.ImageHint.Enclosures = append(entry.ImageHint.Enclosures, domain.Enclosure{URL: enc.URL, Type: enc.Type})
	}
	if item.Image != nil {
		entry.ImageHint.ItemImage = item.Image.URL
	}
	if media, ok := item.Extensions["media"]; ok {
		entry.ImageHint.Media, entry.ImageHint.Thumbnails = mediaRefs(media)
	}
	return entry
}

// mediaRefs collects media:content and media:thumbnail references, including ones nested in media:group
func mediaRefs(media map[string][]ext.Extension) (contents []domain.Enclosure, thumbs []string) {
	for _, c := range media["content"] {
		if u := c.Attrs["url"]; u != "" {
			contents = append(contents, domain.Enclosure{URL: u, Type: c.Attrs["type"], Medium: c.Attrs["medium"]})
		}
	}
	for _, t := range media["thumbnail"] {
		if u := t.Attrs["url"]; u != "" {
			thumbs = append(thumbs, u)
		}
	}
	for _, g := range media["group"] {
		c, t := mediaRefs(g.Children)
		contents = append(contents, c...)
		thumbs = append(thumbs, t...)
	}
	return contents, thumbs
}
