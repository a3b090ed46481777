package feed

import "net/http"

const acceptFeed = "application/rss+xml,application/atom+xml,application/feed+json,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5"

// addFeedHeaders asks for any of the supported feed variants
func addFeedHeaders(req *http.Request) {
	req.Header.Set("Accept", acceptFeed)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}
