package content

import (
	"math/rand"
	"net/http"
	"path"
	"strings"
)

const (
	acceptPage  = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptImage = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// acceptLanguages rotates between a few plausible reader locales
var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-IN,en;q=0.9,hi;q=0.8",
}

// addBrowserHeaders makes the request look like a browser loading a page or an image.
// Accept-Encoding is left to the transport so gzip responses are decoded transparently.
func addBrowserHeaders(req *http.Request) {
	dest, mode, accept := "document", "navigate", acceptPage
	if isImagePath(req.URL.Path) {
		dest, mode, accept = "image", "no-cors", acceptImage
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // header variation only
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", dest)
	req.Header.Set("Sec-Fetch-Mode", mode)
	req.Header.Set("Sec-Fetch-Site", "none")
	if dest == "document" {
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
}

func isImagePath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif", ".svg":
		return true
	}
	return false
}
