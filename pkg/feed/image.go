package feed

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/postkit/pkg/domain"
)

// DefaultImageExt is used when neither the URL nor the response tells the image type
const DefaultImageExt = ".jpg"

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// ResolveImage returns the best candidate image URL for the entry, or empty string.
// Structured references win over markup: image enclosures, media:content, media:thumbnail,
// the item image, then the first <img src> in the summary or content.
// It does no network I/O.
func ResolveImage(entry domain.FeedEntry) string {
	hint := entry.ImageHint
	for _, enc := range hint.Enclosures {
		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") {
			return absURL(entry.Link, enc.URL)
		}
	}
	for _, m := range hint.Media {
		if isImageMedia(m) {
			return absURL(entry.Link, m.URL)
		}
	}
	if len(hint.Thumbnails) > 0 {
		return absURL(entry.Link, hint.Thumbnails[0])
	}
	if hint.ItemImage != "" {
		return absURL(entry.Link, hint.ItemImage)
	}
	for _, markup := range []string{entry.Summary, entry.Content} {
		if src := firstImgSrc(markup); src != "" {
			return absURL(entry.Link, src)
		}
	}
	return ""
}

// isImageMedia accepts media:content with image medium or type, or with neither set
func isImageMedia(m domain.Enclosure) bool {
	switch {
	case m.Medium != "":
		return strings.EqualFold(m.Medium, "image")
	case m.Type != "":
		return strings.HasPrefix(strings.ToLower(m.Type), "image/")
	default:
		return true
	}
}

// firstImgSrc finds the first usable <img src> in an HTML fragment
func firstImgSrc(markup string) string {
	if !strings.Contains(markup, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v := strings.TrimSpace(s.AttrOr("src", ""))
		if v == "" || strings.HasPrefix(v, "data:") {
			return true
		}
		src = v
		return false
	})
	return src
}

// absURL resolves ref against the entry link when ref is relative
func absURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ref
	}
	return b.ResolveReference(r).String()
}

// ImageExt returns the lower-cased image extension from the URL path, or empty string if unknown
func ImageExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if imageExts[ext] {
		return ext
	}
	return ""
}

// ContentTypeExt maps an image content type to an extension, or empty string if unknown
func ContentTypeExt(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return ""
	}
	switch mt {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ""
}
