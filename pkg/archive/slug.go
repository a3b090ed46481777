package archive

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen bounds slug length, in bytes
const MaxSlugLen = 80

var (
	reApostrophe = regexp.MustCompile(`['’‘` + "`" + `]`)
	reSeparator  = regexp.MustCompile(`[\s\p{P}\p{S}_]+`)
	reDisallowed = regexp.MustCompile(`[^a-z0-9-]`)
	reDashes     = regexp.MustCompile(`-{2,}`)
)

// Slugify derives a filesystem and URL safe slug from s
func Slugify(s string) string {
	s = strings.ToLower(foldMarks(s))
	s = reApostrophe.ReplaceAllString(s, "")
	s = reSeparator.ReplaceAllString(s, "-")
	s = reDisallowed.ReplaceAllString(s, "")
	s = reDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	return s
}

// SlugFromURL derives a slug from the last meaningful path segment of rawURL, or its host
func SlugFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg, err := url.PathUnescape(segments[i])
		if err != nil {
			seg = segments[i]
		}
		seg = strings.TrimSuffix(seg, path.Ext(seg))
		if slug := Slugify(seg); slug != "" {
			return slug
		}
	}
	return Slugify(strings.TrimPrefix(u.Hostname(), "www."))
}

// foldMarks decomposes accented letters and drops the combining marks, so "é" becomes "e"
func foldMarks(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
