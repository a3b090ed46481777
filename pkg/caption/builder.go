// Package caption composes short social-media captions for archived articles.
package caption

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultBudget       = 3000
	DefaultSummaryLimit = 900
	ellipsis            = "…"
	separator           = "\n\n"
)

// Options configures the caption layout
type Options struct {
	Budget       int    // max caption length in runes, including the trailing newline
	SummaryLimit int    // max summary length in runes before the budget is applied
	Hashtags     string // optional line appended after the link
}

// Builder composes "title, summary, link, hashtags" captions that never exceed the budget.
// It is safe for concurrent use.
type Builder struct {
	budget       int
	summaryLimit int
	hashtags     string
	policy       *bluemonday.Policy
}

// NewBuilder creates a caption builder, zero options get defaults
func NewBuilder(opts Options) *Builder {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.SummaryLimit <= 0 {
		opts.SummaryLimit = DefaultSummaryLimit
	}
	b := &Builder{
		budget:       opts.Budget,
		summaryLimit: opts.SummaryLimit,
		hashtags:     strings.TrimSpace(opts.Hashtags),
		policy:       bluemonday.StrictPolicy(),
	}
	b.policy.AddSpaceWhenStrippingTag(true)
	return b
}

// Build returns the caption. The summary is shortened first, then hashtags dropped,
// then the title shortened, so the link survives whenever it fits the budget.
func (b *Builder) Build(title, summary, link string) string {
	title = b.StripHTML(title)
	summary = truncate(b.StripHTML(summary), b.summaryLimit)
	link = strings.TrimSpace(link)

	if out := compose(title, summary, link, b.hashtags); runeLen(out) <= b.budget {
		return out
	}

	if summary != "" {
		room := b.budget - runeLen(compose(title, "", link, b.hashtags)) - runeLen(separator)
		if room >= 2 {
			return compose(title, truncate(summary, room), link, b.hashtags)
		}
	}

	if out := compose(title, "", link, ""); runeLen(out) <= b.budget {
		return out
	}

	if title != "" {
		room := b.budget - runeLen(compose("", "", link, "")) - runeLen(separator)
		if room >= 2 {
			return compose(truncate(title, room), "", link, "")
		}
	}

	return truncate(compose("", "", link, ""), b.budget)
}

// StripHTML removes all markup, decodes entities and collapses whitespace
func (b *Builder) StripHTML(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.policy.Sanitize(s))), " ")
}

func compose(title, summary, link, hashtags string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{title, summary, link, hashtags} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, separator) + "\n"
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis
func truncate(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return strings.TrimRight(string(r[:n-1]), " \n\t") + ellipsis
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
