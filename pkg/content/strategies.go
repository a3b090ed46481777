package content

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/umputun/postkit/pkg/domain"
)

// nonContentSelectors lists elements to strip before extracting body text
const nonContentSelectors = "script, style, noscript, template, iframe, nav, header, footer, aside, form"

// blockSelectors are block-level elements concatenated by the primary strategy
const blockSelectors = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, figcaption, td"

// primaryStrategy picks a known article container and joins its block-level text
type primaryStrategy struct {
	containers []string
	minLen     int
}

func newPrimaryStrategy(minLen int) primaryStrategy {
	return primaryStrategy{
		containers: []string{
			"article",
			"div[id^='post-body'], div[id^='Post-body']",
			"div.post-body.entry-content",
			"[itemprop='articleBody']",
			"div.articlebody, div.article-body, div.entry-content",
			"main",
		},
		minLen: minLen,
	}
}

func (primaryStrategy) Name() domain.Strategy { return domain.StrategyPrimary }

// Extract returns the first container with enough text, or the longest one
func (p primaryStrategy) Extract(doc []byte, _ *url.URL) (Candidate, error) {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return Candidate{}, fmt.Errorf("parse html: %w", err)
	}
	d.Find(nonContentSelectors).Remove()

	var best Candidate
	for _, sel := range p.containers {
		node := d.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := blockText(node)
		if utf8.RuneCountInString(text) <= utf8.RuneCountInString(best.Text) {
			continue
		}
		outer, err := goquery.OuterHtml(node)
		if err != nil {
			outer = ""
		}
		best = Candidate{Text: text, HTML: outer}
		if utf8.RuneCountInString(text) >= p.minLen {
			break
		}
	}
	return best, nil
}

// blockText joins text of block-level descendants, falling back to the full node text
func blockText(node *goquery.Selection) string {
	var parts []string
	node.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		// nested blocks (p inside li, li inside td) are covered by their ancestor
		if s.ParentsUntilSelection(node).Filter(blockSelectors).Length() > 0 {
			return
		}
		if t := collapseSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return collapseSpace(node.Text())
	}
	return strings.Join(parts, "\n\n")
}

// secondaryStrategy walks every text node of the document, skipping only non-visible subtrees
type secondaryStrategy struct{}

func (secondaryStrategy) Name() domain.Strategy { return domain.StrategySecondary }

func (secondaryStrategy) Extract(doc []byte, _ *url.URL) (Candidate, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return Candidate{}, fmt.Errorf("parse html: %w", err)
	}

	var paragraphs []string
	var cur strings.Builder
	flush := func() {
		if t := collapseSpace(cur.String()); t != "" {
			paragraphs = append(paragraphs, t)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head, atom.Svg, atom.Iframe:
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(root)
	flush()

	return Candidate{Text: strings.Join(paragraphs, "\n\n")}, nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer, atom.Aside,
		atom.Nav, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Li, atom.Ul, atom.Ol,
		atom.Blockquote, atom.Pre, atom.Table, atom.Tr, atom.Td, atom.Th, atom.Br, atom.Figure,
		atom.Figcaption, atom.Body:
		return true
	}
	return false
}

// readabilityStrategy detects the main content by text density using trafilatura,
// with its readability and dom-distiller fallbacks enabled
type readabilityStrategy struct{}

func (readabilityStrategy) Name() domain.Strategy { return domain.StrategyReadability }

func (readabilityStrategy) Extract(doc []byte, pageURL *url.URL) (Candidate, error) {
	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     pageURL,
	}

	result, err := trafilatura.Extract(bytes.NewReader(doc), opts)
	if err != nil {
		return Candidate{}, fmt.Errorf("trafilatura extract: %w", err)
	}
	if result == nil {
		return Candidate{}, errors.New("no content extracted")
	}

	cand := Candidate{Text: strings.TrimSpace(result.ContentText)}
	if result.ContentNode != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, result.ContentNode); err == nil {
			cand.HTML = buf.String()
		}
	}
	return cand, nil
}

// collapseSpace replaces whitespace runs with a single space
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
