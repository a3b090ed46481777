package content

import (
	"net/url"
	"unicode/utf8"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/postkit/pkg/domain"
)

// Candidate is the text a strategy produced
type Candidate struct {
	Text string
	HTML string
}

// Strategy converts a raw HTML document into article text
type Strategy interface {
	Name() domain.Strategy
	Extract(doc []byte, pageURL *url.URL) (Candidate, error)
}

// Thresholds is the minimal text length, in runes, each strategy must reach to be accepted
type Thresholds struct {
	Primary     int `yaml:"primary" json:"primary"`
	Secondary   int `yaml:"secondary" json:"secondary"`
	Readability int `yaml:"readability" json:"readability"`
}

// DefaultThresholds tuned for news article pages
var DefaultThresholds = Thresholds{Primary: 400, Secondary: 600, Readability: 200}

type rankedStrategy struct {
	Strategy
	minLen int
}

// Extractor runs strategies in order and picks the first candidate clearing its threshold
type Extractor struct {
	chain []rankedStrategy
}

// NewExtractor creates the default chain: selector based, text-node walk, readability
func NewExtractor(th Thresholds) *Extractor {
	e := &Extractor{}
	e.Add(newPrimaryStrategy(th.Primary), th.Primary)
	e.Add(secondaryStrategy{}, th.Secondary)
	e.Add(readabilityStrategy{}, th.Readability)
	return e
}

// Add appends a strategy with its acceptance threshold to the chain
func (e *Extractor) Add(s Strategy, minLen int) {
	e.chain = append(e.chain, rankedStrategy{Strategy: s, minLen: minLen})
}

// Extract returns the first sufficient candidate. When none is sufficient it returns
// the longest candidate with Success=false. It never fails.
func (e *Extractor) Extract(doc []byte, pageURL string) domain.ExtractionResult {
	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.IsAbs() {
		base = u
	}

	best, bestLen := domain.ExtractionResult{}, -1
	for _, s := range e.chain {
		cand, err := s.Extract(doc, base)
		if err != nil {
			lgr.Printf("[DEBUG] %s extraction failed for %s: %v", s.Name(), pageURL, err)
			continue
		}
		n := utf8.RuneCountInString(cand.Text)
		if n >= s.minLen && n > 0 {
			return domain.ExtractionResult{Text: cand.Text, HTML: cand.HTML, Strategy: s.Name(), Success: true}
		}
		lgr.Printf("[DEBUG] %s extraction for %s too short, %d < %d", s.Name(), pageURL, n, s.minLen)
		if n > bestLen {
			best, bestLen = domain.ExtractionResult{Text: cand.Text, HTML: cand.HTML, Strategy: s.Name()}, n
		}
	}
	return best
}
