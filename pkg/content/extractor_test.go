package content

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/postkit/pkg/domain"
)

const sentence = "Researchers disclosed a critical vulnerability affecting widely deployed routers. "

func paragraphs(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("<p>" + strings.Repeat(sentence, 2) + "</p>\n")
	}
	return sb.String()
}

func TestExtractor_Primary(t *testing.T) {
	doc := `<html><head><title>t</title><script>var x = "script text";</script></head><body>
		<nav>Home | News | About</nav>
		<article>
			<h1>Zero Day Exploit Found</h1>
			<nav>inner navigation</nav>
			` + paragraphs(4) + `
			<style>.x{color:red}</style>
		</article>
		<footer>Copyright footer</footer>
	</body></html>`

	res := NewExtractor(DefaultThresholds).Extract([]byte(doc), "https://example.com/post")
	require.True(t, res.Success)
	assert.Equal(t, domain.StrategyPrimary, res.Strategy)
	assert.True(t, strings.HasPrefix(res.Text, "Zero Day Exploit Found\n\n"), res.Text)
	assert.Contains(t, res.Text, "critical vulnerability")
	assert.NotContains(t, res.Text, "inner navigation")
	assert.NotContains(t, res.Text, "script text")
	assert.NotContains(t, res.Text, "color:red")
	assert.NotContains(t, res.Text, "Copyright footer")
	assert.NotContains(t, res.Text, "  ", "whitespace collapsed")
	assert.Contains(t, res.HTML, "<article>")
}

func TestExtractor_BloggerContainer(t *testing.T) {
	doc := `<html><body><div class="sidebar">links</div>
		<div id="post-body-123">` + paragraphs(3) + `</div></body></html>`

	res := NewExtractor(DefaultThresholds).Extract([]byte(doc), "")
	require.True(t, res.Success)
	assert.Equal(t, domain.StrategyPrimary, res.Strategy)
	assert.NotContains(t, res.Text, "links")
}

func TestExtractor_SecondaryWhenNoContainer(t *testing.T) {
	doc := `<html><body><div class="wrap"><div>` + strings.Repeat(sentence, 5) + `</div>
		<div><span>` + strings.Repeat(sentence, 5) + `</span></div></div>
		<script>ignored()</script></body></html>`

	res := NewExtractor(DefaultThresholds).Extract([]byte(doc), "https://example.com/post")
	require.True(t, res.Success)
	assert.Equal(t, domain.StrategySecondary, res.Strategy)
	assert.Contains(t, res.Text, "critical vulnerability")
	assert.NotContains(t, res.Text, "ignored()")
	assert.Empty(t, res.HTML)
}

func TestExtractor_SecondaryWhenContainerTooShort(t *testing.T) {
	doc := `<html><body><article><p>short teaser</p></article>
		<div>` + strings.Repeat(sentence, 10) + `</div></body></html>`

	res := NewExtractor(DefaultThresholds).Extract([]byte(doc), "")
	require.True(t, res.Success)
	assert.Equal(t, domain.StrategySecondary, res.Strategy)
	assert.Contains(t, res.Text, "short teaser")
}

func TestExtractor_NoText(t *testing.T) {
	for _, doc := range []string{"", "<html><body></body></html>", "<html><head><script>x()</script></head><body><img src='a.png'></body></html>"} {
		t.Run(doc, func(t *testing.T) {
			var res domain.ExtractionResult
			require.NotPanics(t, func() {
				res = NewExtractor(DefaultThresholds).Extract([]byte(doc), "https://example.com/")
			})
			assert.False(t, res.Success)
			assert.Empty(t, strings.TrimSpace(res.Text))
		})
	}
}

func TestExtractor_ShortTextReturnsBest(t *testing.T) {
	doc := `<html><body><article><p>Only a short note here.</p></article></body></html>`
	res := NewExtractor(DefaultThresholds).Extract([]byte(doc), "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Text, "Only a short note here.")
}

type fakeStrategy struct {
	name domain.Strategy
	text string
	err  error
	hits *[]domain.Strategy
}

func (f fakeStrategy) Name() domain.Strategy { return f.name }

func (f fakeStrategy) Extract([]byte, *url.URL) (Candidate, error) {
	*f.hits = append(*f.hits, f.name)
	return Candidate{Text: f.text}, f.err
}

func TestExtractor_Chain(t *testing.T) {
	t.Run("first sufficient candidate wins and stops the chain", func(t *testing.T) {
		var hits []domain.Strategy
		e := &Extractor{}
		e.Add(fakeStrategy{name: "a", text: "tiny", hits: &hits}, 10)
		e.Add(fakeStrategy{name: "b", err: errors.New("boom"), hits: &hits}, 1)
		e.Add(fakeStrategy{name: "c", text: "long enough text", hits: &hits}, 10)
		e.Add(fakeStrategy{name: "d", text: "never called at all", hits: &hits}, 1)

		res := e.Extract([]byte("<p>x</p>"), "")
		assert.True(t, res.Success)
		assert.Equal(t, domain.Strategy("c"), res.Strategy)
		assert.Equal(t, []domain.Strategy{"a", "b", "c"}, hits)
	})

	t.Run("longest insufficient candidate returned", func(t *testing.T) {
		var hits []domain.Strategy
		e := &Extractor{}
		e.Add(fakeStrategy{name: "a", text: "abc", hits: &hits}, 100)
		e.Add(fakeStrategy{name: "b", text: "abcdef", hits: &hits}, 100)
		e.Add(fakeStrategy{name: "c", text: "ab", hits: &hits}, 100)

		res := e.Extract(nil, "")
		assert.False(t, res.Success)
		assert.Equal(t, "abcdef", res.Text)
		assert.Equal(t, domain.Strategy("b"), res.Strategy)
	})

	t.Run("threshold counts runes", func(t *testing.T) {
		var hits []domain.Strategy
		e := &Extractor{}
		e.Add(fakeStrategy{name: "a", text: "привет", hits: &hits}, 6)
		assert.True(t, e.Extract(nil, "").Success)
	})
}

func TestReadabilityStrategy(t *testing.T) {
	doc := `<!DOCTYPE html><html><head><title>Test Article</title></head><body>
		<div class="menu"><a href="/">Home</a> <a href="/news">News</a></div>
		<div class="content">
			<h1>Test Article Title</h1>` + paragraphs(5) + `
		</div></body></html>`

	u, err := url.Parse("https://example.com/test")
	require.NoError(t, err)
	cand, err := readabilityStrategy{}.Extract([]byte(doc), u)
	require.NoError(t, err)
	assert.Contains(t, cand.Text, "critical vulnerability")
}
