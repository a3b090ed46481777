// Package pipeline drives one archive run: load the feed, keep the entries published on the
// target day, then fetch, extract and write every entry's artifacts with bounded concurrency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/postkit/pkg/archive"
	"github.com/umputun/postkit/pkg/caption"
	"github.com/umputun/postkit/pkg/content"
	"github.com/umputun/postkit/pkg/domain"
	"github.com/umputun/postkit/pkg/feed"
)

// FeedLoader loads and parses a feed document
type FeedLoader interface {
	Load(ctx context.Context, source string) (*domain.Feed, error)
}

// Fetcher downloads article pages and images
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*content.Response, error)
}

// TextExtractor turns an article page into readable text
type TextExtractor interface {
	Extract(doc []byte, pageURL string) domain.ExtractionResult
}

// CaptionBuilder composes the caption artifact
type CaptionBuilder interface {
	Build(title, summary, link string) string
}

// Summarizer produces the caption body from the article text
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (string, error)
}

// Config holds the collaborators of a Runner. Feeds and Fetcher are optional,
// when empty they are created per run from the request's user agent and fetch timeout.
type Config struct {
	Feeds       FeedLoader
	Fetcher     Fetcher
	Extractor   TextExtractor
	Captions    CaptionBuilder
	Summarizer  Summarizer // optional
	MaxBodySize int64      // used by the per-run fetcher, 0 for default
}

// Runner executes pipeline runs. It keeps no per-run state, so concurrent runs are safe.
type Runner struct {
	feeds       FeedLoader
	fetcher     Fetcher
	extractor   TextExtractor
	captions    CaptionBuilder
	summarizer  Summarizer
	maxBodySize int64
}

// NewRunner makes a runner, missing extractor and caption builder get defaults
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		feeds:       cfg.Feeds,
		fetcher:     cfg.Fetcher,
		extractor:   cfg.Extractor,
		captions:    cfg.Captions,
		summarizer:  cfg.Summarizer,
		maxBodySize: cfg.MaxBodySize,
	}
	if r.extractor == nil {
		r.extractor = content.NewExtractor(content.DefaultThresholds)
	}
	if r.captions == nil {
		r.captions = caption.NewBuilder(caption.Options{})
	}
	return r
}

// run is the state of a single invocation
type run struct {
	req     Request
	alloc   *archive.Allocator
	feeds   FeedLoader
	fetcher Fetcher
}

// Run executes req. The summary is returned in every case; the error is non-nil only when
// the run could not process entries at all (invalid request, feed unavailable or empty).
// Per-entry failures are recorded on the outcomes.
func (r *Runner) Run(ctx context.Context, req Request) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{
		State:      domain.RunIdle,
		FeedSource: req.FeedSource,
		TargetDate: req.TargetDate,
		Timezone:   req.Timezone,
		StartedAt:  time.Now(),
		Outcomes:   []domain.ArticleOutcome{},
	}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	fail := func(err error) (*domain.RunSummary, error) {
		summary.State = domain.RunFailed
		summary.Error = err.Error()
		summary.ErrorKind = domain.ErrorKind(err)
		lgr.Printf("[WARN] run for %s failed: %v", req.FeedSource, err)
		return summary, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	summary.Timezone = req.Timezone
	loc, err := ParseTimezone(req.Timezone)
	if err != nil {
		return fail(err)
	}
	summary.DayDir = archive.DayDir(req.OutputRoot, req.TargetDate)

	if req.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.RunTimeout)
		defer cancel()
	}

	st := &run{req: req, alloc: archive.NewAllocator(req.OutputRoot, req.Overwrite), feeds: r.feeds, fetcher: r.fetcher}
	if st.feeds == nil {
		st.feeds = feed.NewSource(req.FetchTimeout, req.UserAgent)
	}
	if st.fetcher == nil {
		f := content.NewHTTPFetcher(req.FetchTimeout, req.UserAgent)
		if r.maxBodySize > 0 {
			f = f.WithMaxBodySize(r.maxBodySize)
		}
		st.fetcher = f
	}

	summary.State = domain.RunLoading
	lgr.Printf("[INFO] loading feed %s for %s (%s)", req.FeedSource, req.TargetDate, req.Timezone)
	fd, err := st.feeds.Load(ctx, req.FeedSource)
	if err != nil {
		return fail(err)
	}
	summary.TotalEntries = len(fd.Entries)

	summary.State = domain.RunFiltering
	entries := make([]domain.FeedEntry, 0, len(fd.Entries))
	for _, e := range fd.Entries {
		if InDay(e.Published, req.TargetDate, loc) {
			entries = append(entries, e)
		}
	}
	summary.MatchedByDate = len(entries)
	if req.MaxItems > 0 && len(entries) > req.MaxItems {
		entries = entries[:req.MaxItems]
	}
	lgr.Printf("[INFO] %d of %d entries published on %s, processing %d", summary.MatchedByDate, summary.TotalEntries,
		req.TargetDate, len(entries))

	summary.State = domain.RunProcessing
	outcomes, abandoned := r.process(ctx, st, entries)
	for i, out := range outcomes {
		if abandoned[i] {
			summary.Abandoned++
			continue
		}
		if out.Failed() {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.Outcomes = append(summary.Outcomes, out)
	}
	if summary.Abandoned > 0 {
		summary.Interrupted = true
		lgr.Printf("[WARN] run deadline reached, %d entries abandoned", summary.Abandoned)
	}

	summary.State = domain.RunCompleted
	lgr.Printf("[INFO] run completed, succeeded: %d, failed: %d, abandoned: %d", summary.Succeeded, summary.Failed, summary.Abandoned)
	return summary, nil
}

// process runs entries on a bounded pool. Results are indexed by position, so the order
// of outcomes is the feed order whatever the completion order.
func (r *Runner) process(ctx context.Context, st *run, entries []domain.FeedEntry) ([]domain.ArticleOutcome, []bool) {
	outcomes := make([]domain.ArticleOutcome, len(entries))
	abandoned := make([]bool, len(entries))

	var g errgroup.Group
	g.SetLimit(st.req.Workers)
	for i, entry := range entries {
		if ctx.Err() != nil {
			outcomes[i] = domain.ArticleOutcome{Entry: entry}
			abandoned[i] = true
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = domain.ArticleOutcome{Entry: entry}
				abandoned[i] = true
				return nil
			}
			out := r.processEntry(ctx, st, entry)
			if out.Stage != domain.StageRecorded && (errors.Is(out.Err, context.DeadlineExceeded) || errors.Is(out.Err, context.Canceled)) {
				abandoned[i] = true
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
	return outcomes, abandoned
}

// processEntry moves one entry through fetch, extract, image, write. A failure stops only
// this entry; whatever was written before it stays recorded on the outcome.
func (r *Runner) processEntry(ctx context.Context, st *run, entry domain.FeedEntry) (out domain.ArticleOutcome) {
	out = domain.ArticleOutcome{Entry: entry, Stage: domain.StageFetching}
	defer func() {
		if out.Failed() {
			lgr.Printf("[WARN] entry %q failed at %s: %v", entry.Title, out.Stage, out.Err)
			return
		}
		lgr.Printf("[DEBUG] entry %q recorded as %s, strategy %q", entry.Title, out.Slug, out.Strategy)
	}()

	page, err := st.fetcher.Fetch(ctx, entry.Link)
	if err != nil {
		out.Fail(interrupted(ctx, fmt.Errorf("fetch article: %w", err)))
		return out
	}

	out.Stage = domain.StageExtracting
	res := r.extractor.Extract(page.Body, page.URL)
	out.Strategy = res.Strategy
	if !res.Success {
		out.Warn(fmt.Errorf("%w: best strategy %q gave %d characters", domain.ErrExtractionInsufficient,
			res.Strategy, len([]rune(res.Text))).Error())
	}

	out.Stage = domain.StageImageFetching
	img := r.fetchImage(ctx, st, &out)

	captionText := ""
	if res.Success {
		captionText = r.captions.Build(entry.Title, r.captionBody(ctx, entry, res, &out), entry.Link)
	}

	if ctx.Err() != nil {
		out.Fail(ctx.Err())
		return out
	}

	out.Stage = domain.StageWriting
	imgExt := feed.DefaultImageExt
	if img != nil {
		imgExt = img.ext
	}
	slot, err := st.alloc.Reserve(st.req.TargetDate, entry.Title, entry.Link, ".html", ".md", imgExt, ".txt")
	if err != nil {
		out.Fail(err)
		return out
	}
	out.Slug = slot.Slug

	write := func(ext string, data []byte, dst *string) bool {
		if err := archive.WriteFile(slot.Path(ext), data, st.req.Overwrite); err != nil {
			out.Fail(err)
			return false
		}
		*dst = slot.Rel(ext)
		return true
	}

	if !write(".html", page.Body, &out.Paths.HTML) {
		return out
	}
	if res.Success {
		if !write(".md", []byte(content.Markdown(res, entry.Title, entry.Link)), &out.Paths.Text) {
			return out
		}
	}
	if img != nil {
		if !write(img.ext, img.data, &out.Paths.Image) {
			return out
		}
	}
	if res.Success {
		if !write(".txt", []byte(captionText), &out.Paths.Caption) {
			return out
		}
	}

	out.Stage = domain.StageRecorded
	return out
}

type imageData struct {
	data []byte
	ext  string
}

// fetchImage downloads the entry image, problems become warnings
func (r *Runner) fetchImage(ctx context.Context, st *run, out *domain.ArticleOutcome) *imageData {
	imageURL := feed.ResolveImage(out.Entry)
	if imageURL == "" {
		out.Warn("no image found in feed entry")
		return nil
	}
	out.ImageURL = imageURL

	resp, err := st.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		out.Warn(fmt.Sprintf("image fetch failed: %v", err))
		return nil
	}
	if len(resp.Body) == 0 {
		out.Warn("image response is empty")
		return nil
	}

	ext := feed.ImageExt(imageURL)
	if ext == "" {
		ext = feed.ContentTypeExt(resp.ContentType)
	}
	if ext == "" {
		ext = feed.DefaultImageExt
	}
	return &imageData{data: resp.Body, ext: ext}
}

// captionBody is the LLM summary of the article when a summarizer is set, the feed summary otherwise
func (r *Runner) captionBody(ctx context.Context, entry domain.FeedEntry, res domain.ExtractionResult, out *domain.ArticleOutcome) string {
	if r.summarizer == nil {
		return entry.Summary
	}
	summary, err := r.summarizer.Summarize(ctx, entry.Title, res.Text)
	if err != nil {
		out.Warn(fmt.Sprintf("summarizer failed, using feed summary: %v", err))
		return entry.Summary
	}
	return summary
}

// interrupted replaces err with the run context error when the run deadline caused it
func interrupted(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
