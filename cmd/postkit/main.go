package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/umputun/postkit/pkg/caption"
	"github.com/umputun/postkit/pkg/config"
	"github.com/umputun/postkit/pkg/content"
	"github.com/umputun/postkit/pkg/domain"
	"github.com/umputun/postkit/pkg/feed"
	"github.com/umputun/postkit/pkg/pipeline"
	"github.com/umputun/postkit/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" description:"path to YAML config file"`

	Feed      string `short:"f" long:"feed" env:"FEED" description:"feed URL or local file, overrides config"`
	Out       string `short:"o" long:"out" env:"THN_OUT_DIR" description:"archive root directory, overrides config"`
	Date      string `short:"d" long:"date" description:"target date YYYY-MM-DD, today in the timezone if empty"`
	Timezone  string `long:"tz" env:"TIMEZONE" description:"timezone for date filtering, IANA name or offset like +05:30"`
	Max       int    `short:"m" long:"max" description:"max entries to process, overrides config"`
	Workers   int    `short:"w" long:"workers" description:"concurrent article workers, overrides config"`
	Overwrite bool   `long:"overwrite" description:"replace existing archive files"`
	LLM       bool   `long:"llm" description:"summarize captions with the configured LLM"`
	LLMKey    string `long:"llm-key" env:"DEEPSEEK_API_KEY" description:"LLM API key"`
	JSON      bool   `long:"json" description:"print the run summary as JSON"`

	Serve  bool   `long:"serve" description:"run the web server instead of a single run"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides config"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	var secrets []string
	if opts.LLMKey != "" {
		secrets = append(secrets, opts.LLMKey)
	}
	setupLog(opts.Debug, secrets...)
	color.NoColor = color.NoColor || opts.NoColor

	log.Printf("[INFO] starting postkit version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts, os.Stdout)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration and either serves the web front-end or performs one run
func run(ctx context.Context, opts Opts, out io.Writer) error {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	applyOverrides(cfg, opts)

	if cfg.LLM.Enabled && cfg.LLM.APIKey == "" {
		return errors.New("llm summaries need an api key, set llm.api_key or DEEPSEEK_API_KEY")
	}

	runner := makeRunner(cfg)
	defaults := pipeline.Request{
		FeedSource:   cfg.Feed.Source,
		OutputRoot:   cfg.Pipeline.OutputRoot,
		Timezone:     cfg.Feed.Timezone,
		MaxItems:     cfg.Pipeline.MaxItems,
		UserAgent:    cfg.Fetch.UserAgent,
		FetchTimeout: cfg.Fetch.Timeout,
		RunTimeout:   cfg.Pipeline.RunTimeout,
		Workers:      cfg.Pipeline.Workers,
		Overwrite:    cfg.Pipeline.Overwrite,
	}

	if opts.Serve {
		if err := os.MkdirAll(cfg.Pipeline.OutputRoot, 0o750); err != nil {
			return fmt.Errorf("failed to create archive root: %w", err)
		}
		srv := server.New(cfg, runner, defaults, revision, opts.Debug)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		log.Print("[INFO] shutdown complete")
		return nil
	}

	req := defaults
	loc, err := pipeline.ParseTimezone(req.Timezone)
	if err != nil {
		return err
	}
	req.TargetDate = pipeline.Today(loc)
	if opts.Date != "" {
		if req.TargetDate, err = domain.ParseDate(opts.Date); err != nil {
			return err
		}
	}

	summary, runErr := runner.Run(ctx, req)
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
	} else {
		report(out, summary)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// applyOverrides puts command line values over the config file values
func applyOverrides(cfg *config.Config, opts Opts) {
	if opts.Feed != "" {
		cfg.Feed.Source = opts.Feed
	}
	if opts.Out != "" {
		cfg.Pipeline.OutputRoot = opts.Out
	}
	if opts.Timezone != "" {
		cfg.Feed.Timezone = opts.Timezone
	}
	if opts.Max > 0 {
		cfg.Pipeline.MaxItems = opts.Max
	}
	if opts.Workers > 0 {
		cfg.Pipeline.Workers = opts.Workers
	}
	if opts.Overwrite {
		cfg.Pipeline.Overwrite = true
	}
	if opts.LLM {
		cfg.LLM.Enabled = true
	}
	if opts.LLMKey != "" {
		cfg.LLM.APIKey = opts.LLMKey
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
}

func makeRunner(cfg *config.Config) *pipeline.Runner {
	var summarizer pipeline.Summarizer
	if cfg.LLM.Enabled {
		summarizer = caption.NewSummarizer(caption.SummarizerConfig{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Words:       cfg.LLM.Words,
			Timeout:     cfg.LLM.Timeout,
			Attempts:    cfg.LLM.Attempts,
		})
	}

	return pipeline.NewRunner(pipeline.Config{
		Feeds: feed.NewSource(cfg.Feed.Timeout, cfg.Feed.UserAgent),
		Extractor: content.NewExtractor(content.Thresholds{
			Primary:     cfg.Extraction.Primary,
			Secondary:   cfg.Extraction.Secondary,
			Readability: cfg.Extraction.Readability,
		}),
		Captions: caption.NewBuilder(caption.Options{
			Budget:       cfg.Caption.Budget,
			SummaryLimit: cfg.Caption.SummaryLimit,
			Hashtags:     cfg.Caption.Hashtags,
		}),
		Summarizer:  summarizer,
		MaxBodySize: cfg.Fetch.MaxBodySize,
	})
}

// report prints a human readable run summary
func report(out io.Writer, s *domain.RunSummary) {
	okMark, failMark, warnMark := color.GreenString("ok"), color.RedString("failed"), color.YellowString("warning")

	fmt.Fprintf(out, "feed:    %s\n", s.FeedSource)
	fmt.Fprintf(out, "date:    %s (%s)\n", s.TargetDate, s.Timezone)
	if s.State == domain.RunFailed {
		fmt.Fprintf(out, "run %s: %s\n", failMark, s.Error)
		return
	}
	fmt.Fprintf(out, "archive: %s\n", s.DayDir)
	fmt.Fprintf(out, "entries: %d, matched: %d, succeeded: %d, failed: %d\n", s.TotalEntries, s.MatchedByDate, s.Succeeded, s.Failed)
	if s.Interrupted {
		fmt.Fprintf(out, "run interrupted by deadline, %d entries abandoned\n", s.Abandoned)
	}

	for _, o := range s.Outcomes {
		if o.Failed() {
			fmt.Fprintf(out, "  [%s] %s: %s\n", failMark, o.Entry.Title, o.Error)
		} else {
			fmt.Fprintf(out, "  [%s] %s -> %s (%s)\n", okMark, o.Entry.Title, strings.Join(artifacts(o.Paths), ", "), o.Strategy)
		}
		for _, w := range o.Warnings {
			fmt.Fprintf(out, "      %s: %s\n", warnMark, w)
		}
	}
}

func artifacts(p domain.ArtifactPaths) []string {
	res := []string{}
	for _, v := range []string{p.HTML, p.Text, p.Image, p.Caption} {
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(io.Discard), lgr.Err(io.Discard)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
