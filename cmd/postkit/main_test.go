package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/postkit/pkg/config"
	"github.com/umputun/postkit/pkg/domain"
)

func TestRun_MissingConfig(t *testing.T) {
	err := run(context.Background(), Opts{Config: "non-existent-config.yml"}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid-config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0o600))

	err := run(context.Background(), Opts{Config: configPath}, &bytes.Buffer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load config")
}

func TestRun_LLMWithoutKey(t *testing.T) {
	err := run(context.Background(), Opts{LLM: true, Feed: "feed.xml", Out: t.TempDir()}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func siteServer(t *testing.T) *httptest.Server {
	t.Helper()
	article := "<html><body><article>" + strings.Repeat("<p>Threat actors abused a flaw in a popular VPN appliance to breach networks.</p>", 8) +
		"</article></body></html>"
	var ts *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>VPN Flaw Exploited</title><link>%[1]s/vpn</link><pubDate>Tue, 05 Mar 2024 06:00:00 +0000</pubDate>
<description>VPN appliances under attack</description></item>
<item><title>Gone</title><link>%[1]s/gone</link><pubDate>Tue, 05 Mar 2024 07:00:00 +0000</pubDate></item>
</channel></rss>`, ts.URL)
	})
	mux.HandleFunc("/vpn", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(article)) })
	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_OneShot(t *testing.T) {
	ts := siteServer(t)
	root := t.TempDir()

	var out bytes.Buffer
	opts := Opts{Feed: ts.URL + "/feed", Out: root, Date: "2024-03-05", Timezone: "UTC", NoColor: true}
	require.NoError(t, run(context.Background(), opts, &out))

	report := out.String()
	assert.Contains(t, report, "entries: 2, matched: 2, succeeded: 1, failed: 1")
	assert.Contains(t, report, "VPN Flaw Exploited -> 2024/03/05/vpn-flaw-exploited.html")
	assert.Contains(t, report, "Gone: fetch article: HTTP 404")

	data, err := os.ReadFile(filepath.Join(root, "2024", "03", "05", "vpn-flaw-exploited.txt"))
	require.NoError(t, err)
	assert.Equal(t, "VPN Flaw Exploited\n\nVPN appliances under attack\n\n"+ts.URL+"/vpn\n\n#cybersecurity #infosec #TheHackerNews\n", string(data))
}

func TestRun_OneShotJSON(t *testing.T) {
	ts := siteServer(t)

	var out bytes.Buffer
	opts := Opts{Feed: ts.URL + "/feed", Out: t.TempDir(), Date: "2024-03-05", Timezone: "UTC", Max: 1, JSON: true}
	require.NoError(t, run(context.Background(), opts, &out))

	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, domain.RunCompleted, summary.State)
	assert.Equal(t, 2, summary.MatchedByDate)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "2024/03/05/vpn-flaw-exploited.md", summary.Outcomes[0].Paths.Text)
}

func TestRun_FeedFailure(t *testing.T) {
	var out bytes.Buffer
	opts := Opts{Feed: filepath.Join(t.TempDir(), "missing.xml"), Out: t.TempDir(), Date: "2024-03-05"}
	err := run(context.Background(), opts, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run failed")
	assert.Contains(t, out.String(), "run failed")
}

func TestRun_BadDate(t *testing.T) {
	err := run(context.Background(), Opts{Feed: "feed.xml", Out: t.TempDir(), Date: "March 5"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}

func TestRun_ServerStartStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	root := filepath.Join(t.TempDir(), "archive")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- run(ctx, Opts{Serve: true, Listen: fmt.Sprintf("127.0.0.1:%d", port), Out: root}, &bytes.Buffer{})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/status", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.DirExists(t, root)
	cancel()
	require.NoError(t, <-serverErr)
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	applyOverrides(cfg, Opts{Feed: "f.xml", Out: "/out", Timezone: "UTC", Max: 3, Workers: 7, Overwrite: true,
		LLM: true, LLMKey: "key", Listen: ":9999"})

	assert.Equal(t, "f.xml", cfg.Feed.Source)
	assert.Equal(t, "/out", cfg.Pipeline.OutputRoot)
	assert.Equal(t, "UTC", cfg.Feed.Timezone)
	assert.Equal(t, 3, cfg.Pipeline.MaxItems)
	assert.Equal(t, 7, cfg.Pipeline.Workers)
	assert.True(t, cfg.Pipeline.Overwrite)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "key", cfg.LLM.APIKey)
	assert.Equal(t, ":9999", cfg.Server.Listen)

	untouched := config.Default()
	applyOverrides(untouched, Opts{})
	assert.Equal(t, config.Default(), untouched)
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	report(&out, &domain.RunSummary{State: domain.RunFailed, FeedSource: "f", Error: "feed unavailable: boom"})
	assert.Contains(t, out.String(), "feed unavailable: boom")

	out.Reset()
	report(&out, &domain.RunSummary{State: domain.RunCompleted, Interrupted: true, Abandoned: 2, Outcomes: []domain.ArticleOutcome{
		{Entry: domain.FeedEntry{Title: "A"}, Paths: domain.ArtifactPaths{HTML: "a.html"}, Warnings: []string{"no image"}},
	}})
	assert.Contains(t, out.String(), "2 entries abandoned")
	assert.Contains(t, out.String(), "A -> a.html")
	assert.Contains(t, out.String(), "no image")

	out.Reset()
	failed := domain.ArticleOutcome{Entry: domain.FeedEntry{Title: "B"}}
	failed.Fail(fmt.Errorf("%w: status 404", domain.ErrFetchHTTP))
	report(&out, &domain.RunSummary{State: domain.RunCompleted, Failed: 1, Outcomes: []domain.ArticleOutcome{failed}})
	assert.Contains(t, out.String(), "B: ")
	assert.Contains(t, out.String(), "status 404")
	assert.NotContains(t, out.String(), "B -> ")
}
