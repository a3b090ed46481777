package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.March, Day: 5}, d)
	assert.Equal(t, "2024-03-05", d.String())
	assert.False(t, d.IsZero())
	assert.True(t, Date{}.IsZero())

	_, err = ParseDate("2024-13-01")
	require.Error(t, err)

	loc := time.FixedZone("IST", 5*3600+30*60)
	assert.Equal(t, d, DateOf(time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC).In(loc)))

	data, err := json.Marshal(struct {
		D Date `json:"d"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-03-05"}`, string(data))

	var back struct {
		D Date `json:"d"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back.D)
	require.Error(t, json.Unmarshal([]byte(`{"d":"yesterday"}`), &back))
}

func TestErrorKind(t *testing.T) {
	tbl := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{fmt.Errorf("%w: refused", ErrFeedUnavailable), "feed_unavailable"},
		{ErrFeedFormat, "feed_format"},
		{fmt.Errorf("fetch article: %w", &HTTPError{StatusCode: 404, URL: "https://example.com"}), "fetch_http"},
		{fmt.Errorf("%w: %w", ErrFetchTimeout, context.DeadlineExceeded), "fetch_timeout"},
		{ErrFetchNetwork, "fetch_network"},
		{ErrExtractionInsufficient, "extraction_insufficient"},
		{fmt.Errorf("%w: open: denied", ErrFileSystem), "file_system"},
		{errors.New("something else"), "unknown"},
	}
	for _, tt := range tbl {
		assert.Equal(t, tt.kind, ErrorKind(tt.err), "%v", tt.err)
	}

	httpErr := &HTTPError{StatusCode: 503, URL: "https://example.com/a"}
	assert.Equal(t, "HTTP 503 for https://example.com/a", httpErr.Error())
	assert.ErrorIs(t, httpErr, ErrFetchHTTP)
}

func TestArticleOutcome(t *testing.T) {
	var o ArticleOutcome
	assert.False(t, o.Failed())
	assert.True(t, o.Paths.Empty())

	o.Warn("no image")
	assert.False(t, o.Failed())
	assert.Equal(t, []string{"no image"}, o.Warnings)

	o.Fail(&HTTPError{StatusCode: 404, URL: "u"})
	assert.True(t, o.Failed())
	assert.Equal(t, "HTTP 404 for u", o.Error)
	assert.Equal(t, "fetch_http", o.ErrorKind)

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Err"`)
	assert.Contains(t, string(data), `"error_kind":"fetch_http"`)
}

func TestDate_ZeroRoundTrip(t *testing.T) {
	data, err := json.Marshal(RunSummary{State: RunFailed})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"target_date":""`)

	var back RunSummary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.TargetDate.IsZero())
	assert.Equal(t, RunFailed, back.State)

	_, err = ParseDate("")
	require.Error(t, err, "empty string is not a valid date outside of JSON")
}
