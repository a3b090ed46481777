package caption

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmServer(t *testing.T, failures int32, reply string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-chat", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Contains(t, req.Messages[1].Content, "Title: Zero Day")
			assert.Contains(t, req.Messages[1].Content, "article body")
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}}},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func testSummarizer(url string) *Summarizer {
	return NewSummarizer(SummarizerConfig{
		Endpoint:   url,
		APIKey:     "test-key",
		Model:      "deepseek-chat",
		Attempts:   3,
		RetryDelay: 10 * time.Millisecond,
		Timeout:    time.Second,
	})
}

func TestSummarizer_Summarize(t *testing.T) {
	server, calls := llmServer(t, 0, "  A short summary.  ")

	summary, err := testSummarizer(server.URL).Summarize(context.Background(), "Zero Day", "article body")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSummarizer_Retry(t *testing.T) {
	t.Run("recovers after transient failures", func(t *testing.T) {
		server, calls := llmServer(t, 2, "summary")
		summary, err := testSummarizer(server.URL).Summarize(context.Background(), "Zero Day", "article body")
		require.NoError(t, err)
		assert.Equal(t, "summary", summary)
		assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		server, calls := llmServer(t, 10, "summary")
		_, err := testSummarizer(server.URL).Summarize(context.Background(), "Zero Day", "article body")
		require.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	})

	t.Run("empty reply is an error", func(t *testing.T) {
		server, _ := llmServer(t, 0, "   ")
		_, err := testSummarizer(server.URL).Summarize(context.Background(), "Zero Day", "article body")
		require.Error(t, err)
	})
}

func TestSummarizer_EmptyContent(t *testing.T) {
	_, err := testSummarizer("http://127.0.0.1:1").Summarize(context.Background(), "t", "  ")
	require.Error(t, err)
}
