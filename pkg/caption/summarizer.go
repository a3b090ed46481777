package caption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/sashabaranov/go-openai"
)

// SummarizerConfig holds settings of an OpenAI-compatible chat completion endpoint
type SummarizerConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Words       int           // target summary length
	Timeout     time.Duration // per request
	Attempts    int
	RetryDelay  time.Duration // initial backoff delay
	MaxInput    int           // max runes of article text sent to the model
}

// Summarizer produces short article summaries with an LLM
type Summarizer struct {
	client *openai.Client
	cfg    SummarizerConfig
}

const summarySystemPrompt = `You are a concise cybersecurity news editor. Summarize the article faithfully and without hype.
Rules:
- Between %d and %d words.
- Cover what happened, who or what is affected, the impact, and any concrete mitigation or next steps.
- Plain text only: no emojis, no markdown headings, one or two short paragraphs.
- Never invent details. If unsure, leave it out.`

// NewSummarizer creates a summarizer, zero settings get defaults
func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	if cfg.Words <= 0 {
		cfg.Words = 180
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 1500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxInput <= 0 {
		cfg.MaxInput = 12000
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Summarizer{client: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

// Summarize returns a plain-text summary of content
func (s *Summarizer) Summarize(ctx context.Context, title, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("nothing to summarize")
	}
	if r := []rune(content); len(r) > s.cfg.MaxInput {
		content = string(r[:s.cfg.MaxInput])
	}

	minWords := s.cfg.Words - s.cfg.Words/6
	req := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: float32(s.cfg.Temperature),
		MaxTokens:   s.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(summarySystemPrompt, minWords, s.cfg.Words+s.cfg.Words/9)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Title: %s\n\nSummarize the following article in plain text, about %d words.\n\n=== BEGIN CONTENT ===\n%s\n=== END CONTENT ===",
				title, s.cfg.Words, content)},
		},
	}

	var summary string
	retrier := repeater.NewBackoff(s.cfg.Attempts, s.cfg.RetryDelay, repeater.WithMaxDelay(10*time.Second))
	err := retrier.Do(ctx, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		resp, err := s.client.CreateChatCompletion(reqCtx, req)
		if err != nil {
			return fmt.Errorf("llm request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no response from llm")
		}
		summary = strings.TrimSpace(resp.Choices[0].Message.Content)
		if summary == "" {
			return errors.New("empty summary from llm")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize %q: %w", title, err)
	}
	return summary, nil
}
