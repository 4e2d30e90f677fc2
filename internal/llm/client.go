// Package llm is the outbound text-completion contract and its OpenAI-compatible client.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/digkill/botforge/internal/config"
)

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("provider returned no choices")

// Request is one blocking completion exchange.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client completes a request into raw reply text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Observer is notified of each provider round trip.
type Observer func(elapsed time.Duration, err error)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	log     *slog.Logger
	observe Observer
}

func NewOpenAIClient(cfg config.Config, log *slog.Logger, observe Observer) *OpenAIClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	oc := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.OpenAIBaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout}

	if observe == nil {
		observe = func(time.Duration, error) {}
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(oc),
		model:   cfg.OpenAIModel,
		log:     log,
		observe: observe,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	started := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	elapsed := time.Since(started)
	if err == nil && len(resp.Choices) == 0 {
		err = ErrEmptyResponse
	}
	c.observe(elapsed, err)
	if err != nil {
		c.log.Error("chat completion failed", "model", c.model, "elapsed", elapsed, "err", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}

	c.log.Debug("chat completion", "model", c.model, "elapsed", elapsed,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}
