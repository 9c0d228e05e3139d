// Package openai implements the default provider family: OpenAI embeddings
// and chat completions through the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cadueduardo/MAF/internal/domain"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbedModel is used when no embedding model is configured.
	DefaultEmbedModel = "text-embedding-3-small"

	defaultMaxRetries = 3
)

// retryBackoff holds per-attempt backoff durations; attempts beyond its
// length reuse the last value.
var retryBackoff = []time.Duration{
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
}

// Client implements domain.Embedder and domain.Generator against the OpenAI
// API (or any OpenAI-compatible endpoint via BaseURL).
type Client struct {
	client     openai.Client
	chatModel  string
	embedModel string
	maxRetries int

	// Learned from the first embedding; concurrent questions may race to
	// set it, so access is atomic.
	dimension atomic.Int64
}

// Config configures the OpenAI provider.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

// New creates an OpenAI provider client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled here so backoff stays context-aware.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client:     openai.NewClient(clientOpts...),
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		maxRetries: defaultMaxRetries,
	}, nil
}

// Name identifies the provider family.
func (c *Client) Name() string { return "openai" }

// Model returns the embedding model; it tags persisted index snapshots.
func (c *Client) Model() string { return c.embedModel }

// Prepare is a no-op: remote embedding needs no corpus pass.
func (c *Client) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension reports the embedding dimensionality, learned on first embed.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("openai: empty embedding input")
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
			Model: openai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			lastErr = errors.New("openai: empty embedding response")
			continue
		}
		vec := resp.Data[0].Embedding
		c.dimension.CompareAndSwap(0, int64(len(vec)))
		return vec, nil
	}
	return nil, fmt.Errorf("openai: embedding failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Complete runs a blocking chat completion and returns the full answer text.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		resp, err := c.client.Chat.Completions.New(ctx, c.chatParams(messages))
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("openai: empty completion response")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("openai: completion failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Stream runs a chat completion and emits answer fragments as they arrive.
func (c *Client) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.Fragment, error) {
	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.chatParams(messages))
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- domain.Fragment{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- domain.Fragment{Err: fmt.Errorf("openai: stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Client) chatParams(messages []domain.Message) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case domain.RoleAssistant:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.chatModel),
		Messages:    converted,
		Temperature: openai.Float(0.3),
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(retryBackoff) {
		return retryBackoff[len(retryBackoff)-1]
	}
	return retryBackoff[attempt]
}
