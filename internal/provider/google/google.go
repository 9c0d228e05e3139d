// Package google implements the alternate provider family: Gemini embeddings
// and generation through the google.golang.org/genai SDK.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/genai"

	"github.com/cadueduardo/MAF/internal/domain"
)

const (
	// DefaultChatModel is used when no chat model is configured.
	DefaultChatModel = "gemini-2.0-flash"
	// DefaultEmbedModel is used when no embedding model is configured.
	DefaultEmbedModel = "text-embedding-004"

	defaultMaxRetries = 3
)

var retryBackoff = []time.Duration{
	200 * time.Millisecond,
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
}

// Client implements domain.Embedder and domain.Generator against the Gemini
// API.
type Client struct {
	client     *genai.Client
	chatModel  string
	embedModel string
	maxRetries int

	// Learned from the first embedding; concurrent questions may race to
	// set it, so access is atomic.
	dimension atomic.Int64
}

// Config configures the Google provider.
type Config struct {
	APIKey     string
	ChatModel  string
	EmbedModel string
}

// New creates a Google provider client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: missing API key")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &Client{
		client:     client,
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		maxRetries: defaultMaxRetries,
	}, nil
}

// Name identifies the provider family.
func (c *Client) Name() string { return "google" }

// Model returns the embedding model; it tags persisted index snapshots.
func (c *Client) Model() string { return c.embedModel }

// Prepare is a no-op: remote embedding needs no corpus pass.
func (c *Client) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension reports the embedding dimensionality, learned on first embed.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("google: empty embedding input")
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
		resp, err := c.client.Models.EmbedContent(ctx, c.embedModel, genai.Text(text), nil)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			lastErr = errors.New("google: empty embedding response")
			continue
		}
		values := resp.Embeddings[0].Values
		vec := make([]float64, len(values))
		for i, v := range values {
			vec[i] = float64(v)
		}
		c.dimension.CompareAndSwap(0, int64(len(vec)))
		return vec, nil
	}
	return nil, fmt.Errorf("google: embedding failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Complete runs a blocking generation and returns the full answer text.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	contents, config := c.convert(messages)
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		resp, err := c.client.Models.GenerateContent(ctx, c.chatModel, contents, config)
		if err != nil {
			lastErr = err
			continue
		}
		text := candidateText(resp)
		if text == "" {
			lastErr = errors.New("google: empty generation response")
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("google: generation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Stream runs a generation and emits answer fragments as they arrive.
func (c *Client) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.Fragment, error) {
	contents, config := c.convert(messages)
	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		for chunk, err := range c.client.Models.GenerateContentStream(ctx, c.chatModel, contents, config) {
			if err != nil {
				select {
				case out <- domain.Fragment{Err: fmt.Errorf("google: stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			text := candidateText(chunk)
			if text == "" {
				continue
			}
			select {
			case out <- domain.Fragment{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// convert maps conversation messages to genai contents. System messages
// become the system instruction.
func (c *Client) convert(messages []domain.Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.3)}
	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			system = append(system, msg.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, config
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
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
