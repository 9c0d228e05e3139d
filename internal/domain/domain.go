package domain

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Conversations are supplied by the
// caller per request; the core never persists them.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Property is a single named value from a technical data sheet. Properties
// keep the order in which they appeared in the source document.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Sheet is the normalized representation of one product's technical data.
// It is the atomic retrieval unit: a sheet is indexed and retrieved whole so
// that the product name is never separated from its properties.
//
// Product may be empty for sources that carry no product identity (harvested
// web pages); it is never assigned a synthetic name. Text always begins with
// the sheet-open marker and ends with the sheet-close marker.
type Sheet struct {
	SourceID   string     `json:"source_id"`
	Product    string     `json:"product,omitempty"`
	Properties []Property `json:"properties,omitempty"`
	Text       string     `json:"text"`
}

// SearchResult pairs a retrieved sheet with its relevance score.
type SearchResult struct {
	Sheet Sheet
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Model() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Fragment is one streamed piece of a generated answer. Err is set on the
// terminal fragment when generation failed mid-stream.
type Fragment struct {
	Text string
	Err  error
}

// Generator produces model completions from a conversation.
type Generator interface {
	Name() string
	// Complete runs a blocking completion and returns the full text.
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream runs a completion and emits fragments as they arrive. The
	// returned channel is closed when generation finishes or fails; the
	// producer stops emitting once ctx is cancelled.
	Stream(ctx context.Context, messages []Message) (<-chan Fragment, error)
}

// Index retrieves sheets by embedding similarity.
type Index interface {
	// Search returns up to k sheets ordered by descending similarity.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
	// Sample returns a broad pool of sheets for suggestion generation.
	Sample(ctx context.Context, query string, k int) ([]Sheet, error)
}
