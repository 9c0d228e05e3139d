// Package agent ties retrieval and generation together: it rewrites
// follow-up questions against conversation history, retrieves candidate
// sheets from the index, streams a grounded answer and produces follow-up
// question suggestions.
package agent

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/domain"
)

const (
	// defaultBreadth is how many sheets every retrieval forwards to
	// synthesis. Wider breadth trades recall for more tokens sent to
	// generation. There is no relevance threshold: grounding and rejection
	// are delegated entirely to the synthesis rules.
	defaultBreadth = 6
	// suggestionPoolSize is the breadth of the broad sample query feeding
	// suggestion generation.
	suggestionPoolSize = 10
	// maxSuggestions bounds the random subset drawn from the pool.
	maxSuggestions = 3
	// suggestionQuery anchors the sample in the catalog's topic.
	suggestionQuery = "industrial compound product technical properties and applications"

	// failureMessage is streamed when retrieval or generation fails; errors
	// never escape the fragment stream as panics or raw errors.
	failureMessage = "Sorry, something went wrong while answering. Please try again."
)

// Agent is the long-lived retrieval service constructed once at process
// start. It holds only read-shared state and is safe for concurrent
// questions.
type Agent struct {
	index domain.Index
	gen   domain.Generator
	log   *zap.SugaredLogger

	breadth int

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

// Option configures an Agent.
type Option func(*Agent)

// WithBreadth overrides the retrieval breadth.
func WithBreadth(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.breadth = k
		}
	}
}

// WithRandSource replaces the suggestion sampling source; tests use a fixed
// seed for deterministic selection.
func WithRandSource(src rand.Source) Option {
	return func(a *Agent) {
		a.rnd = rand.New(src)
	}
}

// New creates the agent.
func New(index domain.Index, gen domain.Generator, log *zap.SugaredLogger, opts ...Option) *Agent {
	a := &Agent{
		index:   index,
		gen:     gen,
		log:     log,
		breadth: defaultBreadth,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers a question grounded in retrieved sheets, streaming the answer
// as text fragments. The returned channel is closed when the answer is
// complete or has failed; the producer stops emitting once ctx is cancelled.
// Each call re-runs retrieval and generation; nothing is persisted between
// calls.
func (a *Agent) Ask(ctx context.Context, question string, history []domain.Message) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		a.answer(ctx, question, history, out)
	}()
	return out
}

func (a *Agent) answer(ctx context.Context, question string, history []domain.Message, out chan<- string) {
	query := a.rewriteQuery(ctx, question, history)
	results, err := a.index.Search(ctx, query, a.breadth)
	if err != nil {
		a.log.Errorw("retrieval failed", "query", query, "error", err)
		emit(ctx, out, failureMessage)
		return
	}

	messages := make([]domain.Message, 0, len(history)+2)
	messages = append(messages, domain.Message{
		Role:    domain.RoleSystem,
		Content: systemPrompt(results, len(history) == 0),
	})
	messages = append(messages, history...)
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})

	fragments, err := a.gen.Stream(ctx, messages)
	if err != nil {
		a.log.Errorw("generation failed to start", "error", err)
		emit(ctx, out, failureMessage)
		return
	}
	emitted := false
	for frag := range fragments {
		if frag.Err != nil {
			a.log.Errorw("generation failed mid-stream", "error", frag.Err)
			if !emitted {
				emit(ctx, out, failureMessage)
			}
			return
		}
		if !emit(ctx, out, frag.Text) {
			return
		}
		emitted = true
	}
}

// rewriteQuery turns a possibly context-dependent follow-up into a
// standalone search query. Without history the raw question is the query;
// rewrite failures degrade to the raw question rather than failing the ask.
func (a *Agent) rewriteQuery(ctx context.Context, question string, history []domain.Message) string {
	if len(history) == 0 {
		return question
	}
	rewritten, err := a.gen.Complete(ctx, rewriteMessages(history, question))
	if err != nil {
		a.log.Warnw("question rewrite failed, using raw question", "error", err)
		return question
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return question
	}
	return rewritten
}

// Suggest produces up to maxSuggestions follow-up questions by sampling
// sheets from the index and generating one question per sheet. Per-sheet
// failures are skipped; a total failure yields an empty list, never an
// error.
func (a *Agent) Suggest(ctx context.Context) []string {
	pool, err := a.index.Sample(ctx, suggestionQuery, suggestionPoolSize)
	if err != nil {
		a.log.Errorw("suggestion sampling failed", "error", err)
		return nil
	}
	if len(pool) == 0 {
		return nil
	}
	var suggestions []string
	for _, s := range a.drawSheets(pool, maxSuggestions) {
		question, err := a.gen.Complete(ctx, suggestionMessages(s))
		if err != nil {
			a.log.Warnw("suggestion generation failed", "source", s.SourceID, "error", err)
			continue
		}
		question = strings.TrimSpace(strings.Trim(strings.TrimSpace(question), `"`))
		if question != "" {
			suggestions = append(suggestions, question)
		}
	}
	return suggestions
}

// drawSheets picks a uniform random subset of size min(n, len(pool)).
func (a *Agent) drawSheets(pool []domain.Sheet, n int) []domain.Sheet {
	if n > len(pool) {
		n = len(pool)
	}
	a.mu.Lock()
	perm := a.rnd.Perm(len(pool))
	a.mu.Unlock()
	picked := make([]domain.Sheet, n)
	for i := 0; i < n; i++ {
		picked[i] = pool[perm[i]]
	}
	return picked
}

func emit(ctx context.Context, out chan<- string, text string) bool {
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}
