package index

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/domain"
	"github.com/cadueduardo/MAF/internal/provider/tfidf"
)

// fakeEmbedder produces deterministic normalized vectors derived from the
// text, with optional fixed vectors for specific inputs.
type fakeEmbedder struct {
	name  string
	model string
	dim   int
	delay time.Duration
	fixed map[string][]float64
	calls atomic.Int64
}

func newFakeEmbedder(model string) *fakeEmbedder {
	return &fakeEmbedder{name: "fake", model: model, dim: 4}
}

func (f *fakeEmbedder) Name() string   { return f.name }
func (f *fakeEmbedder) Model() string  { return f.model }
func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Prepare(_ context.Context, _ []string) error { return nil }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if v, ok := f.fixed[text]; ok {
		return v, nil
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	vec := make([]float64, f.dim)
	norm := 0.0
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float64(seed%1000)/1000.0 + 0.001
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

func testSheets() []domain.Sheet {
	return []domain.Sheet{
		{SourceID: "a", Product: "A-1", Text: "sheet about product a"},
		{SourceID: "b", Product: "B-1", Text: "sheet about product b"},
		{SourceID: "c", Product: "C-1", Text: "sheet about product c"},
	}
}

func TestLoadOrBuildPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	sheets := testSheets()
	ctx := context.Background()
	log := zap.NewNop().Sugar()

	emb := newFakeEmbedder("m1")
	first := NewManager(NewMemoryStore(), emb, path, log)
	require.NoError(t, first.LoadOrBuild(ctx, sheets))
	built := emb.calls.Load()
	assert.Equal(t, int64(len(sheets)), built)

	// Second startup hydrates from the snapshot without embedding again.
	emb2 := newFakeEmbedder("m1")
	second := NewManager(NewMemoryStore(), emb2, path, log)
	require.NoError(t, second.LoadOrBuild(ctx, sheets))
	assert.Zero(t, emb2.calls.Load())

	results, err := second.Search(ctx, "product a", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), emb2.calls.Load()) // the query only
}

func TestLoadOrBuildRebuildsOnModelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	sheets := testSheets()
	ctx := context.Background()
	log := zap.NewNop().Sugar()

	require.NoError(t, NewManager(NewMemoryStore(), newFakeEmbedder("m1"), path, log).LoadOrBuild(ctx, sheets))

	changed := newFakeEmbedder("m2")
	require.NoError(t, NewManager(NewMemoryStore(), changed, path, log).LoadOrBuild(ctx, sheets))
	assert.Equal(t, int64(len(sheets)), changed.calls.Load())
}

func TestLoadOrBuildSingleBuildAcrossManagers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	sheets := testSheets()
	ctx := context.Background()
	log := zap.NewNop().Sugar()

	slow := newFakeEmbedder("m1")
	slow.delay = 100 * time.Millisecond
	fast := newFakeEmbedder("m1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, NewManager(NewMemoryStore(), slow, path, log).LoadOrBuild(ctx, sheets))
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond) // let the slow build take the lock
		assert.NoError(t, NewManager(NewMemoryStore(), fast, path, log).LoadOrBuild(ctx, sheets))
	}()
	wg.Wait()

	// One build total: the second manager waits on the lock, then loads the
	// finished snapshot.
	assert.Equal(t, int64(len(sheets)), slow.calls.Load()+fast.calls.Load())
}

func TestLoadOrBuildEmptyCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	err := NewManager(NewMemoryStore(), newFakeEmbedder("m1"), path, zap.NewNop().Sugar()).
		LoadOrBuild(context.Background(), nil)
	require.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestSearchOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()
	sheets := testSheets()

	emb := newFakeEmbedder("m1")
	emb.fixed = map[string][]float64{
		"sheet about product a": {1, 0, 0, 0},
		"sheet about product b": {0, 1, 0, 0},
		"sheet about product c": {0.9, 0.1, 0, 0},
		"query":                 {1, 0, 0, 0},
	}
	m := NewManager(NewMemoryStore(), emb, path, zap.NewNop().Sugar())
	require.NoError(t, m.LoadOrBuild(ctx, sheets))

	results, err := m.Search(ctx, "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "A-1", results[0].Sheet.Product)
	assert.Equal(t, "C-1", results[1].Sheet.Product)
	assert.Equal(t, "B-1", results[2].Sheet.Product)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()

	m := NewManager(NewMemoryStore(), newFakeEmbedder("m1"), path, zap.NewNop().Sugar())
	require.NoError(t, m.LoadOrBuild(ctx, testSheets()))

	pool, err := m.Sample(ctx, "products", 2)
	require.NoError(t, err)
	assert.Len(t, pool, 2)
}

func TestLoadOrBuildWithLocalEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	ctx := context.Background()
	sheets := []domain.Sheet{
		{SourceID: "a", Product: "A-1", Text: "polypropylene compound with high density"},
		{SourceID: "b", Product: "B-1", Text: "rubber compound with low hardness"},
	}
	log := zap.NewNop().Sugar()

	require.NoError(t, NewManager(NewMemoryStore(), tfidf.NewEmbedder(), path, log).LoadOrBuild(ctx, sheets))

	// A fresh manager re-derives the vocabulary in Prepare and then loads
	// the snapshot instead of rebuilding.
	reloaded := NewManager(NewMemoryStore(), tfidf.NewEmbedder(), path, log)
	require.NoError(t, reloaded.LoadOrBuild(ctx, sheets))

	results, err := reloaded.Search(ctx, "density of polypropylene", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A-1", results[0].Sheet.Product)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Init(2))
	err := s.Upsert([]domain.Sheet{{SourceID: "x"}}, [][]float64{{1, 2, 3}})
	require.Error(t, err)
}
