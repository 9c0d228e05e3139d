package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedRequiresPrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "anything")
	require.Error(t, err)
}

func TestPrepareAndEmbed(t *testing.T) {
	ctx := context.Background()
	corpus := []string{
		"polypropylene compound with high density",
		"rubber compound with low hardness",
		"black masterbatch pigment",
	}

	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))
	assert.Equal(t, "tfidf", e.Name())
	assert.Equal(t, "tfidf", e.Model())
	assert.Positive(t, e.Dimension())

	vec, err := e.Embed(ctx, "high density polypropylene")
	require.NoError(t, err)
	require.Len(t, vec, e.Dimension())

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestSimilarTextRanksCloser(t *testing.T) {
	ctx := context.Background()
	corpus := []string{
		"polypropylene compound with high density",
		"rubber compound with low hardness",
	}
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, corpus))

	query, err := e.Embed(ctx, "density of polypropylene")
	require.NoError(t, err)
	first, err := e.Embed(ctx, corpus[0])
	require.NoError(t, err)
	second, err := e.Embed(ctx, corpus[1])
	require.NoError(t, err)

	assert.Greater(t, dot(query, first), dot(query, second))
}

func TestEmbedUnknownTokensIsZeroVector(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"polypropylene compound"}))

	vec, err := e.Embed(ctx, "xyzzy")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
