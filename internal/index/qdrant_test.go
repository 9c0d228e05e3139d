package index

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadueduardo/MAF/internal/domain"
)

func TestQdrantStoreRoundTrip(t *testing.T) {
	var createdBody, upsertBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /collections/sheets", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&createdBody))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /collections/sheets/points", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upsertBody))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /collections/sheets/points/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": [{"score": 0.87, "payload": {
			"source_id": "data/json/abc.json",
			"product": "ABC-100",
			"properties": "[{\"key\":\"Cor\",\"value\":\"Black\"}]",
			"text": "PRODUCT: ABC-100"
		}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewQdrantStore(QdrantConfig{URL: srv.URL, APIKey: "secret", Collection: "sheets"})

	require.NoError(t, store.Init(3))
	vectors, ok := createdBody["vectors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])

	sheets := []domain.Sheet{{SourceID: "data/json/abc.json", Product: "ABC-100", Text: "PRODUCT: ABC-100"}}
	require.NoError(t, store.Upsert(sheets, [][]float64{{1, 0, 0}}))
	points, ok := upsertBody["points"].([]any)
	require.True(t, ok)
	require.Len(t, points, 1)
	point, ok := points[0].(map[string]any)
	require.True(t, ok)
	// Point ids derive from the source alone, so re-upserting the same
	// sheet overwrites instead of duplicating.
	assert.NotEmpty(t, point["id"])

	results, err := store.Search([]float64{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ABC-100", results[0].Sheet.Product)
	assert.InDelta(t, 0.87, results[0].Score, 1e-9)
	require.Len(t, results[0].Sheet.Properties, 1)
	assert.Equal(t, domain.Property{Key: "Cor", Value: "Black"}, results[0].Sheet.Properties[0])
}

func TestQdrantStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "sheets"})
	require.Error(t, store.Init(3))
	_, err := store.Search([]float64{1}, 1)
	require.Error(t, err)
}
