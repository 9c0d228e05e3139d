package crawler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}

func TestRun(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}

	mux := http.NewServeMux()
	counting := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen[r.URL.String()]++
			mu.Unlock()
			h(w, r)
		})
	}
	counting("/", page(`<html><head><title>Products</title></head><body>
		<nav>Menu that must not be harvested</nav>
		<p>Industrial compounds overview.</p>
		<a href="/catalog">Catalog</a>
		<a href="/catalog?lang=en">English</a>
		<a href="mailto:sales@example.com">Mail</a>
		<a href="#section">Anchor</a>
		<a href="https://other.example.com/">External</a>
	</body></html>`))
	counting("/catalog", page(`<html><head><title>Catalog</title></head><body>
		<p>ABC-100 is a black compound.</p>
		<a href="/">Home</a>
	</body></html>`))

	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := t.TempDir()
	c := New(zap.NewNop().Sugar(), WithMaxPages(10), WithHTTPClient(srv.Client()))
	written, err := c.Run(context.Background(), srv.URL, out)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, seen["/"])
	assert.Equal(t, 1, seen["/catalog"])
	assert.Zero(t, seen["/catalog?lang=en"])

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	foundCatalog := false
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(out, e.Name()))
		require.NoError(t, err)
		var rec pageRecord
		require.NoError(t, json.Unmarshal(data, &rec))
		assert.NotEmpty(t, rec.Metadata["source"])
		assert.NotContains(t, rec.Text, "must not be harvested")
		if strings.Contains(rec.Text, "ABC-100") {
			foundCatalog = true
			assert.Equal(t, "Catalog", rec.Metadata["title"])
		}
	}
	assert.True(t, foundCatalog)
}

func TestRunHonorsMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>page</p><a href="` + r.URL.Path + `x">next</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(zap.NewNop().Sugar(), WithMaxPages(3), WithHTTPClient(srv.Client()))
	written, err := c.Run(context.Background(), srv.URL, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 3, written)
}

func TestResolveLink(t *testing.T) {
	root, err := url.Parse("https://example.com")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"/about", "https://example.com/about", true},
		{"contact", "https://example.com/contact", true},
		{"https://example.com/a#frag", "https://example.com/a", true},
		{"https://elsewhere.com/", "", false},
		{"/about?lang=en", "", false},
		{"/about?lang=es", "", false},
		{"mailto:x@example.com", "", false},
		{"tel:+123", "", false},
		{"#top", "", false},
		{"javascript:void(0)", "", false},
	}
	for _, tt := range tests {
		got, ok := resolveLink(root, "https://example.com/", tt.href)
		assert.Equal(t, tt.ok, ok, tt.href)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.href)
		}
	}
}
