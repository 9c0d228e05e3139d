// Package index maintains a persistent vector-similarity index over canonical
// sheets. The embed-and-persist build happens at most once per corpus version:
// it is guarded by a cross-process advisory lock scoped to the snapshot path,
// and every later startup rehydrates the store from the snapshot instead of
// re-embedding.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/cadueduardo/MAF/internal/domain"
)

// ErrIndexUnavailable reports that the index could neither be loaded nor
// built. This is fatal at startup: the service cannot answer without it.
var ErrIndexUnavailable = errors.New("index unavailable")

const (
	defaultLockTimeout = 10 * time.Minute
	lockRetryInterval  = 500 * time.Millisecond
	snapshotFilePerm   = 0o644
	snapshotVersion    = 1
)

// snapshot is the persisted index artifact. The embedder name, model and
// dimension form a compatibility tag: a snapshot built with a different
// embedding space is treated as absent and rebuilt rather than silently
// serving degraded similarity results.
type snapshot struct {
	Version   int     `json:"version"`
	Embedder  string  `json:"embedder"`
	Model     string  `json:"model"`
	Dimension int     `json:"dimension"`
	BuiltAt   string  `json:"built_at"`
	Entries   []entry `json:"entries"`
}

type entry struct {
	Sheet  domain.Sheet `json:"sheet"`
	Vector []float64    `json:"vector"`
}

// Manager builds, loads and queries the vector index. Once LoadOrBuild has
// returned, the index is immutable and safe for concurrent reads.
type Manager struct {
	store       Store
	embedder    domain.Embedder
	path        string
	lockTimeout time.Duration
	log         *zap.SugaredLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLockTimeout bounds the wait for the cross-process build lock.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.lockTimeout = d
		}
	}
}

// NewManager creates a Manager persisting its snapshot at path.
func NewManager(store Store, embedder domain.Embedder, path string, log *zap.SugaredLogger, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		embedder:    embedder,
		path:        path,
		lockTimeout: defaultLockTimeout,
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadOrBuild makes the index ready: it loads the persisted snapshot when one
// compatible with the configured embedder exists, otherwise it builds the
// index under the advisory lock and persists it. Failure is fatal to the
// caller; no partial index is ever left behind as valid.
func (m *Manager) LoadOrBuild(ctx context.Context, sheets []domain.Sheet) error {
	texts := make([]string, len(sheets))
	for i := range sheets {
		texts[i] = sheets[i].Text
	}
	// Local embedders derive their vocabulary from the corpus; remote ones
	// treat this as a no-op.
	if err := m.embedder.Prepare(ctx, texts); err != nil {
		return fmt.Errorf("%w: prepare embedder: %v", ErrIndexUnavailable, err)
	}

	if ok, err := m.tryLoad(); err != nil {
		return err
	} else if ok {
		return nil
	}

	lock := flock.New(m.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, m.lockTimeout)
	defer cancel()
	m.log.Infow("acquiring index build lock", "path", m.path)
	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil || !locked {
		return fmt.Errorf("%w: build lock not acquired within %v", ErrIndexUnavailable, m.lockTimeout)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			m.log.Warnw("releasing index build lock", "error", err)
		}
	}()

	// Another process may have finished the build while this one waited.
	if ok, err := m.tryLoad(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return m.build(ctx, sheets)
}

// Search embeds the query and returns up to k sheets by descending cosine
// similarity.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return m.store.Search(vec, k)
}

// Sample returns a pool of k sheets for a broad query. Suggestion generation
// draws its random subset from this pool.
func (m *Manager) Sample(ctx context.Context, query string, k int) ([]domain.Sheet, error) {
	results, err := m.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	sheets := make([]domain.Sheet, len(results))
	for i, r := range results {
		sheets[i] = r.Sheet
	}
	return sheets, nil
}

// tryLoad hydrates the store from a persisted snapshot. It reports false
// when the snapshot is missing or belongs to a different embedding space.
func (m *Manager) tryLoad() (bool, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read snapshot: %v", ErrIndexUnavailable, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.log.Warnw("index snapshot is corrupt, rebuilding", "path", m.path, "error", err)
		return false, nil
	}
	if snap.Embedder != m.embedder.Name() || snap.Model != m.embedder.Model() {
		m.log.Warnw("index snapshot belongs to a different embedding provider, rebuilding",
			"snapshot_embedder", snap.Embedder, "snapshot_model", snap.Model,
			"embedder", m.embedder.Name(), "model", m.embedder.Model())
		return false, nil
	}
	if dim := m.embedder.Dimension(); dim > 0 && dim != snap.Dimension {
		m.log.Warnw("index snapshot dimension mismatch, rebuilding",
			"snapshot_dimension", snap.Dimension, "dimension", dim)
		return false, nil
	}
	if len(snap.Entries) == 0 {
		return false, nil
	}
	if err := m.store.Init(snap.Dimension); err != nil {
		return false, fmt.Errorf("%w: init store: %v", ErrIndexUnavailable, err)
	}
	sheets := make([]domain.Sheet, len(snap.Entries))
	vectors := make([][]float64, len(snap.Entries))
	for i, e := range snap.Entries {
		sheets[i] = e.Sheet
		vectors[i] = e.Vector
	}
	if err := m.store.Upsert(sheets, vectors); err != nil {
		return false, fmt.Errorf("%w: hydrate store: %v", ErrIndexUnavailable, err)
	}
	m.log.Infow("loaded index snapshot", "path", m.path, "sheets", len(sheets))
	return true, nil
}

// build embeds every sheet text as one indivisible unit, fills the store and
// persists the snapshot atomically. A failure mid-build leaves no snapshot.
func (m *Manager) build(ctx context.Context, sheets []domain.Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("%w: no sheets to index", ErrIndexUnavailable)
	}
	m.log.Infow("building index", "sheets", len(sheets))
	vectors := make([][]float64, len(sheets))
	for i := range sheets {
		vec, err := m.embedder.Embed(ctx, sheets[i].Text)
		if err != nil {
			return fmt.Errorf("%w: embed sheet %s: %v", ErrIndexUnavailable, sheets[i].SourceID, err)
		}
		vectors[i] = vec
	}
	dim := len(vectors[0])
	if err := m.store.Init(dim); err != nil {
		return fmt.Errorf("%w: init store: %v", ErrIndexUnavailable, err)
	}
	if err := m.store.Upsert(sheets, vectors); err != nil {
		return fmt.Errorf("%w: fill store: %v", ErrIndexUnavailable, err)
	}

	snap := snapshot{
		Version:   snapshotVersion,
		Embedder:  m.embedder.Name(),
		Model:     m.embedder.Model(),
		Dimension: dim,
		BuiltAt:   time.Now().UTC().Format(time.RFC3339),
		Entries:   make([]entry, len(sheets)),
	}
	for i := range sheets {
		snap.Entries[i] = entry{Sheet: sheets[i], Vector: vectors[i]}
	}
	if err := m.writeSnapshot(&snap); err != nil {
		return fmt.Errorf("%w: persist snapshot: %v", ErrIndexUnavailable, err)
	}
	m.log.Infow("index built and persisted", "path", m.path, "sheets", len(sheets), "dimension", dim)
	return nil
}

// writeSnapshot persists via temp file + rename so a crash mid-write never
// leaves a readable partial snapshot.
func (m *Manager) writeSnapshot(snap *snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(snapshotFilePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}
