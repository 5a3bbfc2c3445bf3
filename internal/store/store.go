// Package store implements the semantic record store: an id-keyed arena of
// records with per-id write serialisation, cosine similarity search and
// optional write-through persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/core"
)

// ErrNotFound is returned when no record exists for an id
var ErrNotFound = errors.New("record not found")

// Persister durably stores records behind the in-memory index
type Persister interface {
	Load(ctx context.Context) ([]*core.Record, error)
	Save(ctx context.Context, record *core.Record) error
	Close() error
}

// dimensioned is implemented by embedders that know their vector length
type dimensioned interface {
	Dimensions() int
}

// Store is the record store
type Store struct {
	embedder  core.Embedder
	persister Persister
	logger    *zap.Logger
	// dims is the current embedder's vector length, zero until known
	dims atomic.Int64

	mu      sync.RWMutex
	records map[string]*core.Record
	locks   *keyedLocks
}

// New creates an empty store. persister may be nil for a memory-only store.
func New(embedder core.Embedder, persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		embedder:  embedder,
		persister: persister,
		logger:    logger,
		records:   make(map[string]*core.Record),
		locks:     newKeyedLocks(),
	}
	if d, ok := embedder.(dimensioned); ok {
		s.dims.Store(int64(d.Dimensions()))
	}
	return s
}

// Open creates a store and loads every persisted record into the index
func Open(ctx context.Context, embedder core.Embedder, persister Persister, logger *zap.Logger) (*Store, error) {
	s := New(embedder, persister, logger)
	if persister == nil {
		return s, nil
	}

	records, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	s.logger.Info("Loaded record store", zap.Int("records", len(records)))
	s.reembedStale(ctx)
	return s, nil
}

// reembedStale refreshes loaded embeddings whose length does not match the
// current embedder, as after a provider switch. When the embedder fails the
// remaining records stay stale until their next upsert.
func (s *Store) reembedStale(ctx context.Context) {
	if len(s.records) == 0 {
		return
	}
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	refreshed := 0
	for _, id := range ids {
		r := s.records[id]
		if dims := s.dims.Load(); dims > 0 && int64(len(r.Embedding)) == dims {
			continue
		}
		vec, err := s.embed(ctx, r.CanonicalText())
		if err != nil {
			s.logger.Warn("Failed to re-embed record", zap.String("item_id", id), zap.Error(err))
			break
		}
		if len(vec) == len(r.Embedding) {
			continue
		}
		next := r.Clone()
		next.Embedding = vec
		if s.persister != nil {
			if err := s.persister.Save(ctx, next); err != nil {
				s.logger.Warn("Failed to save re-embedded record", zap.String("item_id", id), zap.Error(err))
				continue
			}
		}
		s.records[id] = next
		refreshed++
	}
	if refreshed > 0 {
		s.logger.Info("Re-embedded stale records", zap.Int("records", refreshed))
	}
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.dims.Store(int64(len(vec)))
	return vec, nil
}

// Upsert inserts or overwrites the record with the same id and reports
// whether the id was new. The embedding is recomputed only when the
// canonical text differs from the stored record.
func (s *Store) Upsert(ctx context.Context, record *core.Record) (bool, error) {
	if record == nil || record.ID == "" {
		return false, &core.ValidationError{Field: "id", Reason: "record id is required"}
	}

	unlock := s.locks.Lock(record.ID)
	defer unlock()

	s.mu.RLock()
	existing := s.records[record.ID]
	s.mu.RUnlock()

	next := record.Clone()
	canonical := next.CanonicalText()
	dims := s.dims.Load()
	if existing != nil && existing.CanonicalText() == canonical && dims > 0 && int64(len(existing.Embedding)) == dims {
		next.Embedding = append([]float32(nil), existing.Embedding...)
	} else {
		vec, err := s.embed(ctx, canonical)
		if err != nil {
			return false, fmt.Errorf("failed to embed record %s: %w", record.ID, err)
		}
		next.Embedding = vec
	}

	if s.persister != nil {
		if err := s.persister.Save(ctx, next); err != nil {
			return false, fmt.Errorf("%w: %s: %v", core.ErrStore, record.ID, err)
		}
	}

	s.mu.Lock()
	s.records[record.ID] = next
	s.mu.Unlock()

	created := existing == nil
	s.logger.Debug("Upserted record",
		zap.String("item_id", record.ID),
		zap.Bool("created", created))
	return created, nil
}

// Get returns a copy of the record with the given id
func (s *Store) Get(_ context.Context, id string) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

// Count returns the number of stored records
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Query embeds text and returns up to topK records matching filter, ordered
// by descending similarity, then most recent date, then id
func (s *Store) Query(ctx context.Context, text string, filter core.RecordFilter, topK int) ([]core.Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	var query []float32
	if strings.TrimSpace(text) != "" {
		vec, err := s.embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		query = vec
	}

	s.mu.RLock()
	hits := make([]core.Hit, 0, len(s.records))
	for _, r := range s.records {
		if !matches(r, filter) {
			continue
		}
		score := 0.0
		if query != nil {
			score = cosine(query, r.Embedding)
		}
		hits = append(hits, core.Hit{Record: r.Clone(), Score: score})
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.Date.Equal(b.Record.Date) {
			return a.Record.Date.After(b.Record.Date)
		}
		return a.Record.ID < b.Record.ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Close releases the persister
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

func matches(r *core.Record, f core.RecordFilter) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if r.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateRange != nil && !f.DateRange.Contains(r.Date) {
		return false
	}
	if len(f.Keywords) > 0 {
		haystack := strings.ToLower(r.Subject + "\n" + r.Sender + "\n" + r.Summary)
		found := false
		for _, k := range f.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(haystack, k) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
