package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/adapters/embedding"
	"github.com/mikey/inbox-agent/internal/core"
)

// constantEmbedder gives every text the same vector so similarity always ties
type constantEmbedder struct {
	calls atomic.Int32
}

func (e *constantEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.calls.Add(1)
	return []float32{1, 0, 0}, nil
}

type failingPersister struct{}

func (failingPersister) Load(context.Context) ([]*core.Record, error) { return nil, nil }
func (failingPersister) Save(context.Context, *core.Record) error     { return errors.New("disk full") }
func (failingPersister) Close() error                                 { return nil }

type memoryPersister struct {
	mu    sync.Mutex
	saved map[string]*core.Record
}

func (p *memoryPersister) Load(context.Context) ([]*core.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*core.Record, 0, len(p.saved))
	for _, r := range p.saved {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (p *memoryPersister) Save(_ context.Context, r *core.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved == nil {
		p.saved = make(map[string]*core.Record)
	}
	p.saved[r.ID] = r.Clone()
	return nil
}

func (p *memoryPersister) Close() error { return nil }

func day(d int) time.Time {
	return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC)
}

func record(id string, c core.Category, subject string, date time.Time) *core.Record {
	return &core.Record{ID: id, Category: c, Subject: subject, Summary: subject, Sender: "billing@example.com", Date: date}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	emb := &constantEmbedder{}
	s := New(emb, nil, zap.NewNop())
	ctx := context.Background()

	created, err := s.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, int32(1), emb.calls.Load(), "identical canonical text must not be re-embedded")
}

func TestStore_UpsertReEmbedsWhenCanonicalTextChanges(t *testing.T) {
	emb := &constantEmbedder{}
	s := New(emb, nil, nil)
	ctx := context.Background()

	_, err := s.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, record("m1", core.CategoryBills, "Water bill (corrected)", day(1)))
	require.NoError(t, err)

	assert.Equal(t, int32(2), emb.calls.Load())
	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Water bill (corrected)", got.Subject)
}

func TestStore_UpsertRequiresID(t *testing.T) {
	s := New(&constantEmbedder{}, nil, nil)
	_, err := s.Upsert(context.Background(), &core.Record{})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStore_ConcurrentUpsertsSameID(t *testing.T) {
	s := New(embedding.NewHashEmbedder(32), nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created, err := s.Upsert(ctx, record("same", core.CategoryBills, fmt.Sprintf("v%d", i), day(2)))
			assert.NoError(t, err)
			if created {
				createdCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Count())
	assert.Equal(t, int32(1), createdCount.Load())
	assert.Equal(t, 0, s.locks.size())
}

func TestStore_ConcurrentUpsertsDistinctIDs(t *testing.T) {
	s := New(embedding.NewHashEmbedder(32), nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(ctx, record(fmt.Sprintf("id-%d", i), core.CategoryOrders, "Order shipped", day(3)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 40, s.Count())
}

func TestStore_PersistFailureIsStoreError(t *testing.T) {
	s := New(&constantEmbedder{}, failingPersister{}, nil)
	_, err := s.Upsert(context.Background(), record("m1", core.CategoryBills, "Water bill", day(1)))
	assert.ErrorIs(t, err, core.ErrStore)
	assert.Equal(t, 0, s.Count())
}

func TestStore_OpenLoadsPersistedRecords(t *testing.T) {
	p := &memoryPersister{}
	ctx := context.Background()
	first := New(&constantEmbedder{}, p, nil)
	_, err := first.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)

	second, err := Open(ctx, &constantEmbedder{}, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Count())

	created, err := second.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestStore_QueryTiesBrokenByMostRecentDate(t *testing.T) {
	s := New(&constantEmbedder{}, nil, nil)
	ctx := context.Background()
	_, _ = s.Upsert(ctx, record("old", core.CategoryBills, "Bill A", day(1)))
	_, _ = s.Upsert(ctx, record("new", core.CategoryBills, "Bill B", day(9)))

	hits, err := s.Query(ctx, "bills", core.RecordFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "new", hits[0].Record.ID)
	assert.Equal(t, "old", hits[1].Record.ID)
}

func TestStore_QueryFilters(t *testing.T) {
	s := New(embedding.NewHashEmbedder(64), nil, nil)
	ctx := context.Background()
	_, _ = s.Upsert(ctx, record("b1", core.CategoryBills, "Water bill", day(2)))
	_, _ = s.Upsert(ctx, record("b2", core.CategoryBills, "Gas bill", day(20)))
	_, _ = s.Upsert(ctx, record("u1", core.CategoryUniversities, "Admission from Cambridge", day(5)))

	hits, err := s.Query(ctx, "bill", core.RecordFilter{Categories: []core.Category{core.CategoryBills}}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	dr := core.DateRange{Start: day(1), End: day(10)}
	hits, err = s.Query(ctx, "", core.RecordFilter{DateRange: &dr}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "u1", hits[0].Record.ID)

	hits, err = s.Query(ctx, "anything", core.RecordFilter{Keywords: []string{"CAMBRIDGE"}}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "u1", hits[0].Record.ID)

	hits, err = s.Query(ctx, "bill", core.RecordFilter{}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStore_QueryIsPure(t *testing.T) {
	s := New(embedding.NewHashEmbedder(64), nil, nil)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		_, _ = s.Upsert(ctx, record(fmt.Sprintf("r%d", i), core.CategoryBills, fmt.Sprintf("bill number %d", i), day(i)))
	}
	first, err := s.Query(ctx, "bill number", core.RecordFilter{}, 6)
	require.NoError(t, err)
	second, err := s.Query(ctx, "bill number", core.RecordFilter{}, 6)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(&constantEmbedder{}, nil, nil)
	ctx := context.Background()
	_, _ = s.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))

	got, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	got.Subject = "mutated"

	again, _ := s.Get(ctx, "m1")
	assert.Equal(t, "Water bill", again.Subject)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertReEmbedsWhenDimensionsChange(t *testing.T) {
	s := New(embedding.NewHashEmbedder(16), nil, nil)
	stale := record("m1", core.CategoryBills, "Water bill", day(1))
	stale.Embedding = make([]float32, 8)
	s.records["m1"] = stale

	created, err := s.Upsert(context.Background(), record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, got.Embedding, 16)
}

func TestStore_OpenReEmbedsStaleRecords(t *testing.T) {
	p := &memoryPersister{}
	ctx := context.Background()
	first := New(embedding.NewHashEmbedder(8), p, nil)
	for _, id := range []string{"m1", "m2"} {
		_, err := first.Upsert(ctx, record(id, core.CategoryBills, "Water bill "+id, day(1)))
		require.NoError(t, err)
	}

	second, err := Open(ctx, embedding.NewHashEmbedder(32), p, nil)
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2"} {
		got, err := second.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Embedding, 32)
		assert.Len(t, p.saved[id].Embedding, 32, "re-embedded record is persisted")
	}

	hits, err := second.Query(ctx, "water bill m1", core.RecordFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestStore_OpenKeepsMatchingEmbeddings(t *testing.T) {
	p := &memoryPersister{}
	ctx := context.Background()
	first := New(&constantEmbedder{}, p, nil)
	_, err := first.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)

	emb := &constantEmbedder{}
	second, err := Open(ctx, emb, p, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), emb.calls.Load(), "one probe learns the dimension")

	_, err = second.Upsert(ctx, record("m1", core.CategoryBills, "Water bill", day(1)))
	require.NoError(t, err)
	assert.Equal(t, int32(1), emb.calls.Load())
}
