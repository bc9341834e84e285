package localdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"muhuratai/pkg/auth"
	"muhuratai/pkg/storage"
)

type countingSink struct {
	mu    sync.Mutex
	inner storage.Sink
	saves int
}

func (c *countingSink) Load(ctx context.Context, key string) ([]byte, error) {
	return c.inner.Load(ctx, key)
}

func (c *countingSink) Save(ctx context.Context, key string, data []byte) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.inner.Save(ctx, key, data)
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func newSink(t *testing.T) *countingSink {
	t.Helper()
	fs, err := storage.NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	return &countingSink{inner: fs}
}

func openStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBootstrapSeedsEveryTable(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Options{Sink: newSink(t)})

	res, err := s.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(res.CreatedTables) != len(DefaultTables()) {
		t.Fatalf("expected %d created tables, got %v", len(DefaultTables()), res.CreatedTables)
	}
	seeds := DefaultSeeds()
	for _, name := range s.Tables() {
		n, err := s.Count(ctx, name)
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if n != len(seeds[name]) {
			t.Fatalf("table %s has %d rows, want %d", name, n, len(seeds[name]))
		}
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sink := newSink(t)
	s := openStore(t, Options{Sink: sink})

	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	saves := sink.count()
	if saves != 1 {
		t.Fatalf("expected one snapshot after first bootstrap, got %d", saves)
	}
	before := tableShape(t, s)

	res, err := s.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if res.Changed() {
		t.Fatalf("second bootstrap changed the store: %+v", res)
	}
	if sink.count() != saves {
		t.Fatalf("unchanged bootstrap must not persist")
	}
	if diff := cmp.Diff(before, tableShape(t, s)); diff != "" {
		t.Fatalf("store shape changed (-before +after):\n%s", diff)
	}
}

type shape struct {
	Columns []string
	Rows    int
}

func tableShape(t *testing.T, s *Store) map[string]shape {
	t.Helper()
	ctx := context.Background()
	out := map[string]shape{}
	for _, name := range s.Tables() {
		cols, err := s.Columns(ctx, name)
		if err != nil {
			t.Fatalf("columns %s: %v", name, err)
		}
		n, err := s.Count(ctx, name)
		if err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		out[name] = shape{Columns: cols, Rows: n}
	}
	return out
}

func TestBootstrapAddsColumnsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	sink := newSink(t)
	narrow := []Table{{Name: "gemstones", Columns: []Column{{"name", Text}}}}
	seeds := map[string][]Row{"gemstones": {{"id": "g1", "name": "Ruby"}}}

	first := openStore(t, Options{Sink: sink, Tables: narrow, Seeds: seeds})
	if _, err := first.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	first.Close()

	wide := []Table{{Name: "gemstones", Columns: []Column{{"name", Text}, {"planet", Text}, {"price_per_carat", Real}}}}
	second := openStore(t, Options{Sink: sink, Tables: wide, Seeds: seeds})
	res, err := second.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if diff := cmp.Diff([]string{"gemstones.planet", "gemstones.price_per_carat"}, res.AddedColumns); diff != "" {
		t.Fatalf("added columns mismatch:\n%s", diff)
	}
	if len(res.SeededTables) != 0 || len(res.CreatedTables) != 0 {
		t.Fatalf("restored table must not be recreated or reseeded: %+v", res)
	}
	row, err := second.Get(ctx, "gemstones", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row["name"] != "Ruby" || row["planet"] != nil {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestInsertAndUpdatePersistEveryWrite(t *testing.T) {
	ctx := context.Background()
	sink := newSink(t)
	s := openStore(t, Options{Sink: sink})
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	base := sink.count()

	created := time.Date(2025, 3, 15, 7, 0, 0, 0, time.UTC)
	id, err := s.Insert(ctx, "feedback", Row{"user_id": "user-demo", "rating": 5, "comment": "Accurate", "created_at": created})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Update(ctx, "feedback", id, Row{"rating": "4"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if sink.count() != base+2 {
		t.Fatalf("expected a snapshot per write, got %d", sink.count()-base)
	}

	row, err := s.Get(ctx, "feedback", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := Row{"id": id, "user_id": "user-demo", "reading_id": nil, "rating": int64(4), "comment": "Accurate", "created_at": created}
	if diff := cmp.Diff(want, row); diff != "" {
		t.Fatalf("row mismatch (-want +got):\n%s", diff)
	}

	if err := s.Update(ctx, "feedback", "missing", Row{"rating": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Insert(ctx, "feedback", Row{"stars": 5}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected ErrUnknownColumn, got %v", err)
	}
	if _, err := s.Insert(ctx, "sessions", Row{}); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("expected ErrUnknownTable, got %v", err)
	}
}

func TestSnapshotRestoresState(t *testing.T) {
	ctx := context.Background()
	sink := newSink(t)
	s := openStore(t, Options{Sink: sink})
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := s.Insert(ctx, "mood_entries", Row{"id": "m1", "user_id": "user-demo", "mood": "calm", "intensity": 3}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	restored := openStore(t, Options{Sink: sink})
	row, err := restored.Get(ctx, "mood_entries", "m1")
	if err != nil {
		t.Fatalf("get after restore: %v", err)
	}
	if row["mood"] != "calm" {
		t.Fatalf("unexpected row %v", row)
	}
	services, err := restored.Rows(ctx, "services", 0, 0)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(services) != 4 {
		t.Fatalf("expected 4 services, got %d", len(services))
	}
	if features, ok := services[0]["features"].([]any); !ok || len(features) == 0 {
		t.Fatalf("json column not decoded: %#v", services[0]["features"])
	}
	if active, ok := services[0]["active"].(bool); !ok || !active {
		t.Fatalf("boolean column not decoded: %#v", services[0]["active"])
	}
}

func TestUnreadableSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	sink := newSink(t)
	if err := sink.Save(ctx, SnapshotKey, []byte("definitely not sqlite")); err != nil {
		t.Fatalf("save: %v", err)
	}
	s := openStore(t, Options{Sink: sink})
	res, err := s.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(res.CreatedTables) != len(DefaultTables()) {
		t.Fatalf("expected a fresh store, got %+v", res)
	}
}

func TestSeedPasswordIsHashed(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Options{SeedPassword: "Sh0bh#Muhurat"})
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	row, err := s.Get(ctx, "users", "user-admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	hash, _ := row["password_hash"].(string)
	if !auth.CheckPassword("Sh0bh#Muhurat", hash) {
		t.Fatalf("seeded hash does not match seed password")
	}

	if _, err := Open(ctx, Options{SeedPassword: "weak"}); err == nil {
		t.Fatalf("weak seed password must be rejected")
	}
}

func TestConcurrentWritesAndReads(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, Options{Sink: newSink(t)})
	if _, err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Insert(ctx, "logs", Row{"level": "info", "message": "tick", "context": map[string]any{"n": 1}}); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Rows(ctx, "report_formats", 10, 0); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent op: %v", err)
	}
	if n, _ := s.Count(ctx, "logs"); n != 10 {
		t.Fatalf("expected 10 log rows, got %d", n)
	}
}
