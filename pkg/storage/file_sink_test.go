package storage

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestFileSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	sink, err := NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if _, err := sink.Load(ctx, "db.sqlite"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := sink.Save(ctx, "db.sqlite", []byte("one")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sink.Save(ctx, "db.sqlite", []byte("two")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := sink.Load(ctx, "db.sqlite")
	if err != nil || string(data) != "two" {
		t.Fatalf("load = %q, %v", data, err)
	}

	entries, _ := os.ReadDir(sink.basePath)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
	if err := sink.Delete(ctx, "db.sqlite"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := sink.Delete(ctx, "db.sqlite"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestFileSinkKeepsKeysInsideBase(t *testing.T) {
	ctx := context.Background()
	sink, _ := NewFileSink(t.TempDir())
	if err := sink.Save(ctx, "../../escape.sqlite", []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := sink.Load(ctx, "escape.sqlite"); err != nil {
		t.Fatalf("expected key flattened into base dir: %v", err)
	}
}

func TestNewFileSinkRequiresPath(t *testing.T) {
	if _, err := NewFileSink("  "); err == nil {
		t.Fatalf("expected error")
	}
}
