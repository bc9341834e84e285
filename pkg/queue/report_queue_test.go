package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, cfg Config) *ReportQueue {
	t.Helper()
	srv := miniredis.RunT(t)
	cfg.Client = redis.NewClient(&redis.Options{Addr: srv.Addr()})
	if cfg.Stream == "" {
		cfg.Stream = "muhurat:reports:test"
	}
	if cfg.Block == 0 {
		cfg.Block = 20 * time.Millisecond
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	q, err := New(cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestEnqueueRequiresReading(t *testing.T) {
	q := newTestQueue(t, Config{})
	if _, err := q.Enqueue(context.Background(), "  "); !errors.Is(err, ErrReadingRequired) {
		t.Fatalf("expected ErrReadingRequired, got %v", err)
	}
	if _, err := New(Config{Addr: "localhost:6379"}); err == nil {
		t.Fatalf("expected error without stream")
	}
}

func TestEnqueueTracksQueuedJob(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	q := newTestQueue(t, Config{Now: func() time.Time { return fixed }})
	ctx := context.Background()

	job, err := q.Enqueue(ctx, "reading-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, found, err := q.GetJob(ctx, job.ID)
	if err != nil || !found {
		t.Fatalf("get job: found=%v err=%v", found, err)
	}
	if got.Status != StatusQueued || got.ReadingID != "reading-1" || !got.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected job %+v", got)
	}
	if got.Finished() {
		t.Fatalf("queued job must not be finished")
	}
	if _, found, _ := q.GetJob(ctx, "missing"); found {
		t.Fatalf("unknown job must not be found")
	}
}

func TestRetryReplacesPendingMessage(t *testing.T) {
	q := newTestQueue(t, Config{Group: "workers"})
	ctx := context.Background()
	q.ensureGroup(ctx)

	job, err := q.Enqueue(ctx, "reading-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := q.read(ctx, "consumer-1")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("read: msgs=%d err=%v", len(msgs), err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.retry(canceled, msgs[0].ID, job.ID, job.ReadingID); err == nil {
		t.Fatalf("expected retry to fail on canceled context")
	}
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("failed retry must keep the original pending, got %d", pending.Count)
	}

	if err := q.retry(ctx, msgs[0].ID, job.ID, job.ReadingID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	pending, err = q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages after retry, got %d", pending.Count)
	}
	again, err := q.read(ctx, "consumer-2")
	if err != nil || len(again) != 1 {
		t.Fatalf("read requeued: msgs=%d err=%v", len(again), err)
	}
	jobID, readingID, ok := parseMessage(again[0])
	if !ok || jobID != job.ID || readingID != "reading-1" {
		t.Fatalf("unexpected requeued payload %+v", again[0].Values)
	}
}

func TestWorkersSettleJobs(t *testing.T) {
	q := newTestQueue(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1, func(_ context.Context, job Job) error {
		if job.ReadingID == "bad" {
			return errors.New("generation failed")
		}
		return nil
	})

	ok, err := q.Enqueue(ctx, "good")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	bad, err := q.Enqueue(ctx, "bad")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitForStatus(t, q, ok.ID, StatusDone)
	failed := waitForStatus(t, q, bad.ID, StatusFailed)
	if failed.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", failed.Attempts)
	}
	if failed.ErrorMessage != "generation failed" || !failed.Finished() {
		t.Fatalf("unexpected failed job %+v", failed)
	}
}

func TestWorkersRetryUpToMaxAttempts(t *testing.T) {
	q := newTestQueue(t, Config{MaxAttempts: 2})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	q.Start(ctx, 1, func(context.Context, Job) error {
		if calls.Add(1) == 1 {
			return errors.New("model timeout")
		}
		return nil
	})

	job, err := q.Enqueue(ctx, "reading-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitForStatus(t, q, job.ID, StatusDone)
	if done.Attempts != 2 || done.ErrorMessage != "" {
		t.Fatalf("expected success on second attempt, got %+v", done)
	}
}

func waitForStatus(t *testing.T, q *ReportQueue, jobID, status string) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, found, err := q.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if found && job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s", jobID, status)
	return Job{}
}
