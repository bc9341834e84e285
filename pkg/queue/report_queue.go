// Package queue runs report-generation jobs over a Redis stream consumer group.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"muhuratai/internal/util"
)

// Job states.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ErrReadingRequired is returned when a job is enqueued without a reading.
var ErrReadingRequired = errors.New("readingId required")

// Job is the tracked state of one report generation.
type Job struct {
	ID           string    `json:"id"`
	ReadingID    string    `json:"readingId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Finished reports whether the job reached a final state.
func (j Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Handler generates the report of one job.
type Handler func(ctx context.Context, job Job) error

// Config configures a ReportQueue. Zero values take defaults.
type Config struct {
	Addr     string
	Password string
	// Client, when set, is used instead of dialing Addr.
	Client *redis.Client

	Stream   string
	Group    string
	Consumer string

	// MaxAttempts bounds how often one job is handed to the handler.
	MaxAttempts int
	JobTTL      time.Duration
	Block       time.Duration
	ClaimIdle   time.Duration
	RetryDelay  time.Duration
	MaxLen      int64
	BatchSize   int64

	Logger *slog.Logger
	Now    func() time.Time
}

// ReportQueue delivers report jobs to workers. Messages carry only ids; job
// state lives in a JSON snapshot per job that expires after JobTTL.
type ReportQueue struct {
	client   *redis.Client
	logger   *slog.Logger
	now      func() time.Time
	stream   string
	group    string
	consumer string

	maxAttempts int
	jobTTL      time.Duration
	block       time.Duration
	claimIdle   time.Duration
	retryDelay  time.Duration
	maxLen      int64
	batchSize   int64

	groupOnce sync.Once
}

// New builds a queue. It does not contact Redis until Enqueue or Start.
func New(cfg Config) (*ReportQueue, error) {
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	client := cfg.Client
	if client == nil {
		addr := strings.TrimSpace(cfg.Addr)
		if addr == "" {
			return nil, errors.New("redis addr required")
		}
		client = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReportQueue{
		client:      client,
		logger:      logger.With("component", "report_queue", "stream", stream),
		now:         func() time.Time { return now().UTC() },
		stream:      stream,
		group:       orString(cfg.Group, "report-workers"),
		consumer:    orString(cfg.Consumer, util.NewID()),
		maxAttempts: orInt(cfg.MaxAttempts, 1),
		jobTTL:      orDuration(cfg.JobTTL, 24*time.Hour),
		block:       orDuration(cfg.Block, 5*time.Second),
		claimIdle:   orDuration(cfg.ClaimIdle, time.Minute),
		retryDelay:  orDuration(cfg.RetryDelay, 2*time.Second),
		maxLen:      int64(orInt(int(cfg.MaxLen), 10000)),
		batchSize:   int64(orInt(int(cfg.BatchSize), 10)),
	}, nil
}

// Enqueue records a queued job for the reading and appends it to the stream.
func (q *ReportQueue) Enqueue(ctx context.Context, readingID string) (Job, error) {
	readingID = strings.TrimSpace(readingID)
	if readingID == "" {
		return Job{}, ErrReadingRequired
	}
	now := q.now()
	job := Job{
		ID:        util.NewID(),
		ReadingID: readingID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.save(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, q.addArgs(job.ID, readingID)).Err(); err != nil {
		return Job{}, fmt.Errorf("append job %s: %w", job.ID, err)
	}
	return job, nil
}

// GetJob returns the tracked state of a job. Expired and unknown jobs are
// reported as not found.
func (q *ReportQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	raw, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, false, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, true, nil
}

// Start runs workers consumers until ctx is cancelled. A job whose handler
// fails goes back on the stream until it was attempted MaxAttempts times.
func (q *ReportQueue) Start(ctx context.Context, workers int, handler Handler) {
	if workers <= 0 {
		workers = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < workers; i++ {
		go q.work(ctx, fmt.Sprintf("%s-%d", q.consumer, i), handler)
	}
}

// Close releases the Redis client.
func (q *ReportQueue) Close() error {
	return q.client.Close()
}

func (q *ReportQueue) ensureGroup(ctx context.Context) {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.logger.Warn("create consumer group failed", "group", q.group, "err", err)
		}
	})
}

func (q *ReportQueue) work(ctx context.Context, consumer string, handler Handler) {
	for ctx.Err() == nil {
		for _, msg := range q.reclaim(ctx, consumer) {
			q.handle(ctx, msg, handler)
		}
		msgs, err := q.read(ctx, consumer)
		if err != nil {
			if ctx.Err() == nil {
				q.logger.Warn("read stream failed", "consumer", consumer, "err", err)
				q.sleep(ctx)
			}
			continue
		}
		for _, msg := range msgs {
			q.handle(ctx, msg, handler)
		}
	}
}

func (q *ReportQueue) read(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.batchSize,
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

// reclaim takes over messages left pending by a worker that stopped mid-job.
func (q *ReportQueue) reclaim(ctx context.Context, consumer string) []redis.XMessage {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
		q.logger.Debug("reclaim pending failed", "consumer", consumer, "err", err)
	}
	return msgs
}

func (q *ReportQueue) handle(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, readingID, ok := parseMessage(msg)
	if !ok {
		q.logger.Warn("dropping malformed job message", "message_id", msg.ID)
		q.drop(ctx, msg.ID)
		return
	}
	job, err := q.update(ctx, jobID, func(j *Job) {
		j.ReadingID = readingID
		j.Status = StatusProcessing
		j.Attempts++
	})
	if err != nil {
		q.logger.Warn("claim job failed", "job_id", jobID, "err", err)
		q.drop(ctx, msg.ID)
		return
	}

	herr := handler(ctx, job)
	switch {
	case herr == nil:
		q.settle(ctx, jobID, StatusDone, "")
		q.drop(ctx, msg.ID)
	case job.Attempts >= q.maxAttempts:
		q.logger.Warn("report job failed", "job_id", jobID, "reading_id", readingID, "attempts", job.Attempts, "err", herr)
		q.settle(ctx, jobID, StatusFailed, herr.Error())
		q.drop(ctx, msg.ID)
	default:
		q.logger.Info("retrying report job", "job_id", jobID, "reading_id", readingID, "attempts", job.Attempts, "err", herr)
		q.settle(ctx, jobID, StatusQueued, herr.Error())
		q.sleep(ctx)
		if err := q.retry(ctx, msg.ID, jobID, readingID); err != nil {
			q.logger.Warn("requeue job failed", "job_id", jobID, "err", err)
		}
	}
}

// retry appends a fresh message for the job and retires the old one in one
// transaction, so a failure leaves the original pending for reclaim.
func (q *ReportQueue) retry(ctx context.Context, msgID, jobID, readingID string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(jobID, readingID))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *ReportQueue) drop(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, _ = pipe.Exec(ctx)
}

func (q *ReportQueue) settle(ctx context.Context, jobID, status, errMsg string) {
	if _, err := q.update(ctx, jobID, func(j *Job) {
		j.Status = status
		j.ErrorMessage = errMsg
	}); err != nil {
		q.logger.Warn("record job state failed", "job_id", jobID, "status", status, "err", err)
	}
}

// update applies fn to the stored job, recreating it when it has expired.
func (q *ReportQueue) update(ctx context.Context, jobID string, fn func(*Job)) (Job, error) {
	job, found, err := q.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	now := q.now()
	if !found {
		job = Job{ID: jobID, CreatedAt: now}
	}
	fn(&job)
	job.UpdatedAt = now
	if err := q.save(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *ReportQueue) save(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.Set(ctx, q.jobKey(job.ID), raw, q.jobTTL).Err(); err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

func (q *ReportQueue) sleep(ctx context.Context) {
	t := time.NewTimer(q.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (q *ReportQueue) addArgs(jobID, readingID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job": jobID, "reading": readingID},
	}
}

func (q *ReportQueue) jobKey(jobID string) string {
	return q.stream + ":job:" + jobID
}

func parseMessage(msg redis.XMessage) (jobID, readingID string, ok bool) {
	jobID, _ = msg.Values["job"].(string)
	readingID, _ = msg.Values["reading"].(string)
	return jobID, readingID, jobID != "" && readingID != ""
}

func orString(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}

func orInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
