package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"muhuratai/internal/ratelimit"
	"muhuratai/pkg/ai"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/events"
	"muhuratai/pkg/localdb"
	"muhuratai/pkg/queue"
	"muhuratai/pkg/report"
	"muhuratai/pkg/store"
)

// Generation modes.
const (
	ModeSync  = "sync"
	ModeQueue = "queue"
)

const (
	defaultQueueName         = "muhurat:reports"
	defaultQueueGroup        = "muhurat-report-workers"
	defaultGenerationTimeout = 2 * time.Minute
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	// Generator overrides the provider built from Generation.
	Generator  ai.TextGenerator
	Generation ai.Config

	Temperature       float64
	Thresholds        report.Thresholds
	Budgets           report.Budgets
	GenerationMode    string
	GenerationTimeout time.Duration

	RedisAddr                string
	RedisPassword            string
	QueueName                string
	QueueGroup               string
	QueueConcurrency         int
	ReportRateLimitPerMinute int

	Publisher events.Publisher
	Catalog   *localdb.Store
	Logger    *slog.Logger
	Now       func() time.Time
}

// App is the core reading pipeline: records, payment, generation and parsing.
type App struct {
	store             store.Store
	generator         ai.TextGenerator
	temperature       float64
	thresholds        report.Thresholds
	budgets           report.Budgets
	mode              string
	generationTimeout time.Duration

	redis     *redis.Client
	queue     *queue.ReportQueue
	limiter   *ratelimit.FixedWindowLimiter
	publisher events.Publisher
	catalog   *localdb.Store
	logger    *slog.Logger
	now       func() time.Time
	stop      context.CancelFunc
}

// New constructs the application. In queue mode report workers start
// immediately and run until Close.
func New(ctx context.Context, cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	generator := cfg.Generator
	if generator == nil {
		var err error
		generator, err = ai.NewGenerator(ctx, cfg.Generation)
		if err != nil {
			return nil, fmt.Errorf("init generator: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = report.DefaultTemperature
	}
	thresholds := cfg.Thresholds
	if thresholds.Standard <= 0 || thresholds.Premium <= 0 {
		thresholds = report.DefaultThresholds()
	}
	if thresholds.Premium < thresholds.Standard {
		return nil, fmt.Errorf("premium threshold %.2f below standard threshold %.2f", thresholds.Premium, thresholds.Standard)
	}
	budgets := report.DefaultBudgets()
	for tier, n := range cfg.Budgets {
		if n > 0 {
			budgets[tier] = n
		}
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.GenerationMode))
	if mode == "" {
		mode = ModeSync
	}
	if mode != ModeSync && mode != ModeQueue {
		return nil, fmt.Errorf("unknown generation mode %q", cfg.GenerationMode)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		store:             dataStore,
		generator:         generator,
		temperature:       temperature,
		thresholds:        thresholds,
		budgets:           budgets,
		mode:              mode,
		generationTimeout: timeout,
		publisher:         publisher,
		catalog:           cfg.Catalog,
		logger:            logger.With("component", "app"),
		now:               now,
	}

	needRedis := mode == ModeQueue || cfg.ReportRateLimitPerMinute > 0
	if needRedis {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, errors.New("redis addr required for queue mode and report rate limiting")
		}
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	if cfg.ReportRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiterWithClient(a.redis, ratelimit.DefaultPrefix+":report", cfg.ReportRateLimitPerMinute, time.Minute)
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("init report limiter: %w", err)
		}
		a.limiter = limiter
	}
	if mode == ModeQueue {
		q, err := queue.New(queue.Config{
			Client:      a.redis,
			Stream:      defaultString(cfg.QueueName, defaultQueueName),
			Group:       defaultString(cfg.QueueGroup, defaultQueueGroup),
			MaxAttempts: 1,
			Logger:      logger,
		})
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("init report queue: %w", err)
		}
		a.queue = q
		workerCtx, cancel := context.WithCancel(context.Background())
		a.stop = cancel
		q.Start(workerCtx, cfg.QueueConcurrency, a.processJob)
	}
	return a, nil
}

// Close stops queue workers and releases the Redis client.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

// Mode reports the configured generation mode.
func (a *App) Mode() string { return a.mode }

// Caller is the authenticated user on whose behalf an operation runs.
type Caller struct {
	UserID string
	Admin  bool
}

// CallerFor builds the caller of a verified token. A token role of admin is
// trusted as is; otherwise the profile role decides.
func (a *App) CallerFor(ctx context.Context, userID, tokenRole string) (Caller, error) {
	caller := Caller{UserID: userID, Admin: strings.EqualFold(tokenRole, string(domain.RoleAdmin))}
	if caller.Admin {
		return caller, nil
	}
	admin, err := a.store.IsAdmin(ctx, userID)
	if err != nil {
		return Caller{}, fmt.Errorf("check admin: %w", err)
	}
	caller.Admin = admin
	return caller, nil
}

func (c Caller) canAccess(ownerID string) bool {
	return c.Admin || (c.UserID != "" && c.UserID == ownerID)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
