package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"muhuratai/internal/ratelimit"
	"muhuratai/internal/security"
	"muhuratai/internal/usertoken"
	"muhuratai/internal/util"
	"muhuratai/pkg/ai"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/events"
	"muhuratai/pkg/localdb"
	"muhuratai/pkg/report"
	"muhuratai/pkg/storage"
	"muhuratai/services/muhurat/internal/app"
	"muhuratai/services/muhurat/internal/config"
	"muhuratai/services/muhurat/internal/server"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	jwtLeeway, err := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	generationTimeout, err := config.ParseDuration("generationTimeout", cfg.GenerationTimeout)
	if err != nil {
		log.Fatalf("failed to parse generation timeout: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.JWTSecret,
		JWKSURL:  cfg.AuthJWKSURL,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	catalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open local catalog: %v", err)
	}
	defer catalog.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, logger)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		publisher = amqpPublisher
	}

	budgets := report.Budgets{}
	for tier, n := range cfg.TokenBudgets {
		budgets[domain.Tier(tier)] = n
	}
	appCore, err := app.New(ctx, app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Generation: ai.Config{
			Provider: cfg.GenerationProvider,
			Model:    cfg.GenerationModel,
			BaseURL:  cfg.GenerationBaseURL,
			APIKey:   cfg.GenerationAPIKey,
		},
		Temperature:              cfg.GenerationTemperature,
		Thresholds:               report.Thresholds{Standard: cfg.StandardThreshold, Premium: cfg.PremiumThreshold},
		Budgets:                  budgets,
		GenerationMode:           cfg.GenerationMode,
		GenerationTimeout:        generationTimeout,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		QueueName:                cfg.QueueName,
		QueueGroup:               cfg.QueueGroup,
		QueueConcurrency:         cfg.QueueConcurrency,
		ReportRateLimitPerMinute: cfg.ReportRateLimitPerMinute,
		Publisher:                publisher,
		Catalog:                  catalog,
		Logger:                   logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	var catalogLimiter *ratelimit.FixedWindowLimiter
	if cfg.FeedbackRateLimitPerMin > 0 {
		catalogLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, ratelimit.DefaultPrefix+":catalog", cfg.FeedbackRateLimitPerMin, time.Minute)
		if err != nil {
			log.Fatalf("failed to init catalog limiter: %v", err)
		}
	}

	alerter := security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, security.DefaultPrefix)

	httpServer, err := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  verifier,
		CatalogLimiter: catalogLimiter,
		TrustedProxies: trustedProxies,
		Alerter:        alerter,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("muhurat service listening", "addr", addr, "mode", appCore.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

// openCatalog opens the embedded store on the configured snapshot sink and
// brings its schema up to date.
func openCatalog(ctx context.Context, cfg config.FileConfig, logger *slog.Logger) (*localdb.Store, error) {
	var sink storage.Sink
	switch {
	case cfg.MinioEndpoint != "":
		minioSink, err := storage.NewMinioSink(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		sink = minioSink
	case cfg.SnapshotDir != "":
		fileSink, err := storage.NewFileSink(cfg.SnapshotDir)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	}
	db, err := localdb.Open(ctx, localdb.Options{
		Sink:         sink,
		Dir:          cfg.LocalDBDir,
		SeedPassword: cfg.SeedPassword,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	res, err := db.Bootstrap(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("local catalog ready",
		"created_tables", len(res.CreatedTables),
		"added_columns", len(res.AddedColumns),
		"seeded_tables", len(res.SeededTables),
	)
	return db, nil
}
