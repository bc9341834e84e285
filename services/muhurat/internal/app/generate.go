package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"muhuratai/pkg/ai"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/events"
	"muhuratai/pkg/queue"
	"muhuratai/pkg/report"
	"muhuratai/pkg/store"
)

// GenerateReport (re)generates the report of a paid reading synchronously.
func (a *App) GenerateReport(ctx context.Context, caller Caller, id string) (domain.Reading, error) {
	r, err := a.GetReading(ctx, caller, id)
	if err != nil {
		return domain.Reading{}, err
	}
	if !r.IsPaid {
		return domain.Reading{}, ErrNotPaid
	}
	if a.limiter != nil && !a.limiter.Allow(caller.UserID) {
		return domain.Reading{}, ErrRateLimited
	}
	return a.generate(ctx, r)
}

// generate runs prompt, model call and parsing, then persists the report.
// Nothing is stored when the model call fails.
func (a *App) generate(ctx context.Context, r domain.Reading) (domain.Reading, error) {
	tier := report.TierFor(r.Amount, a.thresholds)
	prompt := report.BuildPrompt(r, tier)
	opts := ai.GenerateOptions{MaxTokens: a.budgets.For(tier), Temperature: a.temperature}

	genCtx, cancel := context.WithTimeout(ctx, a.generationTimeout)
	defer cancel()
	start := time.Now()
	raw, err := a.generator.GenerateText(genCtx, report.SystemPrompt, prompt, opts)
	if err != nil {
		a.logger.Error("report generation failed", "reading_id", r.ID, "tier", tier, "err", err)
		return domain.Reading{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	rep := report.Parse(raw, r, tier, a.now())
	if len(rep.Defaulted) > 0 {
		a.logger.Warn("report fields defaulted", "reading_id", r.ID, "fields", rep.Defaulted)
	}
	if err := a.store.SaveReport(ctx, r.ID, rep); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Reading{}, ErrReadingNotFound
		}
		return domain.Reading{}, fmt.Errorf("save report: %w", err)
	}
	a.logger.Info("report generated",
		"reading_id", r.ID,
		"tier", tier,
		"max_tokens", opts.MaxTokens,
		"chars", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	event := events.ReportGenerated{
		ReadingID:   r.ID,
		UserID:      r.UserID,
		EventName:   r.EventName,
		EventType:   r.EventType,
		Tier:        string(tier),
		Defaulted:   rep.Defaulted,
		GeneratedAt: rep.GeneratedAt,
	}
	if err := a.publisher.PublishReportGenerated(ctx, event); err != nil {
		a.logger.Warn("publish report event failed", "reading_id", r.ID, "err", err)
	}

	r.Report = &rep
	return r, nil
}

// processJob is the queue handler for report jobs.
func (a *App) processJob(ctx context.Context, job queue.Job) error {
	r, err := a.store.GetReading(ctx, job.ReadingID)
	if err != nil {
		return fmt.Errorf("load reading %s: %w", job.ReadingID, err)
	}
	if !r.IsPaid {
		return ErrNotPaid
	}
	_, err = a.generate(ctx, r)
	return err
}
