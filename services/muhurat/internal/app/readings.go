package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"muhuratai/internal/util"
	"muhuratai/pkg/domain"
	"muhuratai/pkg/queue"
	"muhuratai/pkg/store"
)

const defaultCurrency = "INR"

// ReadingInput is the event metadata collected for a new reading.
type ReadingInput struct {
	EventName          string  `json:"eventName"`
	EventType          string  `json:"eventType"`
	EventLocation      string  `json:"eventLocation"`
	PreferredDate      string  `json:"preferredDate"`
	PreferredTimeStart string  `json:"preferredTimeStart"`
	PreferredTimeEnd   string  `json:"preferredTimeEnd"`
	Notes              string  `json:"notes"`
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	ReportFormatID     string  `json:"reportFormatId"`
}

// PaymentInput carries the payment details reported by the payment provider.
type PaymentInput struct {
	PaymentID string `json:"paymentId"`
}

// PaymentResult is the outcome of a payment confirmation. Job is set when
// generation was handed to the queue; Generated is false when the reading had
// already been paid and nothing was triggered.
type PaymentResult struct {
	Reading   domain.Reading `json:"reading"`
	Job       *queue.Job     `json:"job,omitempty"`
	Generated bool           `json:"generated"`
}

// HistoryPage is one page of a user's reading history.
type HistoryPage struct {
	Items []domain.HistoryItem `json:"items"`
	domain.Page
}

// CreateReading validates the input and stores a pending reading.
func (a *App) CreateReading(ctx context.Context, caller Caller, in ReadingInput) (domain.Reading, error) {
	if caller.UserID == "" {
		return domain.Reading{}, ErrForbidden
	}
	in.EventName = strings.TrimSpace(in.EventName)
	in.EventType = strings.TrimSpace(in.EventType)
	if in.EventName == "" {
		return domain.Reading{}, validationError("eventName is required")
	}
	if in.EventType == "" {
		return domain.Reading{}, validationError("eventType is required")
	}
	if in.Amount < 0 {
		return domain.Reading{}, validationError("amount must be >= 0")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	formatID, err := a.resolveFormat(ctx, caller.UserID, strings.TrimSpace(in.ReportFormatID))
	if err != nil {
		return domain.Reading{}, err
	}

	now := a.now().UTC()
	r := domain.Reading{
		ID:                 util.NewID(),
		UserID:             caller.UserID,
		EventName:          in.EventName,
		EventType:          in.EventType,
		EventLocation:      strings.TrimSpace(in.EventLocation),
		PreferredDate:      strings.TrimSpace(in.PreferredDate),
		PreferredTimeStart: strings.TrimSpace(in.PreferredTimeStart),
		PreferredTimeEnd:   strings.TrimSpace(in.PreferredTimeEnd),
		Notes:              strings.TrimSpace(in.Notes),
		Amount:             in.Amount,
		Currency:           currency,
		PaymentStatus:      domain.PaymentPending,
		ReportFormatID:     formatID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := a.store.CreateReading(ctx, r); err != nil {
		return domain.Reading{}, fmt.Errorf("create reading: %w", err)
	}
	a.logger.Info("reading created", "reading_id", r.ID, "user_id", r.UserID, "event_type", r.EventType)
	return r, nil
}

// resolveFormat validates an explicit format or falls back to the user's preference.
func (a *App) resolveFormat(ctx context.Context, userID, formatID string) (string, error) {
	if formatID == "" {
		pref, ok, err := a.store.GetReportPreference(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("load report preference: %w", err)
		}
		if ok {
			return pref.ReportFormatID, nil
		}
		return "", nil
	}
	if _, err := a.activeFormat(ctx, formatID); err != nil {
		return "", err
	}
	return formatID, nil
}

// GetReading returns a reading owned by the caller.
func (a *App) GetReading(ctx context.Context, caller Caller, id string) (domain.Reading, error) {
	r, err := a.store.GetReading(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Reading{}, ErrReadingNotFound
		}
		return domain.Reading{}, fmt.Errorf("get reading: %w", err)
	}
	if !caller.canAccess(r.UserID) {
		return domain.Reading{}, ErrForbidden
	}
	return r, nil
}

// ConfirmPayment marks the reading paid and triggers report generation. A
// repeated confirmation returns the stored reading and triggers nothing.
func (a *App) ConfirmPayment(ctx context.Context, caller Caller, id string, payment PaymentInput) (PaymentResult, error) {
	paymentID := strings.TrimSpace(payment.PaymentID)
	if paymentID == "" {
		return PaymentResult{}, validationError("paymentId is required")
	}
	r, err := a.GetReading(ctx, caller, id)
	if err != nil {
		return PaymentResult{}, err
	}
	r, changed, err := a.store.MarkPaid(ctx, r.ID, paymentID, a.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PaymentResult{}, ErrReadingNotFound
		}
		return PaymentResult{}, fmt.Errorf("mark paid: %w", err)
	}
	if !changed {
		a.logger.Warn("payment already confirmed", "reading_id", r.ID, "payment_id", paymentID)
		return PaymentResult{Reading: r}, nil
	}
	a.logger.Info("payment confirmed", "reading_id", r.ID, "payment_id", paymentID, "amount", r.Amount)
	a.recordTransaction(ctx, r)

	if a.mode == ModeQueue {
		job, err := a.queue.Enqueue(ctx, r.ID)
		if err != nil {
			return PaymentResult{Reading: r}, fmt.Errorf("enqueue report: %w", err)
		}
		return PaymentResult{Reading: r, Job: &job}, nil
	}
	generated, err := a.generate(ctx, r)
	if err != nil {
		return PaymentResult{Reading: r}, err
	}
	return PaymentResult{Reading: generated, Generated: true}, nil
}

// ListHistory pages through the caller's readings, newest first.
func (a *App) ListHistory(ctx context.Context, caller Caller, page, pageSize int) (HistoryPage, error) {
	if caller.UserID == "" {
		return HistoryPage{}, ErrForbidden
	}
	page, pageSize = store.NormalizePage(page, pageSize)
	items, total, err := a.store.ListHistory(ctx, caller.UserID, page, pageSize)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("list history: %w", err)
	}
	return HistoryPage{
		Items: items,
		Page:  domain.Page{Page: page, PageSize: pageSize, Total: total},
	}, nil
}

// GetJob returns a queued generation job of one of the caller's readings.
func (a *App) GetJob(ctx context.Context, caller Caller, jobID string) (queue.Job, error) {
	if a.queue == nil {
		return queue.Job{}, ErrUnavailable
	}
	job, ok, err := a.queue.GetJob(ctx, jobID)
	if err != nil {
		return queue.Job{}, fmt.Errorf("get job: %w", err)
	}
	if !ok {
		return queue.Job{}, ErrJobNotFound
	}
	if _, err := a.GetReading(ctx, caller, job.ReadingID); err != nil {
		if errors.Is(err, ErrReadingNotFound) {
			return queue.Job{}, ErrJobNotFound
		}
		return queue.Job{}, err
	}
	return job, nil
}

// recordTransaction mirrors a completed payment into the local catalog.
func (a *App) recordTransaction(ctx context.Context, r domain.Reading) {
	if a.catalog == nil {
		return
	}
	_, err := a.catalog.Insert(ctx, "transactions", map[string]any{
		"user_id":    r.UserID,
		"reading_id": r.ID,
		"amount":     r.Amount,
		"currency":   r.Currency,
		"status":     string(r.PaymentStatus),
		"provider":   "external",
		"created_at": a.now().UTC(),
	})
	if err != nil {
		a.logger.Warn("record transaction failed", "reading_id", r.ID, "err", err)
	}
}
