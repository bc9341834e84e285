package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"muhuratai/pkg/domain"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrTableNotAllowed = errors.New("table not allowed")
	ErrInvalidColumn   = errors.New("invalid column")
	ErrInvalidUpdate   = errors.New("invalid update")
)

// Store defines persistence operations for readings, report formats,
// preferences and profiles.
type Store interface {
	// readings
	CreateReading(ctx context.Context, r domain.Reading) error
	GetReading(ctx context.Context, id string) (domain.Reading, error)
	// MarkPaid moves a pending reading to completed. changed is false when the
	// reading was already paid; the stored reading is returned either way.
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (r domain.Reading, changed bool, err error)
	SaveReport(ctx context.Context, id string, report domain.Report) error
	ListHistory(ctx context.Context, userID string, page, pageSize int) ([]domain.HistoryItem, int, error)

	// report formats and preferences
	ListReportFormats(ctx context.Context) ([]domain.ReportFormat, error)
	GetReportPreference(ctx context.Context, userID string) (domain.ReportPreference, bool, error)
	SaveReportPreference(ctx context.Context, p domain.ReportPreference) error

	// profiles and privileged operations
	GetProfile(ctx context.Context, userID string) (domain.Profile, bool, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	UpdateRecordsBatch(ctx context.Context, table string, updates []domain.RecordUpdate) (domain.BatchResult, error)
}

// Table names of the relational backend.
const (
	TableReadings    = "shubh_muhurat_readings"
	TableFormats     = "report_formats"
	TablePreferences = "user_report_preferences"
	TableProfiles    = "profiles"
	ViewHistory      = "v_user_muhurat_history"
)

// batchColumns lists the tables reachable by UpdateRecordsBatch and the columns
// each one accepts.
var batchColumns = map[string]map[string]bool{
	TableReadings: set("event_name", "event_type", "event_location", "preferred_date",
		"preferred_time_start", "preferred_time_end", "notes", "amount", "currency",
		"payment_status", "is_paid", "payment_id", "report_format_id"),
	TableFormats:     set("name", "description", "skin", "is_default", "active"),
	TablePreferences: set("report_format_id"),
	TableProfiles:    set("email", "role"),
}

// batchKey is the key column matched against RecordUpdate.ID.
func batchKey(table string) string {
	if table == TablePreferences {
		return "user_id"
	}
	return "id"
}

func set(items ...string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it] = true
	}
	return out
}

// ValidateBatch checks a batch update against the table and column allow lists.
func ValidateBatch(table string, updates []domain.RecordUpdate) error {
	cols, ok := batchColumns[table]
	if !ok {
		return ErrTableNotAllowed
	}
	if len(updates) == 0 {
		return fmt.Errorf("%w: updates are required", ErrInvalidUpdate)
	}
	for _, u := range updates {
		if u.ID == "" {
			return fmt.Errorf("%w: update id is required", ErrInvalidUpdate)
		}
		if len(u.Fields) == 0 {
			return fmt.Errorf("%w: update fields are required", ErrInvalidUpdate)
		}
		for name := range u.Fields {
			if !cols[name] {
				return fmt.Errorf("%w: %s.%s", ErrInvalidColumn, table, name)
			}
		}
	}
	return nil
}

// NormalizePage clamps paging arguments to page >= 1 and 1 <= size <= 50.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = 10
	case pageSize > 50:
		pageSize = 50
	}
	return page, pageSize
}
