package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"muhuratai/pkg/domain"
)

// MemoryStore keeps every record in-process. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string]domain.Reading
	formats  map[string]domain.ReportFormat
	prefs    map[string]domain.ReportPreference
	profiles map[string]domain.Profile
}

// NewMemoryStore initializes a store holding the default report formats.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		readings: make(map[string]domain.Reading),
		formats:  make(map[string]domain.ReportFormat),
		prefs:    make(map[string]domain.ReportPreference),
		profiles: make(map[string]domain.Profile),
	}
	for _, f := range DefaultReportFormats() {
		m.formats[f.ID] = f
	}
	return m
}

// SaveProfile stores or replaces a profile.
func (m *MemoryStore) SaveProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MemoryStore) CreateReading(_ context.Context, r domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.readings[r.ID]; exists {
		return fmt.Errorf("create reading: duplicate id %s", r.ID)
	}
	m.readings[r.ID] = cloneReading(r)
	return nil
}

func (m *MemoryStore) GetReading(_ context.Context, id string) (domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.readings[id]
	if !ok {
		return domain.Reading{}, ErrNotFound
	}
	return cloneReading(r), nil
}

func (m *MemoryStore) MarkPaid(_ context.Context, id, paymentID string, at time.Time) (domain.Reading, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readings[id]
	if !ok {
		return domain.Reading{}, false, ErrNotFound
	}
	if r.IsPaid {
		return cloneReading(r), false, nil
	}
	r.PaymentStatus = domain.PaymentCompleted
	r.IsPaid = true
	r.PaymentID = paymentID
	r.UpdatedAt = at.UTC()
	m.readings[id] = r
	return cloneReading(r), true, nil
}

func (m *MemoryStore) SaveReport(_ context.Context, id string, report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readings[id]
	if !ok {
		return ErrNotFound
	}
	rep := report
	r.Report = &rep
	r.UpdatedAt = time.Now().UTC()
	m.readings[id] = r
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, userID string, page, pageSize int) ([]domain.HistoryItem, int, error) {
	page, pageSize = NormalizePage(page, pageSize)
	m.mu.RLock()
	all := make([]domain.Reading, 0)
	for _, r := range m.readings {
		if r.UserID == userID {
			all = append(all, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	items := make([]domain.HistoryItem, 0, end-start)
	for _, r := range all[start:end] {
		item := domain.HistoryItem{
			ID:            r.ID,
			UserID:        r.UserID,
			EventName:     r.EventName,
			EventType:     r.EventType,
			EventLocation: r.EventLocation,
			PreferredDate: r.PreferredDate,
			PaymentStatus: r.PaymentStatus,
			IsPaid:        r.IsPaid,
			CreatedAt:     r.CreatedAt,
		}
		if r.Report != nil {
			item.ReportTitle = r.Report.Title
		}
		items = append(items, item)
	}
	return items, len(all), nil
}

func (m *MemoryStore) ListReportFormats(_ context.Context) ([]domain.ReportFormat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ReportFormat, 0, len(m.formats))
	for _, f := range m.formats {
		if f.Active {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) GetReportPreference(_ context.Context, userID string) (domain.ReportPreference, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	return p, ok, nil
}

func (m *MemoryStore) SaveReportPreference(_ context.Context, p domain.ReportPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[p.UserID] = p
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

func (m *MemoryStore) IsAdmin(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[userID].Role == domain.RoleAdmin, nil
}

// UpdateRecordsBatch applies updates to copies first and commits only when
// every update succeeded, matching the transactional backend.
func (m *MemoryStore) UpdateRecordsBatch(_ context.Context, table string, updates []domain.RecordUpdate) (domain.BatchResult, error) {
	if err := ValidateBatch(table, updates); err != nil {
		return domain.BatchResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := domain.BatchResult{Table: table}
	var commit []func()
	for _, u := range updates {
		var (
			apply func()
			found bool
			err   error
		)
		switch table {
		case TableReadings:
			var r domain.Reading
			if r, found = m.readings[u.ID]; found {
				err = applyReadingFields(&r, u.Fields)
				r.UpdatedAt = time.Now().UTC()
				apply = func() { m.readings[r.ID] = r }
			}
		case TableFormats:
			var f domain.ReportFormat
			if f, found = m.formats[u.ID]; found {
				err = applyFormatFields(&f, u.Fields)
				apply = func() { m.formats[f.ID] = f }
			}
		case TablePreferences:
			var p domain.ReportPreference
			if p, found = m.prefs[u.ID]; found {
				p.ReportFormatID, err = asString(u.Fields["report_format_id"])
				p.UpdatedAt = time.Now().UTC()
				apply = func() { m.prefs[p.UserID] = p }
			}
		case TableProfiles:
			var p domain.Profile
			if p, found = m.profiles[u.ID]; found {
				err = applyProfileFields(&p, u.Fields)
				apply = func() { m.profiles[p.ID] = p }
			}
		}
		if err != nil {
			return domain.BatchResult{}, fmt.Errorf("update %s %s: %w", table, u.ID, err)
		}
		if found {
			commit = append(commit, apply)
			result.Updated++
		}
	}
	for _, apply := range commit {
		apply()
	}
	return result, nil
}

func applyReadingFields(r *domain.Reading, fields map[string]any) error {
	for name, v := range fields {
		var err error
		switch name {
		case "event_name":
			r.EventName, err = asString(v)
		case "event_type":
			r.EventType, err = asString(v)
		case "event_location":
			r.EventLocation, err = asString(v)
		case "preferred_date":
			r.PreferredDate, err = asString(v)
		case "preferred_time_start":
			r.PreferredTimeStart, err = asString(v)
		case "preferred_time_end":
			r.PreferredTimeEnd, err = asString(v)
		case "notes":
			r.Notes, err = asString(v)
		case "amount":
			r.Amount, err = asFloat(v)
		case "currency":
			r.Currency, err = asString(v)
		case "payment_status":
			var s string
			s, err = asString(v)
			r.PaymentStatus = domain.PaymentStatus(s)
		case "is_paid":
			r.IsPaid, err = asBool(v)
		case "payment_id":
			r.PaymentID, err = asString(v)
		case "report_format_id":
			r.ReportFormatID, err = asString(v)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func applyFormatFields(f *domain.ReportFormat, fields map[string]any) error {
	for name, v := range fields {
		var err error
		switch name {
		case "name":
			f.Name, err = asString(v)
		case "description":
			f.Description, err = asString(v)
		case "skin":
			f.Skin, err = asString(v)
		case "is_default":
			f.IsDefault, err = asBool(v)
		case "active":
			f.Active, err = asBool(v)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func applyProfileFields(p *domain.Profile, fields map[string]any) error {
	for name, v := range fields {
		var err error
		switch name {
		case "email":
			p.Email, err = asString(v)
		case "role":
			var s string
			s, err = asString(v)
			p.Role = domain.UserRole(s)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func cloneReading(r domain.Reading) domain.Reading {
	if r.Report != nil {
		rep := *r.Report
		r.Report = &rep
	}
	return r
}
