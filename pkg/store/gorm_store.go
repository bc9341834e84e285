package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"muhuratai/pkg/domain"
)

const migrateLockID int64 = 61021901

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, runs auto-migrations, creates the history view and
// seeds report formats when none exist.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&ReadingModel{}, &ReportFormatModel{}, &ReportPreferenceModel{}, &ProfileModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := tx.Exec(fmt.Sprintf(`
		CREATE OR REPLACE VIEW %s AS
		SELECT id, user_id, event_name, event_type, event_location, preferred_date,
		       payment_status, is_paid, report_title, created_at
		FROM %s
	`, ViewHistory, TableReadings)).Error; err != nil {
		return fmt.Errorf("create history view: %w", err)
	}
	var count int64
	if err := tx.Model(&ReportFormatModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count report formats: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	formats := DefaultReportFormats()
	models := make([]ReportFormatModel, 0, len(formats))
	for _, f := range formats {
		m := formatToModel(f)
		m.CreatedAt, m.UpdatedAt = now, now
		models = append(models, m)
	}
	if err := tx.Create(&models).Error; err != nil {
		return fmt.Errorf("seed report formats: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateReading inserts a new reading.
func (s *GormStore) CreateReading(ctx context.Context, r domain.Reading) error {
	model := readingToModel(r)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("create reading: %w", err)
	}
	return nil
}

// GetReading returns a reading by ID.
func (s *GormStore) GetReading(ctx context.Context, id string) (domain.Reading, error) {
	var model ReadingModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Reading{}, ErrNotFound
		}
		return domain.Reading{}, err
	}
	return readingFromModel(model), nil
}

// MarkPaid flips a reading to paid. The update is conditional on is_paid so a
// repeated confirmation leaves the row untouched.
func (s *GormStore) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (domain.Reading, bool, error) {
	var (
		model   ReadingModel
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReadingModel{}).
			Where("id = ? AND is_paid = ?", id, false).
			Updates(map[string]any{
				"payment_status": string(domain.PaymentCompleted),
				"is_paid":        true,
				"payment_id":     paymentID,
				"updated_at":     at.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		return tx.First(&model, "id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Reading{}, false, ErrNotFound
		}
		return domain.Reading{}, false, fmt.Errorf("mark paid: %w", err)
	}
	return readingFromModel(model), changed, nil
}

// SaveReport writes the generated report columns of a reading.
func (s *GormStore) SaveReport(ctx context.Context, id string, report domain.Report) error {
	var m ReadingModel
	applyReport(&m, report)
	res := s.db.WithContext(ctx).Model(&ReadingModel{}).Where("id = ?", id).Updates(map[string]any{
		"report_title":        m.ReportTitle,
		"report_tier":         m.ReportTier,
		"report_dates":        m.ReportDates,
		"report_inauspicious": m.ReportInauspicious,
		"report_best":         m.ReportBest,
		"planetary_positions": m.PlanetaryPositions,
		"nakshatra_analysis":  m.NakshatraAnalysis,
		"tithi_details":       m.TithiDetails,
		"panchang":            m.Panchang,
		"remedies":            m.Remedies,
		"dos_and_donts":       m.DosAndDonts,
		"lucky_colors":        m.LuckyColors,
		"lucky_numbers":       m.LuckyNumbers,
		"report_defaulted":    m.ReportDefaulted,
		"raw_report":          m.RawReport,
		"report_generated_at": m.ReportGeneratedAt,
		"updated_at":          time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("save report: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHistory pages through the user's history view, newest first.
func (s *GormStore) ListHistory(ctx context.Context, userID string, page, pageSize int) ([]domain.HistoryItem, int, error) {
	page, pageSize = NormalizePage(page, pageSize)
	base := s.db.WithContext(ctx).Table(ViewHistory).Where("user_id = ?", userID)
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}
	var rows []historyRow
	if err := s.db.WithContext(ctx).Table(ViewHistory).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	items := make([]domain.HistoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, historyFromRow(r))
	}
	return items, int(total), nil
}

// ListReportFormats returns active formats, default first.
func (s *GormStore) ListReportFormats(ctx context.Context) ([]domain.ReportFormat, error) {
	var models []ReportFormatModel
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("is_default DESC, name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ReportFormat, 0, len(models))
	for _, m := range models {
		out = append(out, formatFromModel(m))
	}
	return out, nil
}

// GetReportPreference returns the user's preferred format.
func (s *GormStore) GetReportPreference(ctx context.Context, userID string) (domain.ReportPreference, bool, error) {
	var model ReportPreferenceModel
	if err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReportPreference{}, false, nil
		}
		return domain.ReportPreference{}, false, err
	}
	return domain.ReportPreference{UserID: model.UserID, ReportFormatID: model.ReportFormatID, UpdatedAt: model.UpdatedAt}, true, nil
}

// SaveReportPreference upserts the user's preferred format.
func (s *GormStore) SaveReportPreference(ctx context.Context, p domain.ReportPreference) error {
	model := ReportPreferenceModel{UserID: p.UserID, ReportFormatID: p.ReportFormatID, UpdatedAt: p.UpdatedAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"report_format_id", "updated_at"}),
	}).Create(&model).Error
}

// GetProfile returns a profile by user ID.
func (s *GormStore) GetProfile(ctx context.Context, userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// IsAdmin reports whether the user's profile carries the admin role.
func (s *GormStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ProfileModel{}).
		Where("id = ? AND role = ?", userID, string(domain.RoleAdmin)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return count > 0, nil
}

// UpdateRecordsBatch applies all updates in one transaction. Any failure rolls
// back the whole batch. Updated counts rows that matched.
func (s *GormStore) UpdateRecordsBatch(ctx context.Context, table string, updates []domain.RecordUpdate) (domain.BatchResult, error) {
	if err := ValidateBatch(table, updates); err != nil {
		return domain.BatchResult{}, err
	}
	key := batchKey(table)
	result := domain.BatchResult{Table: table}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			fields := make(map[string]any, len(u.Fields)+1)
			for k, v := range u.Fields {
				fields[k] = v
			}
			fields["updated_at"] = time.Now().UTC()
			res := tx.Table(table).Where(key+" = ?", u.ID).Updates(fields)
			if res.Error != nil {
				return fmt.Errorf("update %s %s: %w", table, u.ID, res.Error)
			}
			result.Updated += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return domain.BatchResult{}, err
	}
	return result, nil
}
