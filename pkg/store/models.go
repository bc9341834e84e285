package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"muhuratai/pkg/domain"
)

// GORM models used for persistence. Report fields are columns on the reading row.
type ReadingModel struct {
	ID                 string `gorm:"primaryKey"`
	UserID             string `gorm:"not null;index"`
	EventName          string `gorm:"not null"`
	EventType          string `gorm:"not null"`
	EventLocation      string
	PreferredDate      string
	PreferredTimeStart string
	PreferredTimeEnd   string
	Notes              string  `gorm:"type:text"`
	Amount             float64 `gorm:"not null"`
	Currency           string  `gorm:"not null"`
	PaymentStatus      string  `gorm:"not null;index"`
	IsPaid             bool    `gorm:"not null"`
	PaymentID          string
	ReportFormatID     string

	ReportTitle        string
	ReportTier         string
	ReportDates        datatypes.JSON `gorm:"type:jsonb"`
	ReportInauspicious datatypes.JSON `gorm:"type:jsonb"`
	ReportBest         datatypes.JSON `gorm:"type:jsonb"`
	PlanetaryPositions string         `gorm:"type:text"`
	NakshatraAnalysis  string         `gorm:"type:text"`
	TithiDetails       string         `gorm:"type:text"`
	Panchang           string         `gorm:"type:text"`
	Remedies           datatypes.JSON `gorm:"type:jsonb"`
	DosAndDonts        datatypes.JSON `gorm:"type:jsonb"`
	LuckyColors        datatypes.JSON `gorm:"type:jsonb"`
	LuckyNumbers       datatypes.JSON `gorm:"type:jsonb"`
	ReportDefaulted    datatypes.JSON `gorm:"type:jsonb"`
	RawReport          string         `gorm:"type:text"`
	ReportGeneratedAt  *time.Time

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ReadingModel) TableName() string { return TableReadings }

type ReportFormatModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string
	Skin        string `gorm:"not null"`
	IsDefault   bool   `gorm:"not null"`
	Active      bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ReportFormatModel) TableName() string { return TableFormats }

type ReportPreferenceModel struct {
	UserID         string    `gorm:"primaryKey"`
	ReportFormatID string    `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (ReportPreferenceModel) TableName() string { return TablePreferences }

type ProfileModel struct {
	ID        string    `gorm:"primaryKey"`
	Email     string    `gorm:"index"`
	Role      string    `gorm:"not null;default:user"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (ProfileModel) TableName() string { return TableProfiles }

// historyRow mirrors the v_user_muhurat_history view.
type historyRow struct {
	ID            string
	UserID        string
	EventName     string
	EventType     string
	EventLocation string
	PreferredDate string
	PaymentStatus string
	IsPaid        bool
	ReportTitle   string
	CreatedAt     time.Time
}

func readingToModel(r domain.Reading) ReadingModel {
	m := ReadingModel{
		ID:                 r.ID,
		UserID:             r.UserID,
		EventName:          r.EventName,
		EventType:          r.EventType,
		EventLocation:      r.EventLocation,
		PreferredDate:      r.PreferredDate,
		PreferredTimeStart: r.PreferredTimeStart,
		PreferredTimeEnd:   r.PreferredTimeEnd,
		Notes:              r.Notes,
		Amount:             r.Amount,
		Currency:           r.Currency,
		PaymentStatus:      string(r.PaymentStatus),
		IsPaid:             r.IsPaid,
		PaymentID:          r.PaymentID,
		ReportFormatID:     r.ReportFormatID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.Report != nil {
		applyReport(&m, *r.Report)
	}
	return m
}

func applyReport(m *ReadingModel, rep domain.Report) {
	generated := rep.GeneratedAt
	m.ReportTitle = rep.Title
	m.ReportTier = string(rep.Tier)
	m.ReportDates = jsonColumn(rep.Dates)
	m.ReportInauspicious = jsonColumn(rep.Inauspicious)
	m.ReportBest = jsonColumn(rep.Best)
	m.PlanetaryPositions = rep.PlanetaryPositions
	m.NakshatraAnalysis = rep.NakshatraAnalysis
	m.TithiDetails = rep.TithiDetails
	m.Panchang = rep.Panchang
	m.Remedies = jsonColumn(rep.Remedies)
	m.DosAndDonts = jsonColumn(rep.DosAndDonts)
	m.LuckyColors = jsonColumn(rep.LuckyColors)
	m.LuckyNumbers = jsonColumn(rep.LuckyNumbers)
	m.ReportDefaulted = jsonColumn(rep.Defaulted)
	m.RawReport = rep.RawText
	m.ReportGeneratedAt = &generated
}

func readingFromModel(m ReadingModel) domain.Reading {
	r := domain.Reading{
		ID:                 m.ID,
		UserID:             m.UserID,
		EventName:          m.EventName,
		EventType:          m.EventType,
		EventLocation:      m.EventLocation,
		PreferredDate:      m.PreferredDate,
		PreferredTimeStart: m.PreferredTimeStart,
		PreferredTimeEnd:   m.PreferredTimeEnd,
		Notes:              m.Notes,
		Amount:             m.Amount,
		Currency:           m.Currency,
		PaymentStatus:      domain.PaymentStatus(m.PaymentStatus),
		IsPaid:             m.IsPaid,
		PaymentID:          m.PaymentID,
		ReportFormatID:     m.ReportFormatID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.RawReport == "" {
		return r
	}
	rep := domain.Report{
		Title:              m.ReportTitle,
		Tier:               domain.Tier(m.ReportTier),
		PlanetaryPositions: m.PlanetaryPositions,
		NakshatraAnalysis:  m.NakshatraAnalysis,
		TithiDetails:       m.TithiDetails,
		Panchang:           m.Panchang,
		RawText:            m.RawReport,
	}
	// Malformed list columns decode to empty lists; the raw text stays authoritative.
	_ = decodeJSON(m.ReportDates, &rep.Dates)
	_ = decodeJSON(m.ReportInauspicious, &rep.Inauspicious)
	_ = decodeJSON(m.ReportBest, &rep.Best)
	_ = decodeJSON(m.Remedies, &rep.Remedies)
	_ = decodeJSON(m.DosAndDonts, &rep.DosAndDonts)
	_ = decodeJSON(m.LuckyColors, &rep.LuckyColors)
	_ = decodeJSON(m.LuckyNumbers, &rep.LuckyNumbers)
	_ = decodeJSON(m.ReportDefaulted, &rep.Defaulted)
	if m.ReportGeneratedAt != nil {
		rep.GeneratedAt = *m.ReportGeneratedAt
	}
	r.Report = &rep
	return r
}

func jsonColumn(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

func decodeJSON(raw datatypes.JSON, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func historyFromRow(h historyRow) domain.HistoryItem {
	return domain.HistoryItem{
		ID:            h.ID,
		UserID:        h.UserID,
		EventName:     h.EventName,
		EventType:     h.EventType,
		EventLocation: h.EventLocation,
		PreferredDate: h.PreferredDate,
		PaymentStatus: domain.PaymentStatus(h.PaymentStatus),
		IsPaid:        h.IsPaid,
		ReportTitle:   h.ReportTitle,
		CreatedAt:     h.CreatedAt,
	}
}

func formatFromModel(m ReportFormatModel) domain.ReportFormat {
	return domain.ReportFormat{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Skin:        m.Skin,
		IsDefault:   m.IsDefault,
		Active:      m.Active,
	}
}

func formatToModel(f domain.ReportFormat) ReportFormatModel {
	return ReportFormatModel{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Skin:        f.Skin,
		IsDefault:   f.IsDefault,
		Active:      f.Active,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	return domain.Profile{
		ID:        m.ID,
		Email:     m.Email,
		Role:      domain.UserRole(m.Role),
		CreatedAt: m.CreatedAt,
	}
}

// DefaultReportFormats are inserted when the formats table is empty.
func DefaultReportFormats() []domain.ReportFormat {
	return []domain.ReportFormat{
		{ID: "classic", Name: "Classic", Description: "Traditional layout with saffron accents", Skin: "classic", IsDefault: true, Active: true},
		{ID: "minimal", Name: "Minimal", Description: "Clean single-column layout", Skin: "minimal", Active: true},
		{ID: "royal", Name: "Royal", Description: "Ornate layout for premium reports", Skin: "royal", Active: true},
	}
}
