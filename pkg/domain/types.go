package domain

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Tier is the report depth bought by the payment amount.
type Tier string

const (
	TierBasic    Tier = "basic"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// Reading is a muhurat reading request. The generated report lives on the same record.
type Reading struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"userId"`
	EventName          string        `json:"eventName"`
	EventType          string        `json:"eventType"`
	EventLocation      string        `json:"eventLocation,omitempty"`
	PreferredDate      string        `json:"preferredDate,omitempty"`
	PreferredTimeStart string        `json:"preferredTimeStart,omitempty"`
	PreferredTimeEnd   string        `json:"preferredTimeEnd,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	Amount             float64       `json:"amount"`
	Currency           string        `json:"currency"`
	PaymentStatus      PaymentStatus `json:"paymentStatus"`
	IsPaid             bool          `json:"isPaid"`
	PaymentID          string        `json:"paymentId,omitempty"`
	ReportFormatID     string        `json:"reportFormatId,omitempty"`
	Report             *Report       `json:"report,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Report is the structured form of a generated muhurat report. Any list may be
// empty; RawText is the only field guaranteed to be non-empty.
type Report struct {
	Title              string               `json:"title"`
	Tier               Tier                 `json:"tier"`
	Dates              []MuhuratDate        `json:"dates"`
	Inauspicious       []InauspiciousPeriod `json:"inauspicious"`
	Best               BestMuhurat          `json:"best"`
	PlanetaryPositions string               `json:"planetaryPositions"`
	NakshatraAnalysis  string               `json:"nakshatraAnalysis"`
	TithiDetails       string               `json:"tithiDetails"`
	Panchang           string               `json:"panchang"`
	Remedies           []string             `json:"remedies"`
	DosAndDonts        []string             `json:"dosAndDonts"`
	LuckyColors        []string             `json:"luckyColors"`
	LuckyNumbers       []int                `json:"luckyNumbers"`
	RawText            string               `json:"rawText"`
	Defaulted          []string             `json:"defaulted,omitempty"`
	GeneratedAt        time.Time            `json:"generatedAt"`
}

type MuhuratDate struct {
	Rank      int    `json:"rank"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Weekday   string `json:"weekday"`
	Nakshatra string `json:"nakshatra"`
	Tithi     string `json:"tithi"`
	Reason    string `json:"reason"`
}

type InauspiciousPeriod struct {
	Type        string `json:"type"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
}

type BestMuhurat struct {
	Date      string   `json:"date"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Reasoning string   `json:"reasoning"`
	Yogas     []string `json:"yogas"`
	Benefits  []string `json:"benefits"`
}

// HistoryItem is one row of the per-user reading history view.
type HistoryItem struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	EventName     string        `json:"eventName"`
	EventType     string        `json:"eventType"`
	EventLocation string        `json:"eventLocation,omitempty"`
	PreferredDate string        `json:"preferredDate,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	IsPaid        bool          `json:"isPaid"`
	ReportTitle   string        `json:"reportTitle,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type ReportFormat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Skin        string `json:"skin"`
	IsDefault   bool   `json:"isDefault"`
	Active      bool   `json:"active"`
}

type ReportPreference struct {
	UserID         string    `json:"userId"`
	ReportFormatID string    `json:"reportFormatId"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordUpdate is one element of an administrative batch update.
type RecordUpdate struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type BatchResult struct {
	Table   string `json:"table"`
	Updated int    `json:"updated"`
}

// Page describes a slice of a paginated listing.
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}
