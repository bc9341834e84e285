package report

// Nakshatras lists the 27 lunar mansions in traditional order.
var Nakshatras = []string{
	"Ashwini", "Bharani", "Krittika", "Rohini", "Mrigashira", "Ardra", "Punarvasu",
	"Pushya", "Ashlesha", "Magha", "Purva Phalguni", "Uttara Phalguni", "Hasta",
	"Chitra", "Swati", "Vishakha", "Anuradha", "Jyeshtha", "Mula", "Purva Ashadha",
	"Uttara Ashadha", "Shravana", "Dhanishta", "Shatabhisha", "Purva Bhadrapada",
	"Uttara Bhadrapada", "Revati",
}

// Tithis lists the 16 lunar-day names.
var Tithis = []string{
	"Pratipada", "Dwitiya", "Tritiya", "Chaturthi", "Panchami", "Shashthi", "Saptami",
	"Ashtami", "Navami", "Dashami", "Ekadashi", "Dwadashi", "Trayodashi",
	"Chaturdashi", "Purnima", "Amavasya",
}

var Weekdays = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

var LuckyColorVocabulary = []string{
	"Red", "Yellow", "Green", "White", "Orange", "Blue", "Pink", "Gold", "Silver", "Purple",
}

var Yogas = []string{
	"Amrit Siddhi Yoga", "Sarvartha Siddhi Yoga", "Ravi Pushya Yoga", "Guru Pushya Yoga",
	"Ravi Yoga", "Siddha Yoga", "Dwipushkar Yoga", "Tripushkar Yoga",
}

// Fallback values used when nothing can be extracted.
const (
	DefaultTimeWindow = "06:00 AM - 08:00 AM"
	DefaultNakshatra  = "Pushya"
	DefaultTithi      = "Shukla Paksha"
	DefaultWeekday    = "To be determined"
	DefaultDateReason = "Favorable planetary alignment for the event"
	DefaultReasoning  = "Chosen for the favorable combination of Tithi, Nakshatra and planetary positions."
	DefaultYoga       = "Sarvartha Siddhi Yoga"
)

var (
	DefaultLuckyColors  = []string{"Yellow", "White", "Orange"}
	DefaultLuckyNumbers = []int{3, 5, 7, 9, 11}
)

const (
	MaxListItems    = 10
	MaxBenefits     = 5
	MaxLuckyColors  = 5
	MaxLuckyNumbers = 7
	SyntheticDates  = 5
)

// Inauspicious period names.
const (
	RahuKaal   = "Rahu Kaal"
	GulikaKaal = "Gulika Kaal"
	Yamaghanta = "Yamaghanta"
)

var inauspiciousDescriptions = map[string]string{
	RahuKaal:   "Period ruled by Rahu. Avoid starting new ventures or ceremonies.",
	GulikaKaal: "Period ruled by Gulika, son of Saturn. Avoid auspicious beginnings.",
	Yamaghanta: "Period ruled by Yama. Unfavorable for travel and new undertakings.",
}
