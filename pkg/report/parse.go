package report

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"muhuratai/pkg/domain"
)

const timePart = `(\d{1,2}:\d{2}\s*[AaPp][Mm])`

var (
	dateRe       = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{4})\b`)
	timeWindowRe = regexp.MustCompile(timePart + `\s*(?:-|–|—|to)\s*` + timePart)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*•]|\d{1,2}[.)])\s+(.+)$`)
	sentenceRe   = regexp.MustCompile(`[.!?]+`)
	numberRe     = regexp.MustCompile(`\b\d+\b`)
	spaceRe      = regexp.MustCompile(`\s+`)
	emptyParenRe = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	commaRunRe   = regexp.MustCompile(`\s*,(?:\s*,)*`)

	inauspiciousRes = []struct {
		name string
		re   *regexp.Regexp
	}{
		{RahuKaal, regexp.MustCompile(`(?i)rahu\s*kaa?l(?:am)?[^0-9\n]*` + timePart + `\s*(?:-|–|—|to)\s*` + timePart)},
		{GulikaKaal, regexp.MustCompile(`(?i)gulika?\s*kaa?l(?:am)?[^0-9\n]*` + timePart + `\s*(?:-|–|—|to)\s*` + timePart)},
		{Yamaghanta, regexp.MustCompile(`(?i)yama\s*(?:g?hanta|ganda(?:m)?)[^0-9\n]*` + timePart + `\s*(?:-|–|—|to)\s*` + timePart)},
	}
)

// ParseTimeWindow returns the first "H:MM AM - H:MM PM" range in text.
func ParseTimeWindow(text string) (start, end string, defaulted bool) {
	m := timeWindowRe.FindStringSubmatch(text)
	if m == nil {
		s, e, _ := strings.Cut(DefaultTimeWindow, " - ")
		return s, e, true
	}
	return normalizeClock(m[1]), normalizeClock(m[2]), false
}

func normalizeClock(v string) string {
	v = strings.ToUpper(spaceRe.ReplaceAllString(strings.TrimSpace(v), ""))
	if len(v) > 2 {
		v = v[:len(v)-2] + " " + v[len(v)-2:]
	}
	return v
}

// FindNamed returns the first vocabulary entry contained in text, or fallback.
// Vocabulary order decides ties, not position in text.
func FindNamed(text string, vocabulary []string, fallback string) (string, bool) {
	for _, name := range vocabulary {
		if strings.Contains(text, name) {
			return name, false
		}
	}
	return fallback, true
}

// ParseDates extracts ranked date entries from the dates section. Without any
// date it synthesizes SyntheticDates weekly placeholders starting three days after now.
func ParseDates(section string, now time.Time) ([]domain.MuhuratDate, bool) {
	var out []domain.MuhuratDate
	for _, line := range strings.Split(section, "\n") {
		date := dateRe.FindString(line)
		if date == "" {
			continue
		}
		start, end, _ := ParseTimeWindow(line)
		weekday, _ := FindNamed(line, Weekdays, DefaultWeekday)
		nakshatra, _ := FindNamed(line, Nakshatras, DefaultNakshatra)
		tithi, _ := FindNamed(line, Tithis, DefaultTithi)
		out = append(out, domain.MuhuratDate{
			Rank:      len(out) + 1,
			Date:      date,
			Time:      start + " - " + end,
			Weekday:   weekday,
			Nakshatra: nakshatra,
			Tithi:     tithi,
			Reason:    reasonFromLine(line, date),
		})
	}
	if len(out) > 0 {
		return out, false
	}
	return syntheticDates(now), true
}

func syntheticDates(now time.Time) []domain.MuhuratDate {
	out := make([]domain.MuhuratDate, 0, SyntheticDates)
	for i := 0; i < SyntheticDates; i++ {
		d := now.AddDate(0, 0, 3+7*i)
		out = append(out, domain.MuhuratDate{
			Rank:      i + 1,
			Date:      d.Format("2006-01-02"),
			Time:      DefaultTimeWindow,
			Weekday:   d.Weekday().String(),
			Nakshatra: DefaultNakshatra,
			Tithi:     DefaultTithi,
			Reason:    DefaultDateReason,
		})
	}
	return out
}

func reasonFromLine(line, date string) string {
	reason := strings.Replace(line, date, "", 1)
	reason = timeWindowRe.ReplaceAllString(reason, "")
	if m := bulletRe.FindStringSubmatch(reason); m != nil {
		reason = m[1]
	}
	reason = emptyParenRe.ReplaceAllString(reason, "")
	reason = commaRunRe.ReplaceAllString(reason, ",")
	reason = cleanInline(reason)
	reason = strings.Trim(reason, " -–—:|,;")
	if reason == "" {
		return DefaultDateReason
	}
	return reason
}

func cleanInline(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// ParseInauspicious emits one entry per named period whose pattern matches.
func ParseInauspicious(text string) []domain.InauspiciousPeriod {
	out := make([]domain.InauspiciousPeriod, 0, len(inauspiciousRes))
	for _, p := range inauspiciousRes {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		out = append(out, domain.InauspiciousPeriod{
			Type:        p.name,
			StartTime:   normalizeClock(m[1]),
			EndTime:     normalizeClock(m[2]),
			Description: inauspiciousDescriptions[p.name],
		})
	}
	return out
}

// ParseList prefers bullet lines and falls back to sentences longer than ten
// characters. The result holds at most max items.
func ParseList(text string, max int) []string {
	items := make([]string, 0, max)
	for _, line := range strings.Split(text, "\n") {
		m := bulletRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if item := cleanInline(m[1]); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		for _, sentence := range sentenceRe.Split(text, -1) {
			sentence = cleanInline(sentence)
			if utf8.RuneCountInString(sentence) > 10 {
				items = append(items, sentence)
			}
		}
	}
	if len(items) > max {
		items = items[:max]
	}
	return items
}

// ParseLuckyColors matches the color vocabulary case-insensitively.
func ParseLuckyColors(text string) ([]string, bool) {
	lower := strings.ToLower(text)
	out := make([]string, 0, MaxLuckyColors)
	for _, c := range LuckyColorVocabulary {
		if len(out) == MaxLuckyColors {
			break
		}
		if strings.Contains(lower, strings.ToLower(c)) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultLuckyColors...), true
	}
	return out, false
}

// ParseLuckyNumbers returns distinct integers in [1,108] in first-seen order.
func ParseLuckyNumbers(text string) ([]int, bool) {
	seen := make(map[int]bool)
	out := make([]int, 0, MaxLuckyNumbers)
	for _, raw := range numberRe.FindAllString(text, -1) {
		if len(out) == MaxLuckyNumbers {
			break
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 108 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return append([]int(nil), DefaultLuckyNumbers...), true
	}
	return out, false
}

// ParseBest reads the highlighted recommendation. fallbackDate is used when the
// section names no date.
func ParseBest(section, yogaText, fallbackDate string) (domain.BestMuhurat, []string) {
	var defaulted []string
	best := domain.BestMuhurat{}

	best.Date = dateRe.FindString(section)
	if best.Date == "" {
		best.Date = fallbackDate
		defaulted = append(defaulted, "best.date")
	}
	var timeDefaulted bool
	best.StartTime, best.EndTime, timeDefaulted = ParseTimeWindow(section)
	if timeDefaulted {
		defaulted = append(defaulted, "best.time")
	}

	best.Reasoning = reasoningFrom(section)
	if best.Reasoning == "" {
		best.Reasoning = DefaultReasoning
		defaulted = append(defaulted, "best.reasoning")
	}

	lower := strings.ToLower(section + "\n" + yogaText)
	for _, y := range Yogas {
		if strings.Contains(lower, strings.ToLower(y)) {
			best.Yogas = append(best.Yogas, y)
		}
	}
	if len(best.Yogas) == 0 {
		best.Yogas = []string{DefaultYoga}
		defaulted = append(defaulted, "best.yogas")
	}
	best.Benefits = ParseList(section, MaxBenefits)
	return best, defaulted
}

func reasoningFrom(section string) string {
	parts := make([]string, 0, 4)
	for _, line := range strings.Split(section, "\n") {
		if bulletRe.MatchString(line) {
			continue
		}
		line = dateRe.ReplaceAllString(line, "")
		line = timeWindowRe.ReplaceAllString(line, "")
		line = strings.Trim(cleanInline(line), " -–—:|,;")
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
