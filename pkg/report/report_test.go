package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"muhuratai/pkg/domain"
)

func TestBuildPromptSubstitutesPlaceholders(t *testing.T) {
	prompt := BuildPrompt(domain.Reading{EventName: "Test Wedding", EventType: "marriage"}, domain.TierBasic)

	for _, want := range []string{
		"Event Name: Test Wedding",
		"Event Type: marriage",
		"Location: Not specified",
		"Preferred Date: Flexible",
		"Preferred Time: Flexible",
		"Additional Notes: Not specified",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	for _, h := range Headings(domain.TierBasic) {
		if !strings.Contains(prompt, h) {
			t.Fatalf("prompt missing heading %q", h)
		}
	}
	if strings.Contains(prompt, HeadingAlternatives) || strings.Contains(prompt, HeadingYogas) {
		t.Fatalf("basic prompt must not request premium sections")
	}
}

func TestBuildPromptPremiumAddsSections(t *testing.T) {
	r := domain.Reading{
		EventName:          "Griha Pravesh",
		EventType:          "housewarming",
		EventLocation:      "Pune",
		PreferredDate:      "2025-04-10",
		PreferredTimeStart: "09:00 AM",
		PreferredTimeEnd:   "11:00 AM",
	}
	prompt := BuildPrompt(r, domain.TierPremium)
	for _, want := range []string{
		"Location: Pune",
		"Preferred Date: 2025-04-10",
		"Preferred Time: 09:00 AM - 11:00 AM",
		"## 11. " + HeadingAlternatives,
		"## 12. " + HeadingYogas,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if BuildPrompt(r, domain.TierPremium) != prompt {
		t.Fatalf("prompt must be deterministic")
	}
}

func TestTierFor(t *testing.T) {
	th := DefaultThresholds()
	cases := map[float64]domain.Tier{
		0:    domain.TierBasic,
		998:  domain.TierBasic,
		999:  domain.TierStandard,
		1998: domain.TierStandard,
		1999: domain.TierPremium,
		5000: domain.TierPremium,
	}
	for amount, want := range cases {
		if got := TierFor(amount, th); got != want {
			t.Fatalf("TierFor(%v) = %s, want %s", amount, got, want)
		}
	}
	if DefaultBudgets().For(domain.TierPremium) <= DefaultBudgets().For(domain.TierBasic) {
		t.Fatalf("premium budget must exceed basic budget")
	}
}

func TestExtractSectionsToleratesMarkersAndOrder(t *testing.T) {
	text := "Intro line\n" +
		"**2. Inauspicious Periods to Avoid**\nRahu Kaal 10:30 AM - 12:00 PM\n" +
		"### 1) RECOMMENDED AUSPICIOUS DATES\n2025-03-15 good day\n" +
		"## 7. REMEDIES\n- Chant mantras\n"
	got := ExtractSections(text, Headings(domain.TierBasic))

	want := map[string]string{
		HeadingInauspicious: "Rahu Kaal 10:30 AM - 12:00 PM",
		HeadingDates:        "2025-03-15 good day",
		HeadingRemedies:     "- Chant mantras",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractSectionsIgnoresProseMentioningHeadings(t *testing.T) {
	text := "## 4. PLANETARY POSITIONS\n" +
		"Remedies listed below suit this alignment.\n" +
		"## 7. REMEDIES\n" +
		"- Light a lamp\n" +
		"Lucky elements for you follow.\n" +
		"**9. Lucky Elements:**\n" +
		"Colors: Red\n" +
		"Numbers: 21, 3\n"
	got := ExtractSections(text, Headings(domain.TierStandard))

	want := map[string]string{
		HeadingPlanetary: "Remedies listed below suit this alignment.",
		HeadingRemedies:  "- Light a lamp\nLucky elements for you follow.",
		HeadingLucky:     "Colors: Red\nNumbers: 21, 3",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sections mismatch (-want +got):\n%s", diff)
	}

	rep := Parse(text, domain.Reading{EventName: "Griha Pravesh"}, domain.TierStandard, time.Now())
	if diff := cmp.Diff([]int{21, 3}, rep.LuckyNumbers); diff != "" {
		t.Fatalf("numbers mismatch:\n%s", diff)
	}
}

func TestParseDatesSynthesizesPlaceholders(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	dates, defaulted := ParseDates("No concrete dates could be given.", now)
	if !defaulted {
		t.Fatalf("expected defaulted dates")
	}
	if len(dates) != SyntheticDates {
		t.Fatalf("expected %d dates, got %d", SyntheticDates, len(dates))
	}
	for i, d := range dates {
		want := now.AddDate(0, 0, 3+7*i).Format("2006-01-02")
		if d.Rank != i+1 || d.Date != want {
			t.Fatalf("entry %d = rank %d date %s, want rank %d date %s", i, d.Rank, d.Date, i+1, want)
		}
		if d.Time != DefaultTimeWindow || d.Nakshatra != DefaultNakshatra || d.Tithi != DefaultTithi {
			t.Fatalf("entry %d missing placeholder values: %+v", i, d)
		}
	}
}

func TestParseDatesReadsLines(t *testing.T) {
	section := "1. 2025-03-15 (Saturday) 07:00 AM - 09:00 AM, Rohini Nakshatra, Panchami - strong Jupiter\n" +
		"2. 20/3/2025 Thursday, Hasta\n" +
		"3. 2025-03-22 (06:30 AM - 08:00 AM) , , Swati\n" +
		"General advice without a date"
	dates, defaulted := ParseDates(section, time.Now())
	if defaulted {
		t.Fatalf("did not expect defaults")
	}
	want := []domain.MuhuratDate{
		{Rank: 1, Date: "2025-03-15", Time: "07:00 AM - 09:00 AM", Weekday: "Saturday", Nakshatra: "Rohini", Tithi: "Panchami",
			Reason: "(Saturday), Rohini Nakshatra, Panchami - strong Jupiter"},
		{Rank: 2, Date: "20/3/2025", Time: DefaultTimeWindow, Weekday: "Thursday", Nakshatra: "Hasta", Tithi: DefaultTithi,
			Reason: "Thursday, Hasta"},
		{Rank: 3, Date: "2025-03-22", Time: "06:30 AM - 08:00 AM", Weekday: DefaultWeekday, Nakshatra: "Swati", Tithi: DefaultTithi,
			Reason: "Swati"},
	}
	if diff := cmp.Diff(want, dates); diff != "" {
		t.Fatalf("dates mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInauspiciousRahuKaal(t *testing.T) {
	got := ParseInauspicious("Avoid Rahu Kaal: 10:30 am - 12:00 pm on Saturday.")
	if len(got) != 1 {
		t.Fatalf("expected one entry, got %+v", got)
	}
	if got[0].Type != RahuKaal || got[0].StartTime != "10:30 AM" || got[0].EndTime != "12:00 PM" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
	if got[0].Description != inauspiciousDescriptions[RahuKaal] {
		t.Fatalf("unexpected description: %q", got[0].Description)
	}

	if got := ParseInauspicious("Gulika Kaal 6:00 AM to 7:30 AM"); len(got) != 1 || got[0].Type != GulikaKaal {
		t.Fatalf("expected only a gulika entry, got %+v", got)
	}
	if got := ParseInauspicious("Mornings 10:30 AM - 12:00 PM are busy"); len(got) != 0 {
		t.Fatalf("unlabelled ranges must not produce entries, got %+v", got)
	}
}

func TestParseList(t *testing.T) {
	bullets := "- Light a ghee lamp\n* Donate yellow cloth\n• Chant **Om Namah Shivaya**\n3. Feed cows"
	if diff := cmp.Diff([]string{"Light a ghee lamp", "Donate yellow cloth", "Chant Om Namah Shivaya", "Feed cows"}, ParseList(bullets, MaxListItems)); diff != "" {
		t.Fatalf("bullet list mismatch:\n%s", diff)
	}

	prose := "Wear white. Offer water to the Sun at dawn! Keep a fast on Monday?"
	if diff := cmp.Diff([]string{"Offer water to the Sun at dawn", "Keep a fast on Monday"}, ParseList(prose, MaxListItems)); diff != "" {
		t.Fatalf("sentence fallback mismatch:\n%s", diff)
	}

	var many strings.Builder
	for i := 0; i < 20; i++ {
		many.WriteString("- item\n")
	}
	if got := ParseList(many.String(), MaxListItems); len(got) != MaxListItems {
		t.Fatalf("expected cap %d, got %d", MaxListItems, len(got))
	}
}

func TestParseLuckyNumbers(t *testing.T) {
	got, defaulted := ParseLuckyNumbers("Numbers: 9, 0, 27, 9, 109, 108, 1, 2, 3, 4, 5, 6")
	if defaulted {
		t.Fatalf("did not expect defaults")
	}
	if diff := cmp.Diff([]int{9, 27, 108, 1, 2, 3, 4}, got); diff != "" {
		t.Fatalf("numbers mismatch:\n%s", diff)
	}

	got, defaulted = ParseLuckyNumbers("no digits here, only 0 and 500")
	if !defaulted {
		t.Fatalf("expected default numbers")
	}
	if diff := cmp.Diff(DefaultLuckyNumbers, got); diff != "" {
		t.Fatalf("default mismatch:\n%s", diff)
	}
}

func TestParseLuckyColors(t *testing.T) {
	got, _ := ParseLuckyColors("Wear RED, yellow, green, white, orange and blue")
	if diff := cmp.Diff([]string{"Red", "Yellow", "Green", "White", "Orange"}, got); diff != "" {
		t.Fatalf("colors mismatch:\n%s", diff)
	}
	got, defaulted := ParseLuckyColors("")
	if !defaulted || len(got) != 3 {
		t.Fatalf("expected three default colors, got %v", got)
	}
}

func TestParseBestRecommendation(t *testing.T) {
	raw := "## 3. BEST RECOMMENDED MUHURAT\n03-15-2025\n07:00 AM - 09:00 AM"
	rep := Parse(raw, domain.Reading{EventName: "Test Wedding", EventType: "marriage"}, domain.TierBasic, time.Now())

	if rep.Best.Date != "03-15-2025" || rep.Best.StartTime != "07:00 AM" || rep.Best.EndTime != "09:00 AM" {
		t.Fatalf("unexpected best muhurat: %+v", rep.Best)
	}
	if rep.RawText != raw {
		t.Fatalf("raw text must be kept verbatim")
	}
	if rep.Title != "Shubh Muhurat Report: Test Wedding (marriage)" {
		t.Fatalf("unexpected title %q", rep.Title)
	}
	if len(rep.Dates) != SyntheticDates {
		t.Fatalf("expected synthetic dates, got %d", len(rep.Dates))
	}
	if len(rep.LuckyNumbers) == 0 || len(rep.LuckyColors) == 0 {
		t.Fatalf("lucky elements must always be populated")
	}
	for _, field := range []string{"dates", "luckyNumbers", "luckyColors", "best.yogas"} {
		if !contains(rep.Defaulted, field) {
			t.Fatalf("expected %q in defaulted fields %v", field, rep.Defaulted)
		}
	}
	if contains(rep.Defaulted, "best.date") || contains(rep.Defaulted, "best.time") {
		t.Fatalf("best date/time were present, got defaulted %v", rep.Defaulted)
	}
}

func TestParseFullReport(t *testing.T) {
	raw := `## 1. RECOMMENDED AUSPICIOUS DATES
1. 2025-05-02 Friday 08:15 AM - 10:00 AM Rohini, Tritiya - Venus strong

## 2. INAUSPICIOUS PERIODS TO AVOID
Rahu Kaal: 10:30 AM - 12:00 PM
Yamaghanta: 3:00 PM - 4:30 PM

## 3. BEST RECOMMENDED MUHURAT
2025-05-02, 08:15 AM - 10:00 AM
Rohini Nakshatra with Amrit Siddhi Yoga makes this ideal.
- Lasting harmony

## 4. PLANETARY POSITIONS
Jupiter in Taurus.

## 7. REMEDIES
- Offer flowers to Lord Ganesha

## 9. LUCKY ELEMENTS
Colors: Gold and Silver. Numbers: 6, 15, 6.`
	rep := Parse(raw, domain.Reading{EventName: "Engagement"}, domain.TierStandard, time.Now())

	if len(rep.Dates) != 1 || rep.Dates[0].Nakshatra != "Rohini" || rep.Dates[0].Tithi != "Tritiya" {
		t.Fatalf("unexpected dates: %+v", rep.Dates)
	}
	if len(rep.Inauspicious) != 2 || rep.Inauspicious[0].Type != RahuKaal || rep.Inauspicious[1].Type != Yamaghanta {
		t.Fatalf("unexpected inauspicious periods: %+v", rep.Inauspicious)
	}
	if diff := cmp.Diff([]string{"Amrit Siddhi Yoga"}, rep.Best.Yogas); diff != "" {
		t.Fatalf("yogas mismatch:\n%s", diff)
	}
	if rep.Best.Reasoning != "Rohini Nakshatra with Amrit Siddhi Yoga makes this ideal." {
		t.Fatalf("unexpected reasoning %q", rep.Best.Reasoning)
	}
	if rep.PlanetaryPositions != "Jupiter in Taurus." {
		t.Fatalf("unexpected planetary text %q", rep.PlanetaryPositions)
	}
	if diff := cmp.Diff([]string{"Gold", "Silver"}, rep.LuckyColors); diff != "" {
		t.Fatalf("colors mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]int{6, 15}, rep.LuckyNumbers); diff != "" {
		t.Fatalf("numbers mismatch:\n%s", diff)
	}
	if len(rep.Defaulted) != 0 {
		t.Fatalf("expected no defaults, got %v", rep.Defaulted)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
