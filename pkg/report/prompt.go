package report

import (
	"fmt"
	"strings"

	"muhuratai/pkg/domain"
)

// Section headings expected in generated reports, in the order they are requested.
const (
	HeadingDates        = "RECOMMENDED AUSPICIOUS DATES"
	HeadingInauspicious = "INAUSPICIOUS PERIODS TO AVOID"
	HeadingBest         = "BEST RECOMMENDED MUHURAT"
	HeadingPlanetary    = "PLANETARY POSITIONS"
	HeadingNakshatra    = "NAKSHATRA ANALYSIS"
	HeadingTithi        = "TITHI DETAILS"
	HeadingRemedies     = "REMEDIES"
	HeadingDosDonts     = "DO'S AND DON'TS"
	HeadingLucky        = "LUCKY ELEMENTS"
	HeadingPanchang     = "DETAILED PANCHANG"
	HeadingAlternatives = "ALTERNATIVE MUHURATS"
	HeadingYogas        = "SPECIAL YOGAS AND COMBINATIONS"
)

const (
	placeholderNotSpecified = "Not specified"
	placeholderFlexible     = "Flexible"
)

// SystemPrompt frames the model as a Vedic astrologer.
const SystemPrompt = "You are an expert Vedic astrologer specialising in Muhurat (electional astrology). " +
	"Answer in clear English using the exact section headings requested."

type sectionSpec struct {
	heading     string
	instruction string
}

var baseSections = []sectionSpec{
	{HeadingDates, "List 5 auspicious dates in YYYY-MM-DD format, one per line, each with a time window (e.g. 07:00 AM - 09:00 AM), weekday, Nakshatra, Tithi and a short reason."},
	{HeadingInauspicious, "Give the Rahu Kaal, Gulika Kaal and Yamaghanta time ranges to avoid on the recommended days."},
	{HeadingBest, "Name the single best date and time window, explain why, and list the auspicious yogas and expected benefits."},
	{HeadingPlanetary, "Describe the relevant planetary positions and their influence on this event."},
	{HeadingNakshatra, "Analyse the Nakshatras of the recommended dates."},
	{HeadingTithi, "Describe the Tithi of each recommended date and its significance."},
	{HeadingRemedies, "List remedies as bullet points."},
	{HeadingDosDonts, "List things to do and to avoid as bullet points."},
	{HeadingLucky, "Give lucky colors and lucky numbers for the event."},
	{HeadingPanchang, "Provide detailed Panchang data (weekday, Tithi, Nakshatra, Yoga, Karana) for every recommended date."},
}

var premiumSections = []sectionSpec{
	{HeadingAlternatives, "Give alternative muhurats in case the primary dates are not possible."},
	{HeadingYogas, "Describe special yogas and planetary combinations active in the period."},
}

// Headings returns the section headings requested for the tier, in order.
func Headings(tier domain.Tier) []string {
	sections := sectionsFor(tier)
	out := make([]string, 0, len(sections))
	for _, s := range sections {
		out = append(out, s.heading)
	}
	return out
}

func sectionsFor(tier domain.Tier) []sectionSpec {
	if tier != domain.TierPremium {
		return baseSections
	}
	out := make([]sectionSpec, 0, len(baseSections)+len(premiumSections))
	out = append(out, baseSections...)
	return append(out, premiumSections...)
}

// BuildPrompt renders the generation instruction for a reading. Missing optional
// fields are replaced by placeholder text; the output depends only on its inputs.
func BuildPrompt(r domain.Reading, tier domain.Tier) string {
	var b strings.Builder
	b.WriteString("Prepare a detailed Shubh Muhurat report for the following event.\n\n")
	b.WriteString("EVENT DETAILS:\n")
	fmt.Fprintf(&b, "Event Name: %s\n", strings.TrimSpace(r.EventName))
	fmt.Fprintf(&b, "Event Type: %s\n", strings.TrimSpace(r.EventType))
	fmt.Fprintf(&b, "Location: %s\n", orPlaceholder(r.EventLocation, placeholderNotSpecified))
	fmt.Fprintf(&b, "Preferred Date: %s\n", orPlaceholder(r.PreferredDate, placeholderFlexible))
	fmt.Fprintf(&b, "Preferred Time: %s\n", timeWindow(r.PreferredTimeStart, r.PreferredTimeEnd))
	fmt.Fprintf(&b, "Additional Notes: %s\n", orPlaceholder(r.Notes, placeholderNotSpecified))
	fmt.Fprintf(&b, "Report Depth: %s\n\n", tier)

	b.WriteString("Structure the report with these sections, using the headings exactly as written:\n\n")
	for i, s := range sectionsFor(tier) {
		fmt.Fprintf(&b, "## %d. %s\n%s\n\n", i+1, s.heading, s.instruction)
	}
	b.WriteString("Use traditional Panchang calculations and keep every date within the next six months.")
	return b.String()
}

func orPlaceholder(v, placeholder string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return placeholder
	}
	return v
}

func timeWindow(start, end string) string {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return placeholderFlexible
	case end == "":
		return "From " + start
	case start == "":
		return "Until " + end
	default:
		return start + " - " + end
	}
}
