// Package report turns reading requests into generation prompts and turns the
// generated prose back into structured muhurat reports.
//
// Parsing is best effort. Every parser is total: when nothing matches it returns
// a fixed default and the field name is recorded in Report.Defaulted.
package report

import (
	"fmt"
	"strings"
	"time"

	"muhuratai/pkg/domain"
)

// Parse builds a structured report from generated text.
func Parse(raw string, r domain.Reading, tier domain.Tier, now time.Time) domain.Report {
	sections := ExtractSections(raw, Headings(tier))
	rep := domain.Report{
		Title:              Title(r),
		Tier:               tier,
		RawText:            raw,
		PlanetaryPositions: sections[HeadingPlanetary],
		NakshatraAnalysis:  sections[HeadingNakshatra],
		TithiDetails:       sections[HeadingTithi],
		Panchang:           sections[HeadingPanchang],
		GeneratedAt:        now.UTC(),
	}

	var defaulted bool
	rep.Dates, defaulted = ParseDates(sections[HeadingDates], now)
	if defaulted {
		rep.Defaulted = append(rep.Defaulted, "dates")
	}

	inauspicious, ok := sections[HeadingInauspicious]
	if !ok {
		inauspicious = raw
	}
	rep.Inauspicious = ParseInauspicious(inauspicious)

	best, bestDefaults := ParseBest(sections[HeadingBest], sections[HeadingYogas], rep.Dates[0].Date)
	rep.Best = best
	rep.Defaulted = append(rep.Defaulted, bestDefaults...)

	rep.Remedies = ParseList(sections[HeadingRemedies], MaxListItems)
	rep.DosAndDonts = ParseList(sections[HeadingDosDonts], MaxListItems)

	rep.LuckyColors, defaulted = ParseLuckyColors(sections[HeadingLucky])
	if defaulted {
		rep.Defaulted = append(rep.Defaulted, "luckyColors")
	}
	rep.LuckyNumbers, defaulted = ParseLuckyNumbers(sections[HeadingLucky])
	if defaulted {
		rep.Defaulted = append(rep.Defaulted, "luckyNumbers")
	}
	return rep
}

// Title is the display title of a reading's report.
func Title(r domain.Reading) string {
	name := strings.TrimSpace(r.EventName)
	if typ := strings.TrimSpace(r.EventType); typ != "" {
		return fmt.Sprintf("Shubh Muhurat Report: %s (%s)", name, typ)
	}
	return "Shubh Muhurat Report: " + name
}
