package report

import (
	"regexp"
	"sort"
	"strings"

	"muhuratai/pkg/domain"
)

type headingHit struct {
	heading   string
	start     int
	bodyStart int
}

// ExtractSections splits generated text into named sections. A heading must sit
// alone on its line; it matches case-insensitively and may carry markdown
// markers, bold markers, numbering and a trailing colon.
// The first occurrence of a heading wins. A section runs until the next found
// heading by position, so out-of-order headings still produce aligned sections.
// Headings that are not found are absent from the result.
func ExtractSections(text string, headings []string) map[string]string {
	hits := make([]headingHit, 0, len(headings))
	for _, h := range headings {
		loc := headingPattern(h).FindStringIndex(text)
		if loc == nil {
			continue
		}
		bodyStart := loc[1]
		if nl := strings.IndexByte(text[bodyStart:], '\n'); nl >= 0 {
			bodyStart += nl + 1
		} else {
			bodyStart = len(text)
		}
		hits = append(hits, headingHit{heading: h, start: loc[0], bodyStart: bodyStart})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	out := make(map[string]string, len(hits))
	for i, hit := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		if end < hit.bodyStart {
			end = hit.bodyStart
		}
		out[hit.heading] = strings.TrimSpace(text[hit.bodyStart:end])
	}
	return out
}

// headingCache is filled once in init and only read afterwards.
var headingCache = map[string]*regexp.Regexp{}

func headingPattern(heading string) *regexp.Regexp {
	if re, ok := headingCache[heading]; ok {
		return re
	}
	return compileHeading(heading)
}

func compileHeading(heading string) *regexp.Regexp {
	words := strings.Fields(heading)
	for i, w := range words {
		words[i] = strings.ReplaceAll(regexp.QuoteMeta(w), "'", "['’]?")
	}
	pattern := `(?im)^[ \t]*(?:#{1,6}[ \t]*)?(?:\*\*)?[ \t]*(?:\d{1,2}[.)][ \t]*)?(?:\*\*)?[ \t]*` +
		strings.Join(words, `[ \t]+`) +
		`[ \t]*(?:\*\*)?[ \t]*:?[ \t]*(?:\*\*)?[ \t]*$`
	return regexp.MustCompile(pattern)
}

func init() {
	for _, h := range Headings(domain.TierPremium) {
		headingCache[h] = compileHeading(h)
	}
}
