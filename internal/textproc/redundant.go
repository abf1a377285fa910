package textproc

import (
	"regexp"
	"strings"
)

// RedundantTextFilter strips publishing boilerplate before reflow
type RedundantTextFilter struct {
	patterns []*regexp.Regexp
}

// NewRedundantTextFilter creates a filter with the default ordered removals
func NewRedundantTextFilter() *RedundantTextFilter {
	return &RedundantTextFilter{
		patterns: []*regexp.Regexp{
			// Journal banners: "Journal of Applied Physics, Vol. 12 ..."
			regexp.MustCompile(`(?i)\bjournal\s+of\s+[^\n]*?\bvol(?:ume)?\.?\s*\d+[^\n]*`),
			// Volume/issue banners: "Vol. 12, No. 3, pp. 45-67"
			regexp.MustCompile(`(?i)\bvol(?:ume)?\.?\s*\d+\s*[,;(]?\s*(?:no|issue|iss)\.?\s*\d+\)?(?:\s*[,:]\s*(?:pp\.?\s*)?\d+(?:\s*[-–]\s*\d+)?)?`),
			// License statements
			regexp.MustCompile(`(?im)^[^\n]*\bcreative\s+commons\b[^\n]*$`),
			regexp.MustCompile(`(?im)^[^\n]*\bopen\s+access\s+article\b[^\n]*$`),
			regexp.MustCompile(`(?i)\bthis\s+(?:work|article|paper)\s+is\s+licen[sc]ed\s+under[^\n]*`),
			regexp.MustCompile(`(?i)(?:\bcopyright\s*)?©\s*\d{4}[^\n]*`),
			regexp.MustCompile(`(?i)\bcopyright\s+\d{4}[^\n]*`),
			regexp.MustCompile(`(?i)\ball\s+rights\s+reserved\.?`),
			// DOI strings
			regexp.MustCompile(`(?i)(?:https?://(?:dx\.)?doi\.org/|\bdoi:?\s*)10\.\d{4,9}/\S+`),
			// URLs and bare domains
			regexp.MustCompile(`(?i)\bhttps?://\S+`),
			regexp.MustCompile(`(?i)\bwww\.\S+`),
			regexp.MustCompile(`(?i)\b[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.(?:com|org|net|edu|gov)\b(?:/\S*)?`),
		},
	}
}

// reTagOnlyLine matches a line left holding nothing but bracket tags
var reTagOnlyLine = regexp.MustCompile(`(?m)^[ \t]*(?:\[[A-Z_]+\][ \t]*)+$\n?`)

// Filter removes every pattern in order and trims the result. Lines whose
// whole text was removed lose their tags too, so a "[HEADING] " prefix never
// outlives the boilerplate it was attached to.
func (f *RedundantTextFilter) Filter(text string) string {
	for _, re := range f.patterns {
		text = re.ReplaceAllString(text, "")
	}
	text = reTagOnlyLine.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
