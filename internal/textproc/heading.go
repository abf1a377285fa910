/**
 * Heading detection for raw document lines
 *
 * Runs on the original text: lowercasing and punctuation removal
 * would defeat the vocabulary and trailing-colon rules.
 */

package textproc

import (
	"regexp"
	"strings"
)

// HeadingTag prefixes every line recognized as a section heading
const HeadingTag = "[HEADING] "

// HeadingRule identifies which heuristic tagged a line
type HeadingRule int

const (
	RuleNone HeadingRule = iota
	RuleVocabulary
	RuleNumbered
	RuleShortAlpha
	RuleColon
)

func (r HeadingRule) String() string {
	switch r {
	case RuleVocabulary:
		return "vocabulary"
	case RuleNumbered:
		return "numbered"
	case RuleShortAlpha:
		return "short_alpha"
	case RuleColon:
		return "colon"
	default:
		return "none"
	}
}

const maxHeadingWords = 10

var defaultHeadingVocabulary = []string{
	"abstract",
	"introduction",
	"background",
	"methods",
	"methodology",
	"materials and methods",
	"results",
	"discussion",
	"conclusion",
	"conclusions",
	"references",
	"bibliography",
	"acknowledgments",
	"acknowledgements",
	"appendix",
	"keywords",
}

// HeadingDetector tags section headings with layered heuristics
type HeadingDetector struct {
	vocabulary map[string]struct{}
	reNumbered *regexp.Regexp
	reAlpha    *regexp.Regexp
}

// NewHeadingDetector creates a detector with the default vocabulary
func NewHeadingDetector() *HeadingDetector {
	vocab := make(map[string]struct{}, len(defaultHeadingVocabulary))
	for _, w := range defaultHeadingVocabulary {
		vocab[w] = struct{}{}
	}

	return &HeadingDetector{
		vocabulary: vocab,
		// dotted number ("1", "1.2", "3.") then alphabetic text of any length
		reNumbered: regexp.MustCompile(`^\d+(?:\.\d+)*\.?\s+[A-Za-z][A-Za-z \t-]*$`),
		reAlpha:    regexp.MustCompile(`^[\p{L}\s]+$`),
	}
}

// Classify returns the first heuristic matching line, or RuleNone
func (d *HeadingDetector) Classify(line string) HeadingRule {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, HeadingTag) {
		return RuleNone
	}

	if _, ok := d.vocabulary[strings.ToLower(trimmed)]; ok {
		return RuleVocabulary
	}

	if d.reNumbered.MatchString(trimmed) {
		return RuleNumbered
	}

	words := len(strings.Fields(trimmed))

	if words <= maxHeadingWords && d.reAlpha.MatchString(trimmed) {
		return RuleShortAlpha
	}

	if words <= maxHeadingWords && strings.HasSuffix(trimmed, ":") {
		return RuleColon
	}

	return RuleNone
}

// Tag prefixes line with HeadingTag when it is a heading
func (d *HeadingDetector) Tag(line string) string {
	if d.Classify(line) == RuleNone {
		return line
	}
	return HeadingTag + line
}

// TagLines applies Tag to every line of text
func (d *HeadingDetector) TagLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = d.Tag(line)
	}
	return strings.Join(lines, "\n")
}
