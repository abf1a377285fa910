/**
 * Line normalizer
 *
 * A fixed chain of text transforms applied to each line. Later transforms
 * assume the earlier ones already ran (e.g. capitalization expects lowercase
 * input), so the order below is part of the behavior.
 */

package textproc

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Transform is one named text -> text step
type Transform struct {
	Name  string
	Apply func(string) string
}

var (
	reDomainSuffix = regexp.MustCompile(`(?i)\.(?:com|org|net|edu|gov|io|info|biz|co|uk)\b`)
	reEmail        = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9\-]+(?:\.[a-z0-9\-]+)*`)
	reLink         = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	rePhone        = regexp.MustCompile(`\b\d{10,15}\b`)
	reSpecial      = regexp.MustCompile(`[@#]`)
	reLegacySpec   = regexp.MustCompile(`[^a-zA-Z0-9.,!?/:;"'\s-]`)
	reLowerWord    = regexp.MustCompile(`\b[a-z]{4,}\b`)
	reDate         = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)

	// Bracket tags such as "[HEADING] " or "[PERSON] " survive normalization verbatim
	reTag = regexp.MustCompile(`\[[A-Z_]+\] ?`)
)

// StripHTML drops markup and keeps text content with entities unescaped
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String()
			}
			return s
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// ToLower lowercases the line
func ToLower(s string) string {
	return strings.ToLower(s)
}

// StandardizeAccents decomposes to NFKD and drops everything outside ASCII
func StandardizeAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// RemoveDomainSuffixes strips top-level domain suffixes like ".com"
func RemoveDomainSuffixes(s string) string {
	return reDomainSuffix.ReplaceAllString(s, "")
}

// RemoveEmails strips email addresses
func RemoveEmails(s string) string {
	return reEmail.ReplaceAllString(s, "")
}

// RemoveLinks strips http(s) and www links
func RemoveLinks(s string) string {
	return reLink.ReplaceAllString(s, "")
}

// RemovePhoneNumbers strips standalone runs of 10 to 15 digits
func RemovePhoneNumbers(s string) string {
	return rePhone.ReplaceAllString(s, "")
}

// RemoveSpecialCharacters strips '@' and '#'
func RemoveSpecialCharacters(s string) string {
	return reSpecial.ReplaceAllString(s, "")
}

// RemoveLegacySpecialCharacters strips everything outside letters, digits,
// whitespace, hyphens and basic punctuation
func RemoveLegacySpecialCharacters(s string) string {
	return reLegacySpec.ReplaceAllString(s, "")
}

// CapitalizeProperNouns upper-cases the first letter of every lowercase word
// longer than three letters
func CapitalizeProperNouns(s string) string {
	return reLowerWord.ReplaceAllStringFunc(s, func(w string) string {
		return strings.ToUpper(w[:1]) + w[1:]
	})
}

// StandardizeDates rewrites day-first D/M/Y dates as YYYY-MM-DD.
// Impossible dates (month 13, 31/04) are left untouched.
func StandardizeDates(s string) string {
	return reDate.ReplaceAllStringFunc(s, func(match string) string {
		parts := reDate.FindStringSubmatch(match)
		day, _ := strconv.Atoi(parts[1])
		month, _ := strconv.Atoi(parts[2])
		year, _ := strconv.Atoi(parts[3])
		if len(parts[3]) == 2 {
			if year < 70 {
				year += 2000
			} else {
				year += 1900
			}
		}

		if month < 1 || month > 12 || day < 1 {
			return match
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || int(t.Month()) != month {
			return match
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	})
}

// LineNormalizerOptions selects normalizer variants
type LineNormalizerOptions struct {
	// LegacySpecialChars strips the broad character class instead of '@' and '#'
	LegacySpecialChars bool
}

// LineNormalizer applies the cleaning chain line by line
type LineNormalizer struct {
	transforms []Transform
}

// NewLineNormalizer creates the standard chain
func NewLineNormalizer(opts LineNormalizerOptions) *LineNormalizer {
	special := Transform{Name: "special_characters", Apply: RemoveSpecialCharacters}
	if opts.LegacySpecialChars {
		special = Transform{Name: "legacy_special_characters", Apply: RemoveLegacySpecialCharacters}
	}

	return &LineNormalizer{
		transforms: []Transform{
			{Name: "html", Apply: StripHTML},
			{Name: "lowercase", Apply: ToLower},
			{Name: "accents", Apply: StandardizeAccents},
			{Name: "domain_suffixes", Apply: RemoveDomainSuffixes},
			{Name: "emails", Apply: RemoveEmails},
			{Name: "links", Apply: RemoveLinks},
			{Name: "phone_numbers", Apply: RemovePhoneNumbers},
			special,
			{Name: "proper_nouns", Apply: CapitalizeProperNouns},
			{Name: "dates", Apply: StandardizeDates},
		},
	}
}

// Transforms returns the chain in application order
func (n *LineNormalizer) Transforms() []Transform {
	return n.transforms
}

// NormalizeLine runs the chain over line. Blank lines pass through, and
// bracket tags are kept as-is while the text between them is normalized.
func (n *LineNormalizer) NormalizeLine(line string) string {
	if strings.TrimSpace(line) == "" {
		return line
	}

	tags := reTag.FindAllStringIndex(line, -1)
	if len(tags) == 0 {
		return n.apply(line)
	}

	var b strings.Builder
	prev := 0
	for _, loc := range tags {
		b.WriteString(n.apply(line[prev:loc[0]]))
		b.WriteString(line[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(n.apply(line[prev:]))
	return b.String()
}

// NormalizeText normalizes each line of text independently
func (n *LineNormalizer) NormalizeText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = n.NormalizeLine(line)
	}
	return strings.Join(lines, "\n")
}

func (n *LineNormalizer) apply(s string) string {
	if s == "" {
		return s
	}
	for _, t := range n.transforms {
		s = t.Apply(s)
	}
	return s
}
