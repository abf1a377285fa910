package textproc

import (
	"fmt"
	"sort"
)

// Replacement replaces the rune range [Start, End) of a text with Text
type Replacement struct {
	Start int
	End   int
	Text  string
}

// ApplyReplacements splices non-overlapping replacements into text.
// Offsets are rune offsets into the original text. Replacements are applied
// from the highest Start down, so the length change of one splice never
// shifts a range that has not been applied yet.
func ApplyReplacements(text string, replacements []Replacement) (string, error) {
	if len(replacements) == 0 {
		return text, nil
	}

	runes := []rune(text)
	ordered := make([]Replacement, len(replacements))
	copy(ordered, replacements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start > ordered[j].Start
	})

	limit := len(runes)
	for _, r := range ordered {
		if r.Start < 0 || r.End < r.Start || r.End > len(runes) {
			return "", fmt.Errorf("replacement [%d,%d) out of range for text of length %d", r.Start, r.End, len(runes))
		}
		if r.End > limit {
			return "", fmt.Errorf("replacement [%d,%d) overlaps a later replacement starting at %d", r.Start, r.End, limit)
		}
		limit = r.Start
	}

	for _, r := range ordered {
		spliced := make([]rune, 0, len(runes)+len(r.Text)-(r.End-r.Start))
		spliced = append(spliced, runes[:r.Start]...)
		spliced = append(spliced, []rune(r.Text)...)
		spliced = append(spliced, runes[r.End:]...)
		runes = spliced
	}

	return string(runes), nil
}
