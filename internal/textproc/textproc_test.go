package textproc

import (
	"strings"
	"testing"
)

func TestApplyReplacements(t *testing.T) {
	tests := []struct {
		name string
		text string
		reps []Replacement
		want string
	}{
		{
			name: "ascending input order",
			text: "Alice met Bob",
			reps: []Replacement{{0, 5, "[PERSON] Alice"}, {10, 13, "[PERSON] Bob"}},
			want: "[PERSON] Alice met [PERSON] Bob",
		},
		{
			name: "descending input order",
			text: "Alice met Bob",
			reps: []Replacement{{10, 13, "[PERSON] Bob"}, {0, 5, "[PERSON] Alice"}},
			want: "[PERSON] Alice met [PERSON] Bob",
		},
		{
			name: "rune offsets",
			text: "Zoë visited Köln",
			reps: []Replacement{{12, 16, "[LOCATION] Köln"}, {0, 3, "[PERSON] Zoë"}},
			want: "[PERSON] Zoë visited [LOCATION] Köln",
		},
		{
			name: "adjacent spans",
			text: "ab",
			reps: []Replacement{{0, 1, "<a>"}, {1, 2, "<b>"}},
			want: "<a><b>",
		},
		{
			name: "none",
			text: "unchanged",
			want: "unchanged",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ApplyReplacements(tc.text, tc.reps)
			if err != nil {
				t.Fatalf("ApplyReplacements() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ApplyReplacements() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestApplyReplacementsRejectsInvalid(t *testing.T) {
	if _, err := ApplyReplacements("abc", []Replacement{{2, 5, "x"}}); err == nil {
		t.Error("expected out of range error")
	}
	if _, err := ApplyReplacements("abcdef", []Replacement{{0, 4, "x"}, {2, 5, "y"}}); err == nil {
		t.Error("expected overlap error")
	}
}

func TestHeadingClassify(t *testing.T) {
	d := NewHeadingDetector()
	tests := []struct {
		line string
		want HeadingRule
	}{
		{"Introduction", RuleVocabulary},
		{"  REFERENCES  ", RuleVocabulary},
		{"Materials and Methods", RuleVocabulary},
		{"1 Introduction to the problem", RuleNumbered},
		{"2.1. Experimental setup", RuleNumbered},
		{"2.1 experimental setup", RuleNumbered},
		{"1 introduction", RuleNumbered},
		{"3. related work", RuleNumbered},
		{"1.1 A heading that runs on for well over ten words in total length", RuleNumbered},
		{"4.2.1 Cross-validation results", RuleNumbered},
		{"3) Data collection", RuleNone},
		{"12 monkeys and more:", RuleColon},
		{"Results And Findings", RuleShortAlpha},
		{"results and findings", RuleShortAlpha},
		{"a b c d e f g h i j k", RuleNone},
		{"the following were measured:", RuleColon},
		{"Table 2: values", RuleNone},
		{"Table 2 values:", RuleColon},
		{"This sentence ends with a period.", RuleNone},
		{"one two three four five six seven eight nine ten eleven", RuleNone},
		{"", RuleNone},
		{"   ", RuleNone},
		{"[HEADING] Introduction", RuleNone},
	}

	for _, tc := range tests {
		got := d.Classify(tc.line)
		if got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.line, got, tc.want)
		}
		if again := d.Classify(tc.line); again != got {
			t.Errorf("Classify(%q) not deterministic: %v then %v", tc.line, got, again)
		}
	}
}

func TestHeadingTagLines(t *testing.T) {
	d := NewHeadingDetector()
	in := "Abstract\nWe study things.\n\n1.2 Prior work"
	want := "[HEADING] Abstract\nWe study things.\n\n[HEADING] 1.2 Prior work"

	if got := d.TagLines(in); got != want {
		t.Errorf("TagLines() = %q, want %q", got, want)
	}
}

func TestRedundantTextFilter(t *testing.T) {
	f := NewRedundantTextFilter()
	tests := []struct {
		name, in, want string
	}{
		{
			name: "volume banner",
			in:   "Vol. 12, No. 3, pp. 45-67\nBody text.",
			want: "Body text.",
		},
		{
			name: "journal banner",
			in:   "Journal of Applied Physics Vol 7 Issue 2\nBody text.",
			want: "Body text.",
		},
		{
			name: "license line",
			in:   "Body text.\nThis article is distributed under a Creative Commons Attribution License.",
			want: "Body text.",
		},
		{
			name: "copyright",
			in:   "© 2021 Elsevier Ltd. All rights reserved.\nBody text.",
			want: "Body text.",
		},
		{
			name: "doi",
			in:   "Body text. doi:10.1016/j.cell.2020.01.001",
			want: "Body text.",
		},
		{
			name: "doi url",
			in:   "See https://doi.org/10.1038/nature12373 for details.",
			want: "See  for details.",
		},
		{
			name: "bare domain",
			in:   "Visit example.com/data today.",
			want: "Visit  today.",
		},
		{
			name: "tagged boilerplate line dropped with its tag",
			in:   "We measured cats.\n[HEADING] All rights reserved\nthe results were clear.",
			want: "We measured cats.\nthe results were clear.",
		},
		{
			name: "tagged copyright line at end",
			in:   "Body text.\n[HEADING] Copyright 2020 Acme Press",
			want: "Body text.",
		},
		{
			name: "tag with remaining text kept",
			in:   "[HEADING] Methods www.lab.org\nBody text.",
			want: "[HEADING] Methods \nBody text.",
		},
		{
			name: "untouched",
			in:   "  Plain sentence.  ",
			want: "Plain sentence.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.Filter(tc.in); got != tc.want {
				t.Errorf("Filter(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestReflow(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"This is a\nsentence.\n\nNext para.", "This is a sentence.\n\nNext para."},
		{"one\ntwo\nthree", "one two three"},
		{"Really?\nYes!\nGood.", "Really?\nYes!\nGood."},
		{"  padded  \n  line.  ", "padded line."},
		{"[HEADING] Methods\n\nWe did\nthings.", "[HEADING] Methods\n\nWe did things."},
		{"[HEADING] This is a\nsentence.", "[HEADING] This is a sentence."},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Reflow(tc.in); got != tc.want {
			t.Errorf("Reflow(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransforms(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"html", StripHTML, "a <b>bold</b> &amp; <i>it</i>", "a bold & it"},
		{"html plain", StripHTML, "x < y", "x < y"},
		{"accents", StandardizeAccents, "café naïve Ångström", "cafe naive Angstrom"},
		{"accents drops symbols", StandardizeAccents, "price €5", "price 5"},
		{"domain", RemoveDomainSuffixes, "visit example.com and site.org.", "visit example and site."},
		{"email", RemoveEmails, "mail bob.smith@uni.edu now", "mail  now"},
		{"link", RemoveLinks, "see https://x.y/z and www.a.b ok", "see  and  ok"},
		{"phone", RemovePhoneNumbers, "call 5551234567 or 123", "call  or 123"},
		{"phone too long", RemovePhoneNumbers, "id 1234567890123456", "id 1234567890123456"},
		{"special", RemoveSpecialCharacters, "#tag @user a-b", "tag user a-b"},
		{"legacy special", RemoveLegacySpecialCharacters, "a*b (c) d.", "ab c d."},
		{"legacy special keeps hyphen", RemoveLegacySpecialCharacters, "well-known x-ray", "well-known x-ray"},
		{"legacy special keeps punctuation", RemoveLegacySpecialCharacters, `he said: "yes", 'no'; 1/2?`, `he said: "yes", 'no'; 1/2?`},
		{"legacy special drops symbols", RemoveLegacySpecialCharacters, "#tag @user 50% & $5 [x]", "tag user 50  5 x"},
		{"capitalize", CapitalizeProperNouns, "the study of john", "the Study of John"},
		{"capitalize skips mixed", CapitalizeProperNouns, "data2 Already", "data2 Already"},
		{"date", StandardizeDates, "on 5/3/2021 and 25-12-99", "on 2021-03-05 and 1999-12-25"},
		{"date invalid", StandardizeDates, "on 31/4/2021 and 1/13/2020", "on 31/4/2021 and 1/13/2020"},
		{"date stable", StandardizeDates, "2021-03-05", "2021-03-05"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.fn(tc.in); got != tc.want {
				t.Errorf("%s(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
			}
			if got := tc.fn(""); got != "" {
				t.Errorf("%s(\"\") = %q, want empty", tc.name, got)
			}
		})
	}
}

func TestRemovalTransformsIdempotent(t *testing.T) {
	removeAll := func(s string) string {
		s = RemoveDomainSuffixes(s)
		s = RemoveEmails(s)
		s = RemoveLinks(s)
		return RemovePhoneNumbers(s)
	}

	inputs := []string{
		"",
		"contact jane.doe@mail.example.com or 4155550100123",
		"https://example.com/path?q=1 www.test.org",
		"a.co.uk b.com.com x.cohttp://y",
		"12345678901234567890 and 1234567890",
		"nothing to remove here",
		"@@@ ### ...com",
	}

	for _, in := range inputs {
		once := removeAll(in)
		twice := removeAll(once)
		if once != twice {
			t.Errorf("removal not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalizeLine(t *testing.T) {
	n := NewLineNormalizer(LineNormalizerOptions{})
	tests := []struct {
		in, want string
	}{
		{"Dr. José García emailed jgarcia@uni.edu on 03/04/2020.", "dr. Jose Garcia Emailed  on 2020-04-03."},
		{"<p>Visit www.lab.org #science</p>", "Visit  Science"},
		{"", ""},
		{"   ", "   "},
	}

	for _, tc := range tests {
		if got := n.NormalizeLine(tc.in); got != tc.want {
			t.Errorf("NormalizeLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeLinePreservesTags(t *testing.T) {
	n := NewLineNormalizer(LineNormalizerOptions{})
	annotated := "[HEADING] [PERSON] Alice Smith met [ORGANIZATION] Acme"

	got := n.NormalizeLine(annotated)
	for _, tag := range []string{"[HEADING] ", "[PERSON] ", "[ORGANIZATION] "} {
		if !strings.Contains(got, tag) {
			t.Errorf("NormalizeLine(%q) = %q, lost tag %q", annotated, got, tag)
		}
	}
	if again := n.NormalizeLine(got); again != got {
		t.Errorf("second pass changed text: %q -> %q", got, again)
	}
}

func TestNormalizerOrder(t *testing.T) {
	n := NewLineNormalizer(LineNormalizerOptions{})
	var names []string
	for _, tr := range n.Transforms() {
		names = append(names, tr.Name)
	}
	want := "html,lowercase,accents,domain_suffixes,emails,links,phone_numbers,special_characters,proper_nouns,dates"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("transform order = %s, want %s", got, want)
	}

	legacy := NewLineNormalizer(LineNormalizerOptions{LegacySpecialChars: true})
	if name := legacy.Transforms()[7].Name; name != "legacy_special_characters" {
		t.Errorf("legacy variant uses %s", name)
	}

	in := "[HEADING] state-of-the-art (2021) results*"
	want = "[HEADING] State-of-the-art 2021 Results"
	if got := legacy.NormalizeLine(in); got != want {
		t.Errorf("legacy NormalizeLine(%q) = %q, want %q", in, got, want)
	}
}
