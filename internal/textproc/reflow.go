package textproc

import "strings"

// Reflow joins OCR-wrapped lines into sentence-terminated lines.
//
// Blank lines are kept as paragraph breaks. A line ending in '.', '!' or '?'
// closes the current sentence. Abbreviations and decimals produce false splits.
func Reflow(text string) string {
	var out []string
	var buf []string

	flush := func() {
		if len(buf) > 0 {
			out = append(out, strings.Join(buf, " "))
			buf = buf[:0]
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)

		if line == "" {
			flush()
			out = append(out, "")
			continue
		}

		buf = append(buf, line)
		if endsSentence(line) {
			flush()
		}
	}
	flush()

	return strings.Join(out, "\n")
}

func endsSentence(line string) bool {
	switch line[len(line)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
