package processor

import (
	"path"
	"strings"
)

// Document is the text being processed. Stages never edit it in place; each
// returns a new value through WithText.
type Document struct {
	RawText   string
	SourceKey string
}

// WithText returns a copy of d carrying text
func (d Document) WithText(text string) Document {
	d.RawText = text
	return d
}

// Extension returns the lowercased extension of the source key, dot included
func (d Document) Extension() string {
	return strings.ToLower(path.Ext(d.SourceKey))
}
