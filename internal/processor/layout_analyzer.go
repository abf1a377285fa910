/**
 * Column-aware reading order for OCR line blocks
 *
 * Two-column pages are split at a fixed horizontal midpoint: the whole left
 * column is read top to bottom, then the right column. Single-column and
 * three-column pages come out in a degraded order rather than failing.
 */

package processor

import (
	"sort"
	"strings"
)

// ColumnSplit is the normalized x position separating the two columns
const ColumnSplit = 0.5

// ColumnLayout reorders OCR lines into reading order
type ColumnLayout struct {
	split float64
}

// NewColumnLayout creates a layout splitting columns at ColumnSplit
func NewColumnLayout() *ColumnLayout {
	return &ColumnLayout{split: ColumnSplit}
}

// ReadingOrder returns the LINE blocks ordered left column first, each
// column sorted by Top. Ties keep their input order.
func (c *ColumnLayout) ReadingOrder(blocks []OcrBlock) []OcrBlock {
	var left, right []OcrBlock
	for _, b := range blocks {
		if b.Type != BlockLine {
			continue
		}
		if b.BoundingBox.Left < c.split {
			left = append(left, b)
		} else {
			right = append(right, b)
		}
	}

	sortByTop(left)
	sortByTop(right)

	return append(left, right...)
}

// ExtractTextByColumns joins the reading-order line texts with newlines
func (c *ColumnLayout) ExtractTextByColumns(blocks []OcrBlock) string {
	ordered := c.ReadingOrder(blocks)
	lines := make([]string, len(ordered))
	for i, b := range ordered {
		lines[i] = b.Text
	}
	return strings.Join(lines, "\n")
}

func sortByTop(blocks []OcrBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].BoundingBox.Top < blocks[j].BoundingBox.Top
	})
}
