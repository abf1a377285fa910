/**
 * Entity Annotator
 *
 * Sends each line of the cleaned document to the entity classifier and
 * inserts "[TYPE] " in front of every retained entity span. Offsets coming
 * back from the classifier are local to the line, counted in runes.
 */

package processor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/adverant/nexus/textannotate-worker/internal/errors"
	"github.com/adverant/nexus/textannotate-worker/internal/logging"
	"github.com/adverant/nexus/textannotate-worker/internal/textproc"
)

// EntityType is a classifier label
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityLocation     EntityType = "LOCATION"
	EntityTitle        EntityType = "TITLE"
	EntityOther        EntityType = "OTHER"
)

// AllowedEntityTypes are the labels that get annotated
var AllowedEntityTypes = map[EntityType]bool{
	EntityPerson:       true,
	EntityOrganization: true,
	EntityLocation:     true,
	EntityTitle:        true,
}

// minEntityRunes drops very short spans ("Dr", "US" style noise)
const minEntityRunes = 3

// Entity is one classified span with offsets local to the submitted text
type Entity struct {
	Type        EntityType
	Text        string
	BeginOffset int
	EndOffset   int
	Score       float64
}

// EntityClassifier detects entities in a unit of text
type EntityClassifier interface {
	DetectEntities(ctx context.Context, text string, languageCode string) ([]Entity, error)
}

// AnnotationStats summarizes one annotation pass
type AnnotationStats struct {
	Units          int     `json:"units"`
	AnnotatedUnits int     `json:"annotatedUnits"`
	FailedUnits    int     `json:"failedUnits"`
	Entities       int     `json:"entities"`
	Skipped        int     `json:"skipped"`
	Errors         []error `json:"-"`
}

// EntityAnnotator tags entity spans in a document
type EntityAnnotator struct {
	classifier   EntityClassifier
	languageCode string
	logger       *logging.Logger
}

var leadingTags = regexp.MustCompile(`^(?:\[[A-Z_]+\] )+`)

// NewEntityAnnotator creates an annotator calling classifier once per line
func NewEntityAnnotator(classifier EntityClassifier, languageCode string, logger *logging.Logger) *EntityAnnotator {
	if languageCode == "" {
		languageCode = "en"
	}
	if logger == nil {
		logger = logging.NewLogger("Annotator")
	}
	return &EntityAnnotator{
		classifier:   classifier,
		languageCode: languageCode,
		logger:       logger,
	}
}

// unit is a line located in the document, in rune offsets
type unit struct {
	index int
	text  string
	start int
}

// Annotate classifies every non-blank line of text and returns the text with
// entity tags inserted. A failing line is left unannotated and counted; only
// cancellation of ctx aborts the pass.
func (a *EntityAnnotator) Annotate(ctx context.Context, jobID string, text string) (string, *AnnotationStats, error) {
	stats := &AnnotationStats{}
	if strings.TrimSpace(text) == "" {
		return text, stats, nil
	}

	var replacements []textproc.Replacement
	for _, u := range locateUnits(text) {
		if err := ctx.Err(); err != nil {
			return "", stats, errors.NewPipelineFatalError(jobID, "annotate", err)
		}
		stats.Units++

		entities, err := a.classifier.DetectEntities(ctx, u.text, a.languageCode)
		if err != nil {
			if ctx.Err() != nil {
				return "", stats, errors.NewPipelineFatalError(jobID, "annotate", ctx.Err())
			}
			unitErr := errors.NewAnnotationUnitError(jobID, u.index, err)
			stats.FailedUnits++
			stats.Errors = append(stats.Errors, unitErr)
			a.logger.Warn("Entity detection failed, leaving line unannotated",
				"job_id", jobID, "unit", u.index, "error", err)
			continue
		}

		kept, skipped := selectEntities(u, entities)
		stats.Skipped += skipped
		if len(kept) == 0 {
			continue
		}
		stats.AnnotatedUnits++
		stats.Entities += len(kept)
		replacements = append(replacements, kept...)
	}

	annotated, err := textproc.ApplyReplacements(text, replacements)
	if err != nil {
		return "", stats, errors.NewPipelineFatalError(jobID, "annotate", err)
	}

	a.logger.Debug("Annotation pass complete", "job_id", jobID,
		"units", stats.Units, "entities", stats.Entities, "failed", stats.FailedUnits)
	return annotated, stats, nil
}

// locateUnits finds each non-blank line by a forward search starting at the
// end of the previous unit, so repeated lines resolve to successive
// occurrences. Leading bracket tags are not part of the submitted text.
func locateUnits(text string) []unit {
	var units []unit
	byteCursor, runeCursor := 0, 0

	for i, line := range strings.Split(text, "\n") {
		body := strings.TrimSpace(leadingTags.ReplaceAllString(line, ""))
		if body == "" {
			continue
		}

		idx := strings.Index(text[byteCursor:], body)
		if idx < 0 {
			continue
		}
		runeCursor += utf8.RuneCountInString(text[byteCursor : byteCursor+idx])
		byteCursor += idx

		units = append(units, unit{index: i, text: body, start: runeCursor})

		runeCursor += utf8.RuneCountInString(body)
		byteCursor += len(body)
	}
	return units
}

// selectEntities filters the classifier output for one unit and converts it
// into document-global replacements. Overlapping spans keep the longer one,
// and the earlier one on equal length.
func selectEntities(u unit, entities []Entity) ([]textproc.Replacement, int) {
	runes := []rune(u.text)
	skipped := 0

	candidates := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if !AllowedEntityTypes[e.Type] {
			continue
		}
		if e.BeginOffset < 0 || e.EndOffset > len(runes) || e.BeginOffset >= e.EndOffset {
			skipped++
			continue
		}
		span := string(runes[e.BeginOffset:e.EndOffset])
		if e.Text != "" && e.Text != span {
			skipped++
			continue
		}
		if e.EndOffset-e.BeginOffset < minEntityRunes {
			continue
		}
		e.Text = span
		candidates = append(candidates, e)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li := candidates[i].EndOffset - candidates[i].BeginOffset
		lj := candidates[j].EndOffset - candidates[j].BeginOffset
		if li != lj {
			return li > lj
		}
		return candidates[i].BeginOffset < candidates[j].BeginOffset
	})

	var kept []Entity
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if c.BeginOffset < k.EndOffset && k.BeginOffset < c.EndOffset {
				overlaps = true
				break
			}
		}
		if overlaps {
			skipped++
			continue
		}
		kept = append(kept, c)
	}

	reps := make([]textproc.Replacement, len(kept))
	for i, e := range kept {
		reps[i] = textproc.Replacement{
			Start: u.start + e.BeginOffset,
			End:   u.start + e.EndOffset,
			Text:  fmt.Sprintf("[%s] %s", e.Type, e.Text),
		}
	}
	return reps, skipped
}
