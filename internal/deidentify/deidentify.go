// Package deidentify rewrites raw document text with every annotated span
// replaced by its bracketed tag.
package deidentify

import (
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/overlap"
	"github.com/raaihank/annotext/internal/tagging"
)

// Replacement locates one substituted tag in both texts
type Replacement struct {
	AnnotationID string          `json:"annotationId"`
	Tag          string          `json:"tag"`
	Source       annotation.Span `json:"source"`
	Output       annotation.Span `json:"output"`
}

// Result is the de-identified text together with where each tag landed
type Result struct {
	Text         string                  `json:"text"`
	Replacements []Replacement           `json:"replacements"`
	Skipped      []annotation.Annotation `json:"skipped,omitempty"`
}

// Deidentify returns the text of doc with annotated spans replaced by tags
func Deidentify(doc *annotation.Document, annotations []annotation.Annotation) (string, error) {
	result, err := Transform(doc, annotations)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// Transform de-identifies doc and reports every replacement. Each span must
// be valid for doc. When spans overlap, the one that would win inline
// highlighting is applied and the rest are reported as skipped.
func Transform(doc *annotation.Document, annotations []annotation.Annotation) (Result, error) {
	for _, ann := range annotations {
		if err := doc.ValidateSpan(ann.StartOffset, ann.EndOffset); err != nil {
			return Result{}, fmt.Errorf("annotation %s: %w", ann.ID, err)
		}
	}

	kept, skipped := overlap.Partition(doc, annotations)

	tags := make([][]uint16, len(kept))
	replacements := make([]Replacement, len(kept))
	shift := 0
	for i, ann := range kept {
		tag := tagging.NormalizeTag(ann.Tag, ann.ClassName)
		tags[i] = utf16.Encode([]rune(tag))

		outStart := ann.StartOffset + shift
		replacements[i] = Replacement{
			AnnotationID: ann.ID,
			Tag:          tag,
			Source:       ann.Span(),
			Output:       annotation.Span{Start: outStart, End: outStart + len(tags[i])},
		}
		shift += len(tags[i]) - ann.Span().Len()
	}

	// Back to front: everything not yet replaced sits at lower offsets and
	// is still addressed by its original offsets.
	order := make([]int, len(kept))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return kept[order[a]].StartOffset > kept[order[b]].StartOffset
	})

	units := doc.Units()
	for _, i := range order {
		ann := kept[i]
		next := make([]uint16, 0, len(units)-ann.Span().Len()+len(tags[i]))
		next = append(next, units[:ann.StartOffset]...)
		next = append(next, tags[i]...)
		next = append(next, units[ann.EndOffset:]...)
		units = next
	}

	return Result{
		Text:         string(utf16.Decode(units)),
		Replacements: replacements,
		Skipped:      skipped,
	}, nil
}
