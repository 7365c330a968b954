// Package overlap turns a possibly overlapping annotation set into a flat,
// gap-free segmentation of the document for inline highlighting.
package overlap

import (
	"sort"

	"github.com/raaihank/annotext/internal/annotation"
)

// Segment is a run of document text, either plain or covered by exactly one
// annotation.
type Segment struct {
	Text       string                 `json:"text"`
	Start      int                    `json:"start"`
	End        int                    `json:"end"`
	Annotation *annotation.Annotation `json:"annotation,omitempty"`
}

// IsHighlight reports whether the segment belongs to an annotation
func (s Segment) IsHighlight() bool {
	return s.Annotation != nil
}

// Resolve segments the document. Among overlapping annotations the one that
// starts first wins, and on equal starts the longer one wins. Annotations
// that lose are left out of the segmentation only; the caller's slice is not
// touched.
func Resolve(doc *annotation.Document, annotations []annotation.Annotation) []Segment {
	kept, _ := Partition(doc, annotations)

	segments := make([]Segment, 0, 2*len(kept)+1)
	cursor := 0
	for i := range kept {
		ann := kept[i]
		if ann.StartOffset > cursor {
			segments = append(segments, plain(doc, cursor, ann.StartOffset))
		}
		segments = append(segments, Segment{
			Text:       doc.Slice(ann.StartOffset, ann.EndOffset),
			Start:      ann.StartOffset,
			End:        ann.EndOffset,
			Annotation: &kept[i],
		})
		cursor = ann.EndOffset
	}
	if cursor < doc.Len() || len(segments) == 0 {
		segments = append(segments, plain(doc, cursor, doc.Len()))
	}

	return segments
}

// Partition splits annotations into the ones Resolve renders, in document
// order, and the ones it drops. Spans are clamped to the document first;
// spans that end up empty or cut a surrogate pair are dropped.
func Partition(doc *annotation.Document, annotations []annotation.Annotation) (kept, dropped []annotation.Annotation) {
	candidates := make([]annotation.Annotation, 0, len(annotations))
	for _, ann := range annotations {
		clamped := ann
		if clamped.StartOffset < 0 {
			clamped.StartOffset = 0
		}
		if clamped.EndOffset > doc.Len() {
			clamped.EndOffset = doc.Len()
		}
		if doc.ValidateSpan(clamped.StartOffset, clamped.EndOffset) != nil {
			dropped = append(dropped, ann)
			continue
		}
		candidates = append(candidates, clamped)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].StartOffset != candidates[j].StartOffset {
			return candidates[i].StartOffset < candidates[j].StartOffset
		}
		return candidates[i].EndOffset > candidates[j].EndOffset
	})

	lastEnd := -1
	for _, ann := range candidates {
		if ann.StartOffset >= lastEnd {
			kept = append(kept, ann)
			lastEnd = ann.EndOffset
			continue
		}
		dropped = append(dropped, ann)
	}

	return kept, dropped
}

// SortForList orders every annotation by start offset without dropping any.
// List views use this instead of Resolve.
func SortForList(annotations []annotation.Annotation) []annotation.Annotation {
	sorted := annotation.Clone(annotations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartOffset < sorted[j].StartOffset
	})
	return sorted
}

func plain(doc *annotation.Document, start, end int) Segment {
	return Segment{Text: doc.Slice(start, end), Start: start, End: end}
}
