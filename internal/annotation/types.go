package annotation

// Span is a half-open interval [Start, End) of UTF-16 code units
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of code units covered
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one code unit
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Annotation is a single tagged span. Class label and color are snapshotted
// at creation so historical versions render the same after a class changes.
type Annotation struct {
	ID                string `json:"id" db:"id"`
	StartOffset       int    `json:"startOffset" db:"start_offset"`
	EndOffset         int    `json:"endOffset" db:"end_offset"`
	ClassID           string `json:"classId" db:"class_id"`
	ClassName         string `json:"className" db:"class_name"`
	ClassDisplayLabel string `json:"classDisplayLabel" db:"class_display_label"`
	ClassColor        string `json:"classColor" db:"class_color"`
	Tag               string `json:"tag" db:"tag"`
	OriginalText      string `json:"originalText" db:"original_text"`
}

// Span returns the annotation's offsets
func (a Annotation) Span() Span {
	return Span{Start: a.StartOffset, End: a.EndOffset}
}

// Clone returns a copy of the slice so callers can sort or mutate freely
func Clone(annotations []Annotation) []Annotation {
	if annotations == nil {
		return nil
	}
	out := make([]Annotation, len(annotations))
	copy(out, annotations)
	return out
}
