// Package tagging allocates human-readable tags such as [email_3] and
// detects when newly selected text already carries a tag.
package tagging

import (
	"strconv"
	"strings"

	"github.com/raaihank/annotext/internal/annotation"
)

// FormatTag renders the tag for the n-th annotation of a class
func FormatTag(className string, n int) string {
	return "[" + className + "_" + strconv.Itoa(n) + "]"
}

// ParseTag splits a tag into class name and sequence number. Brackets are
// optional so that tags written before bracketing was enforced still parse.
func ParseTag(tag string) (className string, n int, ok bool) {
	body := strings.TrimSuffix(strings.TrimPrefix(tag, "["), "]")
	idx := strings.LastIndex(body, "_")
	if idx <= 0 || idx == len(body)-1 {
		return "", 0, false
	}

	n, err := strconv.Atoi(body[idx+1:])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return body[:idx], n, true
}

// NormalizeTag returns tag wrapped in brackets. An empty tag falls back to
// the given class name.
func NormalizeTag(tag, fallback string) string {
	if tag == "" {
		tag = fallback
	}
	if len(tag) >= 2 && strings.HasPrefix(tag, "[") && strings.HasSuffix(tag, "]") {
		return tag
	}
	return "[" + tag + "]"
}

// NextSequenceNumber returns one more than the highest sequence number used
// by classID, or 1. Numbers freed by deletions are never handed out again.
func NextSequenceNumber(annotations []annotation.Annotation, classID string) int {
	highest := 0
	for _, ann := range annotations {
		if ann.ClassID != classID {
			continue
		}
		if _, n, ok := ParseTag(ann.Tag); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}

// Match is an existing annotation whose text equals a new selection. It
// carries the matched class snapshot so a linked annotation can copy it
// without looking the match up again; annotation ids may be empty.
type Match struct {
	AnnotationID      string `json:"annotationId"`
	Tag               string `json:"tag"`
	ClassID           string `json:"classId"`
	ClassName         string `json:"className"`
	ClassDisplayLabel string `json:"classDisplayLabel"`
	ClassColor        string `json:"classColor"`
}

// Stamp copies the matched tag and class snapshot onto a
func (m Match) Stamp(a *annotation.Annotation) {
	a.Tag = m.Tag
	a.ClassID = m.ClassID
	a.ClassName = m.ClassName
	a.ClassDisplayLabel = m.ClassDisplayLabel
	a.ClassColor = m.ClassColor
}

// FindExistingTagForText returns the first annotation whose original text is
// exactly selectedText. Comparison is case-sensitive.
func FindExistingTagForText(annotations []annotation.Annotation, selectedText string) (Match, bool) {
	for _, ann := range annotations {
		if ann.OriginalText == selectedText {
			return Match{
				AnnotationID:      ann.ID,
				Tag:               ann.Tag,
				ClassID:           ann.ClassID,
				ClassName:         ann.ClassName,
				ClassDisplayLabel: ann.ClassDisplayLabel,
				ClassColor:        ann.ClassColor,
			}, true
		}
	}
	return Match{}, false
}
