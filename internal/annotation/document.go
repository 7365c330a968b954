package annotation

import (
	"unicode/utf16"
	"unicode/utf8"
)

// Document is the immutable raw text of one email under annotation.
// Offsets into a Document are UTF-16 code units so that they line up with
// what a browser Range reports for the same text.
type Document struct {
	ID    string
	text  string
	units []uint16
}

// NewDocument creates a document view over raw text
func NewDocument(id, text string) *Document {
	return &Document{
		ID:    id,
		text:  text,
		units: utf16.Encode([]rune(text)),
	}
}

// Text returns the raw text
func (d *Document) Text() string {
	return d.text
}

// Len returns the document length in UTF-16 code units
func (d *Document) Len() int {
	return len(d.units)
}

// Slice returns the text in [start, end). Callers validate the span first.
func (d *Document) Slice(start, end int) string {
	return string(utf16.Decode(d.units[start:end]))
}

// Units exposes the UTF-16 view for transforms that rebuild text.
// The returned slice must not be modified.
func (d *Document) Units() []uint16 {
	return d.units
}

// IsBoundary reports whether offset falls between two characters rather
// than inside a surrogate pair.
func (d *Document) IsBoundary(offset int) bool {
	if offset <= 0 || offset >= len(d.units) {
		return true
	}
	return !(isHighSurrogate(d.units[offset-1]) && isLowSurrogate(d.units[offset]))
}

// UnitOffset converts a UTF-8 byte offset into the document text into a
// UTF-16 code unit offset.
func (d *Document) UnitOffset(byteOffset int) int {
	if byteOffset > len(d.text) {
		byteOffset = len(d.text)
	}
	units := 0
	for i := 0; i < byteOffset; {
		r, size := utf8.DecodeRuneInString(d.text[i:])
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		i += size
	}
	return units
}

// ValidateSpan checks a span against this document: it must be in bounds,
// non-empty and must not cut a surrogate pair in half.
func (d *Document) ValidateSpan(start, end int) error {
	if err := CheckBounds(start, end, d.Len()); err != nil {
		return err
	}
	if !d.IsBoundary(start) {
		return &ValidationError{Field: "startOffset", Value: start, Message: "offset splits a surrogate pair"}
	}
	if !d.IsBoundary(end) {
		return &ValidationError{Field: "endOffset", Value: end, Message: "offset splits a surrogate pair"}
	}
	return nil
}

func isHighSurrogate(u uint16) bool { return u >= 0xD800 && u < 0xDC00 }
func isLowSurrogate(u uint16) bool  { return u >= 0xDC00 && u < 0xE000 }
