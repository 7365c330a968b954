package overlap

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/raaihank/annotext/internal/annotation"
)

func span(id string, start, end int) annotation.Annotation {
	return annotation.Annotation{ID: id, StartOffset: start, EndOffset: end, ClassName: "word", Tag: "[word_1]"}
}

func join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestResolve(t *testing.T) {
	text := "Call me at 555-0100 or mail bob@example.com today."
	doc := annotation.NewDocument("doc", text)

	t.Run("NoAnnotations", func(t *testing.T) {
		segments := Resolve(doc, nil)
		if len(segments) != 1 || segments[0].IsHighlight() {
			t.Fatalf("expected one plain segment, got %+v", segments)
		}
		if segments[0].Text != text {
			t.Errorf("segment text mismatch")
		}
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		segments := Resolve(annotation.NewDocument("empty", ""), nil)
		if len(segments) != 1 || segments[0].Text != "" {
			t.Errorf("expected a single empty segment, got %+v", segments)
		}
	})

	t.Run("GapsAreFilled", func(t *testing.T) {
		phone := strings.Index(text, "555")
		mail := strings.Index(text, "bob@")
		anns := []annotation.Annotation{
			span("b", mail, mail+len("bob@example.com")),
			span("a", phone, phone+len("555-0100")),
		}

		segments := Resolve(doc, anns)
		if len(segments) != 5 {
			t.Fatalf("expected 5 segments, got %d: %+v", len(segments), segments)
		}
		if segments[1].Annotation == nil || segments[1].Annotation.ID != "a" {
			t.Errorf("expected phone annotation second, got %+v", segments[1])
		}
		if segments[3].Text != "bob@example.com" {
			t.Errorf("expected email segment, got %q", segments[3].Text)
		}
		if join(segments) != text {
			t.Errorf("segments do not reassemble the text")
		}
	})

	t.Run("LongerWinsOnEqualStart", func(t *testing.T) {
		anns := []annotation.Annotation{span("short", 5, 8), span("long", 5, 12)}
		segments := Resolve(doc, anns)

		var kept []string
		for _, s := range segments {
			if s.IsHighlight() {
				kept = append(kept, s.Annotation.ID)
			}
		}
		if len(kept) != 1 || kept[0] != "long" {
			t.Errorf("expected only the length-7 annotation, got %v", kept)
		}
	})

	t.Run("FirstStartingWins", func(t *testing.T) {
		anns := []annotation.Annotation{span("later", 6, 15), span("first", 2, 9)}
		kept, dropped := Partition(doc, anns)
		if len(kept) != 1 || kept[0].ID != "first" {
			t.Errorf("expected 'first' kept, got %+v", kept)
		}
		if len(dropped) != 1 || dropped[0].ID != "later" {
			t.Errorf("expected 'later' dropped, got %+v", dropped)
		}
	})

	t.Run("AdjacentSpansBothKept", func(t *testing.T) {
		kept, _ := Partition(doc, []annotation.Annotation{span("a", 0, 4), span("b", 4, 7)})
		if len(kept) != 2 {
			t.Errorf("adjacent spans should both render, got %d", len(kept))
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		anns := []annotation.Annotation{span("z", 20, 25), span("y", 1, 3)}
		Resolve(doc, anns)
		if anns[0].ID != "z" {
			t.Error("Resolve reordered the caller's slice")
		}
	})

	t.Run("OutOfRangeIsClamped", func(t *testing.T) {
		anns := []annotation.Annotation{span("tail", doc.Len()-5, doc.Len()+40), span("gone", doc.Len()+1, doc.Len()+9)}
		segments := Resolve(doc, anns)
		if join(segments) != text {
			t.Fatalf("segments do not reassemble the text")
		}
		last := segments[len(segments)-1]
		if last.Annotation == nil || last.Annotation.ID != "tail" || last.End != doc.Len() {
			t.Errorf("expected clamped tail annotation, got %+v", last)
		}
	})
}

func TestResolveReassemblesRandomInput(t *testing.T) {
	text := "Héllo 😀 wörld, account 12345678 at PST on Dec 3"
	doc := annotation.NewDocument("rand", text)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := rng.Intn(8)
		anns := make([]annotation.Annotation, n)
		for j := range anns {
			start := rng.Intn(doc.Len()+4) - 2
			end := start + rng.Intn(12) - 1
			anns[j] = span("r", start, end)
		}

		segments := Resolve(doc, anns)
		if got := join(segments); got != text {
			t.Fatalf("iteration %d: reassembled %q, want %q (input %+v)", i, got, text, anns)
		}
		for k := 1; k < len(segments); k++ {
			if segments[k].Start != segments[k-1].End {
				t.Fatalf("iteration %d: gap or overlap between segments %d and %d", i, k-1, k)
			}
		}
	}
}

func TestSortForList(t *testing.T) {
	anns := []annotation.Annotation{span("c", 9, 10), span("a", 1, 20), span("b", 1, 3)}
	sorted := SortForList(anns)
	if len(sorted) != 3 {
		t.Fatalf("list view must keep every annotation, got %d", len(sorted))
	}
	if sorted[0].ID != "a" || sorted[1].ID != "b" || sorted[2].ID != "c" {
		t.Errorf("unexpected order: %s %s %s", sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
}
