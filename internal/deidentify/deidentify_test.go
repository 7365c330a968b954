package deidentify

import (
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/raaihank/annotext/internal/annotation"
)

func ann(id string, start, end int, tag string) annotation.Annotation {
	return annotation.Annotation{ID: id, StartOffset: start, EndOffset: end, ClassName: "word", Tag: tag}
}

func TestDeidentify(t *testing.T) {
	t.Run("SingleSpan", func(t *testing.T) {
		doc := annotation.NewDocument("d", "A secret B")
		got, err := Deidentify(doc, []annotation.Annotation{ann("1", 2, 8, "[word_1]")})
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if got != "A [word_1] B" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("TwoSpansKeepPrefixAndSuffix", func(t *testing.T) {
		text := "From: bob@example.com, phone 555-0100, thanks"
		doc := annotation.NewDocument("d", text)
		mail := strings.Index(text, "bob@")
		phone := strings.Index(text, "555")
		anns := []annotation.Annotation{
			ann("m", mail, mail+len("bob@example.com"), "[email_1]"),
			ann("p", phone, phone+len("555-0100"), "[phone_1]"),
		}

		got, err := Deidentify(doc, anns)
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		want := "From: [email_1], phone [phone_1], thanks"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("OrderIndependent", func(t *testing.T) {
		doc := annotation.NewDocument("d", "alpha beta gamma delta")
		forward := []annotation.Annotation{
			ann("a", 0, 5, "[w_1]"),
			ann("b", 6, 10, "[a_much_longer_tag_2]"),
			ann("c", 17, 22, "[x]"),
		}
		reversed := []annotation.Annotation{forward[2], forward[1], forward[0]}

		first, err := Deidentify(doc, forward)
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		second, err := Deidentify(doc, reversed)
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if first != second {
			t.Errorf("output depends on input order: %q vs %q", first, second)
		}
		if first != "[w_1] [a_much_longer_tag_2] gamma [x]" {
			t.Errorf("unexpected output %q", first)
		}
	})

	t.Run("MalformedTagIsWrapped", func(t *testing.T) {
		doc := annotation.NewDocument("d", "call 555")
		got, err := Deidentify(doc, []annotation.Annotation{ann("1", 5, 8, "phone_1")})
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if got != "call [phone_1]" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("MissingTagFallsBackToClassName", func(t *testing.T) {
		doc := annotation.NewDocument("d", "call 555")
		got, _ := Deidentify(doc, []annotation.Annotation{ann("1", 5, 8, "")})
		if got != "call [word]" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("InvalidSpanRejected", func(t *testing.T) {
		doc := annotation.NewDocument("d", "short")
		_, err := Deidentify(doc, []annotation.Annotation{ann("1", 2, 40, "[x_1]")})
		if !annotation.IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("SurrogatePairsAreCountedInUnits", func(t *testing.T) {
		doc := annotation.NewDocument("d", "😀 Zoë 😀")
		// "Zoë" starts after the emoji (2 units) and a space
		got, err := Deidentify(doc, []annotation.Annotation{ann("1", 3, 6, "[name_1]")})
		if err != nil {
			t.Fatalf("Deidentify failed: %v", err)
		}
		if got != "😀 [name_1] 😀" {
			t.Errorf("got %q", got)
		}
	})
}

func TestTransformReplacements(t *testing.T) {
	text := "Dear Ann, your account 12345678 is ready. Ann"
	doc := annotation.NewDocument("d", text)
	acct := strings.Index(text, "12345678")
	anns := []annotation.Annotation{
		ann("tail", 42, 45, "[first_name_person_1]"),
		ann("name", 5, 8, "[first_name_person_1]"),
		ann("acct", acct, acct+8, "[account_number_1]"),
	}

	result, err := Transform(doc, anns)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if len(result.Replacements) != 3 {
		t.Fatalf("expected 3 replacements, got %d", len(result.Replacements))
	}

	out := utf16.Encode([]rune(result.Text))
	for _, r := range result.Replacements {
		got := string(utf16.Decode(out[r.Output.Start:r.Output.End]))
		if got != r.Tag {
			t.Errorf("replacement %s: output span holds %q, want %q", r.AnnotationID, got, r.Tag)
		}
	}
	if result.Replacements[0].AnnotationID != "name" {
		t.Errorf("replacements should be in document order, got %s first", result.Replacements[0].AnnotationID)
	}
}

func TestTransformSkipsOverlaps(t *testing.T) {
	doc := annotation.NewDocument("d", "John Smith called")
	anns := []annotation.Annotation{
		ann("first", 0, 4, "[first_name_person_1]"),
		ann("full", 0, 10, "[full_name_person_1]"),
	}

	result, err := Transform(doc, anns)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if result.Text != "[full_name_person_1] called" {
		t.Errorf("got %q", result.Text)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].ID != "first" {
		t.Errorf("expected 'first' skipped, got %+v", result.Skipped)
	}
}
