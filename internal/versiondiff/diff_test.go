package versiondiff

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/deidentify"
)

func ann(id string, start, end int, classID, tag string) annotation.Annotation {
	return annotation.Annotation{ID: id, StartOffset: start, EndOffset: end, ClassID: classID, ClassName: classID, Tag: tag}
}

func baseline() []annotation.Annotation {
	return []annotation.Annotation{
		ann("v1-a", 0, 4, "first_name_person", "[first_name_person_1]"),
		ann("v1-b", 10, 18, "account_number", "[account_number_1]"),
		ann("v1-c", 30, 45, "email", "[email_1]"),
	}
}

// reminted mimics a save: same spans, new ids
func reminted(anns []annotation.Annotation) []annotation.Annotation {
	out := annotation.Clone(anns)
	for i := range out {
		out[i].ID = "v2-" + out[i].ID
	}
	return out
}

func TestCompute(t *testing.T) {
	t.Run("Identical", func(t *testing.T) {
		result := Compute(baseline(), reminted(baseline()))
		want := Summary{Unchanged: 3}
		if diff := cmp.Diff(want, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if result.HasChanges() {
			t.Error("identical snapshots reported changes")
		}
	})

	t.Run("OneAdded", func(t *testing.T) {
		after := append(reminted(baseline()), ann("new", 50, 55, "phone", "[phone_1]"))
		result := Compute(baseline(), after)
		if diff := cmp.Diff(Summary{Added: 1, Unchanged: 3}, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if result.Added[0].Annotation.ID != "new" {
			t.Errorf("unexpected added entry %+v", result.Added[0])
		}
	})

	t.Run("OneRemoved", func(t *testing.T) {
		after := reminted(baseline())[:2]
		result := Compute(baseline(), after)
		if diff := cmp.Diff(Summary{Removed: 1, Unchanged: 2}, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		if result.Removed[0].Annotation.ID != "v1-c" {
			t.Errorf("removed entry should carry the before annotation, got %+v", result.Removed[0])
		}
	})

	t.Run("ClassChanged", func(t *testing.T) {
		after := reminted(baseline())
		after[1].ClassID = "card_number"
		result := Compute(baseline(), after)
		if diff := cmp.Diff(Summary{Modified: 1, Unchanged: 2}, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
		entry := result.Modified[0]
		if entry.Previous == nil || entry.Previous.ClassID != "account_number" {
			t.Errorf("modified entry should carry the previous annotation, got %+v", entry)
		}
		if entry.Annotation.ClassID != "card_number" {
			t.Errorf("modified entry should carry the current annotation, got %+v", entry.Annotation)
		}
	})

	t.Run("TagChanged", func(t *testing.T) {
		after := reminted(baseline())
		after[2].Tag = "[email_2]"
		result := Compute(baseline(), after)
		if result.Summary.Modified != 1 {
			t.Errorf("expected one modification, got %+v", result.Summary)
		}
	})

	t.Run("MovedIsRemoveAndAdd", func(t *testing.T) {
		after := reminted(baseline())
		after[0].StartOffset, after[0].EndOffset = 1, 5
		result := Compute(baseline(), after)
		if diff := cmp.Diff(Summary{Added: 1, Removed: 1, Unchanged: 2}, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("DuplicateKeysPairInOrder", func(t *testing.T) {
		before := []annotation.Annotation{ann("x", 0, 3, "a", "[a_1]"), ann("y", 0, 3, "b", "[b_1]")}
		after := []annotation.Annotation{ann("x2", 0, 3, "a", "[a_1]"), ann("y2", 0, 3, "b", "[b_1]"), ann("z2", 0, 3, "c", "[c_1]")}
		result := Compute(before, after)
		if diff := cmp.Diff(Summary{Added: 1, Unchanged: 2}, result.Summary); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("EntriesOrderedByStart", func(t *testing.T) {
		after := reminted(baseline())[1:]
		after = append(after, ann("new", 5, 8, "phone", "[phone_1]"))
		entries := Compute(baseline(), after).Entries()
		for i := 1; i < len(entries); i++ {
			if entries[i].Annotation.StartOffset < entries[i-1].Annotation.StartOffset {
				t.Fatalf("entries not ordered by start offset: %+v", entries)
			}
		}
		if entries[0].Kind != Removed || entries[1].Kind != Added {
			t.Errorf("unexpected leading kinds: %s, %s", entries[0].Kind, entries[1].Kind)
		}
	})
}

// Every tag substituted into the redacted text of the "after" snapshot must
// be explained by exactly one diff entry.
func TestDeidentifiedTagsAttributeToOneEntry(t *testing.T) {
	text := "John wrote from john@example.com about account 12345678 and 87654321."
	doc := annotation.NewDocument("doc", text)

	before := []annotation.Annotation{
		ann("b1", 0, 4, "first_name_person", "[first_name_person_1]"),
		ann("b2", 16, 32, "email", "[email_1]"),
	}
	after := []annotation.Annotation{
		ann("a1", 0, 4, "full_name_person", "[full_name_person_1]"),
		ann("a2", 16, 32, "email", "[email_1]"),
		ann("a3", 47, 55, "account_number", "[account_number_1]"),
		ann("a4", 60, 68, "account_number", "[account_number_2]"),
	}

	transformed, err := deidentify.Transform(doc, after)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	result := Compute(before, after)

	hits := make(map[string]int)
	for _, entry := range result.Entries() {
		if entry.Kind == Removed {
			continue
		}
		hits[entry.Annotation.ID]++
	}
	for _, r := range transformed.Replacements {
		if hits[r.AnnotationID] != 1 {
			t.Errorf("replacement %s (%s) attributed to %d entries", r.AnnotationID, r.Tag, hits[r.AnnotationID])
		}
	}
	if diff := cmp.Diff(Summary{Added: 2, Modified: 1, Unchanged: 1}, result.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
