package annotation

import (
	"strings"
	"testing"
)

func TestCheckBounds(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		length     int
		wantErr    bool
	}{
		{"whole text", 0, 10, 10, false},
		{"single unit", 3, 4, 10, false},
		{"negative start", -1, 4, 10, true},
		{"empty span", 4, 4, 10, true},
		{"inverted span", 5, 4, 10, true},
		{"end past length", 5, 11, 10, true},
		{"empty document", 0, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBounds(tt.start, tt.end, tt.length)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckBounds(%d, %d, %d) error = %v, wantErr %v", tt.start, tt.end, tt.length, err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestDocument(t *testing.T) {
	t.Run("ASCII", func(t *testing.T) {
		doc := NewDocument("d1", "A secret B")
		if doc.Len() != 10 {
			t.Fatalf("expected length 10, got %d", doc.Len())
		}
		if got := doc.Slice(2, 8); got != "secret" {
			t.Errorf("expected 'secret', got %q", got)
		}
	})

	t.Run("UTF16Units", func(t *testing.T) {
		// "é" is one unit, the emoji is a surrogate pair
		doc := NewDocument("d2", "é😀x")
		if doc.Len() != 4 {
			t.Fatalf("expected 4 UTF-16 units, got %d", doc.Len())
		}
		if got := doc.Slice(1, 3); got != "😀" {
			t.Errorf("expected emoji, got %q", got)
		}
		if doc.IsBoundary(2) {
			t.Error("offset 2 is inside a surrogate pair")
		}
		if !doc.IsBoundary(3) {
			t.Error("offset 3 should be a boundary")
		}
	})

	t.Run("ValidateSpanRejectsSplitPair", func(t *testing.T) {
		doc := NewDocument("d3", "a😀b")
		if err := doc.ValidateSpan(0, 2); err == nil {
			t.Error("expected error for span ending inside a surrogate pair")
		}
		if err := doc.ValidateSpan(1, 3); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("UnitOffset", func(t *testing.T) {
		text := "é😀x"
		doc := NewDocument("d4", text)
		if got := doc.UnitOffset(strings.Index(text, "x")); got != 3 {
			t.Errorf("expected unit offset 3, got %d", got)
		}
		if got := doc.UnitOffset(len(text) + 5); got != doc.Len() {
			t.Errorf("expected clamp to %d, got %d", doc.Len(), got)
		}
	})
}

func TestCatalog(t *testing.T) {
	t.Run("DefaultCatalog", func(t *testing.T) {
		catalog := MustDefaultCatalog()
		cls, ok := catalog.ByName("account_number")
		if !ok {
			t.Fatal("account_number missing from default catalog")
		}
		if cls.DisplayLabel != "Account Number" {
			t.Errorf("unexpected label %q", cls.DisplayLabel)
		}
		if len(catalog.List()) != len(DefaultClasses()) {
			t.Errorf("expected %d classes, got %d", len(DefaultClasses()), len(catalog.List()))
		}
	})

	t.Run("UnknownClass", func(t *testing.T) {
		catalog := MustDefaultCatalog()
		_, err := catalog.Lookup("nope")
		if !IsValidation(err) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("SoftDelete", func(t *testing.T) {
		catalog := MustDefaultCatalog()
		if err := catalog.SoftDelete("phone"); err != nil {
			t.Fatalf("SoftDelete failed: %v", err)
		}
		if _, err := catalog.Assignable("phone"); err == nil {
			t.Error("deleted class should not be assignable")
		}
		cls, err := catalog.Lookup("phone")
		if err != nil {
			t.Fatalf("deleted class should still resolve: %v", err)
		}
		if !cls.Deleted {
			t.Error("class not marked deleted")
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := NewCatalog(Class{ID: "a", Name: "email"}, Class{ID: "b", Name: "email"})
		if err == nil {
			t.Error("expected duplicate name error")
		}
	})

	t.Run("Stamp", func(t *testing.T) {
		var ann Annotation
		Class{ID: "c1", Name: "email", DisplayLabel: "Email", Color: "#fff"}.Stamp(&ann)
		if ann.ClassID != "c1" || ann.ClassName != "email" || ann.ClassColor != "#fff" {
			t.Errorf("stamp did not copy class fields: %+v", ann)
		}
	})
}

func TestSpanOverlaps(t *testing.T) {
	a := Span{Start: 0, End: 5}
	if !a.Overlaps(Span{Start: 4, End: 8}) {
		t.Error("expected overlap")
	}
	if a.Overlaps(Span{Start: 5, End: 8}) {
		t.Error("adjacent spans must not overlap")
	}
}
