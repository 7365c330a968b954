// Package versiondiff classifies the annotations of two snapshots of the
// same document as added, removed, modified or unchanged.
//
// Annotation ids are re-minted on every save, so snapshots are matched on
// offsets alone. An entity that moved to different offsets therefore shows
// up as one removal plus one addition.
package versiondiff

import (
	"sort"

	"github.com/raaihank/annotext/internal/annotation"
)

// Kind is the classification of one diff entry
type Kind string

const (
	Added     Kind = "added"
	Removed   Kind = "removed"
	Modified  Kind = "modified"
	Unchanged Kind = "unchanged"
)

// Key identifies an annotation across snapshots
type Key struct {
	Start int
	End   int
}

// KeyOf returns the identity key of an annotation
func KeyOf(a annotation.Annotation) Key {
	return Key{Start: a.StartOffset, End: a.EndOffset}
}

// Entry is one classified annotation. Annotation is the current value: the
// "after" side, or the "before" side for removals. Previous is only set for
// modifications.
type Entry struct {
	Kind       Kind                   `json:"type"`
	Annotation annotation.Annotation  `json:"annotation"`
	Previous   *annotation.Annotation `json:"previousAnnotation,omitempty"`
}

// Summary counts entries per kind
type Summary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Result holds the entries of a diff bucketed by kind, each bucket ordered
// by start offset.
type Result struct {
	Added     []Entry `json:"added"`
	Removed   []Entry `json:"removed"`
	Modified  []Entry `json:"modified"`
	Unchanged []Entry `json:"unchanged"`
	Summary   Summary `json:"summary"`
}

// Compute diffs before against after. When several annotations share the
// same offsets they are paired in list order.
func Compute(before, after []annotation.Annotation) Result {
	pending := make(map[Key][]int, len(after))
	for i, a := range after {
		k := KeyOf(a)
		pending[k] = append(pending[k], i)
	}

	var result Result
	matched := make([]bool, len(after))
	for _, prev := range before {
		k := KeyOf(prev)
		candidates := pending[k]
		if len(candidates) == 0 {
			result.Removed = append(result.Removed, Entry{Kind: Removed, Annotation: prev})
			continue
		}

		idx := candidates[0]
		pending[k] = candidates[1:]
		matched[idx] = true
		cur := after[idx]

		if cur.ClassID == prev.ClassID && cur.Tag == prev.Tag {
			result.Unchanged = append(result.Unchanged, Entry{Kind: Unchanged, Annotation: cur})
			continue
		}
		previous := prev
		result.Modified = append(result.Modified, Entry{Kind: Modified, Annotation: cur, Previous: &previous})
	}

	for i, cur := range after {
		if !matched[i] {
			result.Added = append(result.Added, Entry{Kind: Added, Annotation: cur})
		}
	}

	for _, bucket := range [][]Entry{result.Added, result.Removed, result.Modified, result.Unchanged} {
		sortByStart(bucket)
	}

	result.Summary = Summary{
		Added:     len(result.Added),
		Removed:   len(result.Removed),
		Modified:  len(result.Modified),
		Unchanged: len(result.Unchanged),
	}
	return result
}

// Entries returns every entry ordered by start offset for presentation
func (r Result) Entries() []Entry {
	all := make([]Entry, 0, len(r.Added)+len(r.Removed)+len(r.Modified)+len(r.Unchanged))
	all = append(all, r.Added...)
	all = append(all, r.Removed...)
	all = append(all, r.Modified...)
	all = append(all, r.Unchanged...)
	sortByStart(all)
	return all
}

// HasChanges reports whether anything was added, removed or modified
func (r Result) HasChanges() bool {
	return r.Summary.Added+r.Summary.Removed+r.Summary.Modified > 0
}

func sortByStart(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Annotation.StartOffset < entries[j].Annotation.StartOffset
	})
}
