package tagging

import (
	"fmt"

	"github.com/raaihank/annotext/internal/annotation"
)

// Policy holds the workspace settings that shape tagging
type Policy struct {
	// LinkDuplicates enables the same-value check on new selections
	LinkDuplicates bool `yaml:"link_duplicates" mapstructure:"link_duplicates"`
	// MinSelectionLength is the shortest selection, in UTF-16 units, a
	// reviewer may annotate
	MinSelectionLength int `yaml:"min_selection_length" mapstructure:"min_selection_length"`
}

// Decision is the reviewer's answer when a selection duplicates tagged text
type Decision int

const (
	// DecisionNewTag mints a fresh tag for the selected class
	DecisionNewTag Decision = iota
	// DecisionUseExisting reuses the tag and class of the matched annotation
	DecisionUseExisting
	// DecisionCancel discards the selection
	DecisionCancel
)

var decisionNames = map[Decision]string{
	DecisionNewTag:      "new_tag",
	DecisionUseExisting: "use_existing",
	DecisionCancel:      "cancel",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// ParseDecision parses the wire name of a decision
func ParseDecision(s string) (Decision, error) {
	for d, name := range decisionNames {
		if name == s {
			return d, nil
		}
	}
	return 0, &annotation.ValidationError{Field: "decision", Value: s, Message: "must be new_tag, use_existing or cancel"}
}

// Plan is the tagging outcome prepared for a new selection before the
// reviewer commits it.
type Plan struct {
	ClassID   string `json:"classId"`
	ClassName string `json:"className"`
	// FreshTag is the tag a new identity would receive
	FreshTag string `json:"freshTag"`
	// Existing is set when linking is enabled and the text is already tagged
	Existing *Match `json:"existing,omitempty"`
}

// NeedsDecision reports whether the caller must ask the reviewer before
// committing.
func (p Plan) NeedsDecision() bool {
	return p.Existing != nil
}

// PlanFor prepares tagging for selectedText assigned to class
func PlanFor(annotations []annotation.Annotation, class annotation.Class, selectedText string, policy Policy) Plan {
	plan := Plan{
		ClassID:   class.ID,
		ClassName: class.Name,
		FreshTag:  FormatTag(class.Name, NextSequenceNumber(annotations, class.ID)),
	}
	if !policy.LinkDuplicates {
		return plan
	}
	if match, ok := FindExistingTagForText(annotations, selectedText); ok {
		plan.Existing = &match
	}
	return plan
}

// Outcome is the tag and class a committed selection ends up with
type Outcome struct {
	Tag     string
	ClassID string
	Linked  bool
}

// Resolve applies a decision. The boolean is false when the selection is
// cancelled.
func (p Plan) Resolve(d Decision) (Outcome, bool, error) {
	switch d {
	case DecisionCancel:
		return Outcome{}, false, nil
	case DecisionUseExisting:
		if p.Existing == nil {
			return Outcome{}, false, &annotation.ConflictError{Message: "no tagged annotation with the same text to link to"}
		}
		return Outcome{Tag: p.Existing.Tag, ClassID: p.Existing.ClassID, Linked: true}, true, nil
	case DecisionNewTag:
		return Outcome{Tag: p.FreshTag, ClassID: p.ClassID}, true, nil
	default:
		return Outcome{}, false, &annotation.ValidationError{Field: "decision", Value: int(d), Message: "unknown decision"}
	}
}
