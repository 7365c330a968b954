// Package workset holds the mutable annotation list one reviewer edits for
// one document before it is frozen into a version.
package workset

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/deidentify"
	"github.com/raaihank/annotext/internal/overlap"
	"github.com/raaihank/annotext/internal/tagging"
	"github.com/raaihank/annotext/internal/version"
)

// Selection is a text range reported by the host's selection API
type Selection struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text,omitempty"`
}

// Proposal is a validated selection waiting for the reviewer's decision
type Proposal struct {
	Selection  Selection    `json:"selection"`
	Text       string       `json:"-"`
	Plan       tagging.Plan `json:"plan"`
	generation int
}

// NeedsDecision reports whether the reviewer must choose between reusing an
// existing tag and minting a new one.
func (p *Proposal) NeedsDecision() bool {
	return p.Plan.NeedsDecision()
}

// Session is a reviewer's working set. It is owned by a single reviewer and
// is not safe for concurrent use.
type Session struct {
	doc         *annotation.Document
	catalog     *annotation.Catalog
	policy      tagging.Policy
	logger      *zap.Logger
	annotations []annotation.Annotation
	statuses    map[string]QAStatus
	generation  int
	newID       func() string
}

// New opens a working set over doc, seeded with the annotations of the
// version being edited.
func New(doc *annotation.Document, catalog *annotation.Catalog, policy tagging.Policy, logger *zap.Logger, seed []annotation.Annotation) (*Session, error) {
	for _, ann := range seed {
		if err := doc.ValidateSpan(ann.StartOffset, ann.EndOffset); err != nil {
			return nil, fmt.Errorf("seed annotation %s: %w", ann.ID, err)
		}
	}

	s := &Session{
		doc:         doc,
		catalog:     catalog,
		policy:      policy,
		logger:      logger.With(zap.String("document_id", doc.ID)),
		annotations: annotation.Clone(seed),
		statuses:    make(map[string]QAStatus),
		newID:       uuid.NewString,
	}
	if s.annotations == nil {
		s.annotations = []annotation.Annotation{}
	}

	s.logger.Debug("Working set opened", zap.Int("annotations", len(seed)))
	return s, nil
}

// SetPolicy swaps the tagging policy, e.g. after a config reload
func (s *Session) SetPolicy(policy tagging.Policy) {
	s.policy = policy
}

// Policy returns the active tagging policy
func (s *Session) Policy() tagging.Policy {
	return s.policy
}

// Document returns the document being annotated
func (s *Session) Document() *annotation.Document {
	return s.doc
}

// Annotations returns a copy of the working set
func (s *Session) Annotations() []annotation.Annotation {
	return annotation.Clone(s.annotations)
}

// Len returns the number of annotations in the working set
func (s *Session) Len() int {
	return len(s.annotations)
}

// Propose validates a selection for classID and prepares its tag
func (s *Session) Propose(sel Selection, classID string) (*Proposal, error) {
	text, err := s.validateSelection(sel)
	if err != nil {
		return nil, err
	}
	class, err := s.catalog.Assignable(classID)
	if err != nil {
		return nil, err
	}

	return &Proposal{
		Selection:  sel,
		Text:       text,
		Plan:       s.plan(class, text),
		generation: s.generation,
	}, nil
}

// Commit applies the reviewer's decision to a proposal. A cancelled
// proposal returns a nil annotation and leaves the working set untouched.
func (s *Session) Commit(p *Proposal, decision tagging.Decision) (*annotation.Annotation, error) {
	plan := p.Plan
	if p.generation != s.generation {
		// The set changed since the proposal; fresh tags and matches may be stale
		class, err := s.catalog.Assignable(plan.ClassID)
		if err != nil {
			return nil, err
		}
		plan = s.plan(class, p.Text)
	}

	outcome, ok, err := plan.Resolve(decision)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("Selection cancelled",
			zap.Int("start", p.Selection.Start),
			zap.Int("end", p.Selection.End))
		return nil, nil
	}

	ann := annotation.Annotation{
		ID:           s.newID(),
		StartOffset:  p.Selection.Start,
		EndOffset:    p.Selection.End,
		Tag:          outcome.Tag,
		OriginalText: p.Text,
	}
	if err := s.stampClass(&ann, outcome, plan); err != nil {
		return nil, err
	}

	s.annotations = append(s.annotations, ann)
	s.generation++

	s.logger.Debug("Annotation added",
		zap.String("annotation_id", ann.ID),
		zap.String("class", ann.ClassName),
		zap.String("tag", ann.Tag),
		zap.Bool("linked", outcome.Linked),
		zap.Stringer("decision", decision))

	return &ann, nil
}

// Annotate is the common path: when no same-value decision is required the
// selection is committed with a fresh tag. Otherwise the proposal is
// returned and nothing is committed until Commit is called with a decision.
func (s *Session) Annotate(sel Selection, classID string) (*annotation.Annotation, *Proposal, error) {
	p, err := s.Propose(sel, classID)
	if err != nil {
		return nil, nil, err
	}
	if p.NeedsDecision() {
		return nil, p, nil
	}
	ann, err := s.Commit(p, tagging.DecisionNewTag)
	return ann, nil, err
}

// Remove deletes an annotation from the working set
func (s *Session) Remove(id string) error {
	idx, err := s.indexOf(id)
	if err != nil {
		return err
	}

	removed := s.annotations[idx]
	s.annotations = append(s.annotations[:idx], s.annotations[idx+1:]...)
	delete(s.statuses, id)
	s.generation++

	s.logger.Debug("Annotation removed",
		zap.String("annotation_id", id),
		zap.String("tag", removed.Tag))
	return nil
}

// Reclassify moves an annotation to another class. It receives a fresh tag
// in the new class; its span and original text are kept.
func (s *Session) Reclassify(id, classID string) (*annotation.Annotation, error) {
	idx, err := s.indexOf(id)
	if err != nil {
		return nil, err
	}
	class, err := s.catalog.Assignable(classID)
	if err != nil {
		return nil, err
	}

	ann := s.annotations[idx]
	if ann.ClassID == class.ID {
		return &ann, nil
	}
	ann.Tag = tagging.FormatTag(class.Name, tagging.NextSequenceNumber(s.annotations, class.ID))
	class.Stamp(&ann)

	s.annotations[idx] = ann
	s.generation++
	return &ann, nil
}

// Segments returns the inline highlighting for the current working set
func (s *Session) Segments() []overlap.Segment {
	return overlap.Resolve(s.doc, s.annotations)
}

// Preview de-identifies the document with the current working set
func (s *Session) Preview() (deidentify.Result, error) {
	return deidentify.Transform(s.doc, s.Snapshot())
}

// Snapshot returns the annotations to persist: everything except those QA
// marked deleted.
func (s *Session) Snapshot() []annotation.Annotation {
	out := make([]annotation.Annotation, 0, len(s.annotations))
	for _, ann := range s.annotations {
		if s.statuses[ann.ID] == StatusDeleted {
			continue
		}
		out = append(out, ann)
	}
	return out
}

// Freeze hands the working set to the version store as a draft. The
// session stays editable; a failed save leaves it as it was.
func (s *Session) Freeze(source version.Source, author string) version.Draft {
	return version.Draft{
		DocumentID:     s.doc.ID,
		DocumentLength: s.doc.Len(),
		Source:         source,
		Author:         author,
		Annotations:    overlap.SortForList(s.Snapshot()),
	}
}

// plan prepares tagging for text. Fresh numbers account for every
// annotation in the set, while same-value matches only consider annotations
// that will be persisted: QA-deleted ones are not linked to.
func (s *Session) plan(class annotation.Class, text string) tagging.Plan {
	plan := tagging.PlanFor(s.annotations, class, text, tagging.Policy{MinSelectionLength: s.policy.MinSelectionLength})
	if !s.policy.LinkDuplicates {
		return plan
	}
	if match, ok := tagging.FindExistingTagForText(s.Snapshot(), text); ok {
		plan.Existing = &match
	}
	return plan
}

func (s *Session) validateSelection(sel Selection) (string, error) {
	if err := s.doc.ValidateSpan(sel.Start, sel.End); err != nil {
		return "", err
	}

	text := s.doc.Slice(sel.Start, sel.End)
	if sel.Text != "" && sel.Text != text {
		return "", &annotation.ValidationError{Field: "selection", Message: "selected text does not match the document at these offsets"}
	}
	if strings.TrimSpace(text) == "" {
		return "", &annotation.ValidationError{Field: "selection", Message: "selection is only whitespace"}
	}
	if minLen := s.policy.MinSelectionLength; minLen > 0 && sel.End-sel.Start < minLen {
		return "", &annotation.ValidationError{
			Field:   "selection",
			Value:   sel.End - sel.Start,
			Message: fmt.Sprintf("shorter than the minimum of %d characters", minLen),
		}
	}
	return text, nil
}

// stampClass copies the class snapshot onto a new annotation. A linked
// annotation shares the snapshot of the one it links to, so both render alike
// even if the class was renamed in between.
func (s *Session) stampClass(ann *annotation.Annotation, outcome tagging.Outcome, plan tagging.Plan) error {
	if outcome.Linked && plan.Existing != nil {
		plan.Existing.Stamp(ann)
		return nil
	}

	class, err := s.catalog.Lookup(outcome.ClassID)
	if err != nil {
		return err
	}
	class.Stamp(ann)
	return nil
}

func (s *Session) indexOf(id string) (int, error) {
	for i, ann := range s.annotations {
		if ann.ID == id {
			return i, nil
		}
	}
	return -1, &annotation.ValidationError{Field: "annotationId", Value: id, Message: "not in the working set"}
}
