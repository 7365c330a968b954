package workset

import (
	"github.com/raaihank/annotext/internal/annotation"
)

// QAStatus is a reviewer's verdict on one annotation during QA
type QAStatus string

const (
	StatusPending QAStatus = "pending"
	StatusOK      QAStatus = "ok"
	StatusFlagged QAStatus = "flagged"
	StatusQAAdded QAStatus = "qa_added"
	StatusDeleted QAStatus = "deleted"
)

// Valid reports whether the status is known
func (q QAStatus) Valid() bool {
	switch q {
	case StatusPending, StatusOK, StatusFlagged, StatusQAAdded, StatusDeleted:
		return true
	}
	return false
}

// SetStatus records a QA verdict. It never changes the span itself.
func (s *Session) SetStatus(id string, status QAStatus) error {
	if !status.Valid() {
		return &annotation.ValidationError{Field: "status", Value: string(status), Message: "unknown QA status"}
	}
	if _, err := s.indexOf(id); err != nil {
		return err
	}
	s.statuses[id] = status
	// Linking skips deleted annotations, so open proposals must be re-planned
	s.generation++
	return nil
}

// Status returns the QA verdict for an annotation, pending by default
func (s *Session) Status(id string) QAStatus {
	if status, ok := s.statuses[id]; ok {
		return status
	}
	return StatusPending
}

// StatusCounts tallies the QA verdicts across the working set
func (s *Session) StatusCounts() map[QAStatus]int {
	counts := make(map[QAStatus]int)
	for _, ann := range s.annotations {
		counts[s.Status(ann.ID)]++
	}
	return counts
}
