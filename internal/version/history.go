package version

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/versiondiff"
)

// Comparison is the diff between two versions of one document
type Comparison struct {
	Before Summary            `json:"before"`
	After  Summary            `json:"after"`
	Diff   versiondiff.Result `json:"diff"`
}

// History serves the version history view
type History struct {
	store  Store
	logger *zap.Logger
}

// NewHistory creates a history reader over store
func NewHistory(store Store, logger *zap.Logger) *History {
	return &History{store: store, logger: logger}
}

// Compare diffs two persisted versions. Both must belong to the same
// document; offsets are meaningless across documents.
func (h *History) Compare(ctx context.Context, beforeID, afterID string) (*Comparison, error) {
	before, err := h.store.Get(ctx, beforeID)
	if err != nil {
		return nil, fmt.Errorf("before version %s: %w", beforeID, err)
	}
	after, err := h.store.Get(ctx, afterID)
	if err != nil {
		return nil, fmt.Errorf("after version %s: %w", afterID, err)
	}
	if before.DocumentID != after.DocumentID {
		return nil, &annotation.ValidationError{
			Field:   "versions",
			Value:   fmt.Sprintf("%s,%s", before.DocumentID, after.DocumentID),
			Message: "versions belong to different documents",
		}
	}

	result := versiondiff.Compute(before.Annotations, after.Annotations)

	h.logger.Debug("Versions compared",
		zap.String("document_id", before.DocumentID),
		zap.Int("before", before.Number),
		zap.Int("after", after.Number),
		zap.Int("added", result.Summary.Added),
		zap.Int("removed", result.Summary.Removed),
		zap.Int("modified", result.Summary.Modified))

	return &Comparison{
		Before: before.Summarize(),
		After:  after.Summarize(),
		Diff:   result,
	}, nil
}

// CompareWithPrevious diffs a version against the one before it. The first
// version of a document is compared with an empty snapshot.
func (h *History) CompareWithPrevious(ctx context.Context, id string) (*Comparison, error) {
	current, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("version %s: %w", id, err)
	}

	summaries, err := h.store.List(ctx, current.DocumentID)
	if err != nil {
		return nil, err
	}

	var previous *Summary
	for i := range summaries {
		if summaries[i].Number == current.Number-1 {
			previous = &summaries[i]
			break
		}
	}
	if previous == nil {
		return &Comparison{
			After: current.Summarize(),
			Diff:  versiondiff.Compute(nil, current.Annotations),
		}, nil
	}
	return h.Compare(ctx, previous.ID, current.ID)
}

// List returns the versions of a document
func (h *History) List(ctx context.Context, documentID string) ([]Summary, error) {
	return h.store.List(ctx, documentID)
}
