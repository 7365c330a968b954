// Package version persists frozen annotation snapshots and compares them.
package version

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raaihank/annotext/internal/annotation"
)

// ErrNotFound is returned when a version id or document has no versions
var ErrNotFound = errors.New("version not found")

// Source is the workflow milestone that produced a version
type Source string

const (
	SourceAnnotatorDraft      Source = "annotator_draft"
	SourceAnnotatorSubmission Source = "annotator_submission"
	SourceQAReview            Source = "qa_review"
)

// Valid reports whether the source is known
func (s Source) Valid() bool {
	switch s {
	case SourceAnnotatorDraft, SourceAnnotatorSubmission, SourceQAReview:
		return true
	}
	return false
}

// Version is an immutable snapshot of one document's annotations
type Version struct {
	ID          string                  `json:"id" db:"id"`
	DocumentID  string                  `json:"documentId" db:"document_id"`
	Number      int                     `json:"versionNumber" db:"number"`
	Source      Source                  `json:"source" db:"source"`
	Author      string                  `json:"author" db:"author"`
	CreatedAt   time.Time               `json:"createdAt" db:"created_at"`
	Annotations []annotation.Annotation `json:"annotations" db:"-"`
}

// Summary is the list-view form of a version
type Summary struct {
	ID              string    `json:"id" db:"id"`
	DocumentID      string    `json:"documentId" db:"document_id"`
	Number          int       `json:"versionNumber" db:"number"`
	Source          Source    `json:"source" db:"source"`
	Author          string    `json:"author" db:"author"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	AnnotationCount int       `json:"annotationCount" db:"annotation_count"`
}

// Summarize returns the list-view form of v
func (v *Version) Summarize() Summary {
	return Summary{
		ID:              v.ID,
		DocumentID:      v.DocumentID,
		Number:          v.Number,
		Source:          v.Source,
		Author:          v.Author,
		CreatedAt:       v.CreatedAt,
		AnnotationCount: len(v.Annotations),
	}
}

// Draft is a working set handed over for persistence. The store assigns
// the id, number and timestamp.
type Draft struct {
	DocumentID     string                  `json:"documentId"`
	DocumentLength int                     `json:"documentLength"`
	Source         Source                  `json:"source"`
	Author         string                  `json:"author"`
	Annotations    []annotation.Annotation `json:"annotations"`
}

// Validate checks a draft before it is frozen. Annotation ids must be unique
// within the version and every span must lie inside the document.
func (d Draft) Validate() error {
	if d.DocumentID == "" {
		return &annotation.ValidationError{Field: "documentId", Message: "must not be empty"}
	}
	if !d.Source.Valid() {
		return &annotation.ValidationError{Field: "source", Value: string(d.Source), Message: "must be annotator_draft, annotator_submission or qa_review"}
	}
	if d.DocumentLength < 0 {
		return &annotation.ValidationError{Field: "documentLength", Value: d.DocumentLength, Message: "must not be negative"}
	}

	seen := make(map[string]struct{}, len(d.Annotations))
	for _, ann := range d.Annotations {
		if err := annotation.CheckBounds(ann.StartOffset, ann.EndOffset, d.DocumentLength); err != nil {
			return fmt.Errorf("annotation %s: %w", ann.ID, err)
		}
		if ann.ID == "" {
			continue
		}
		if _, dup := seen[ann.ID]; dup {
			return &annotation.ValidationError{Field: "annotationId", Value: ann.ID, Message: "duplicated within the version"}
		}
		seen[ann.ID] = struct{}{}
	}
	return nil
}

// Store is the append-only version history
type Store interface {
	// Append freezes a draft into the next version of its document
	Append(ctx context.Context, draft Draft) (*Version, error)
	// Get returns a version by id
	Get(ctx context.Context, id string) (*Version, error)
	// List returns the versions of a document, oldest first
	List(ctx context.Context, documentID string) ([]Summary, error)
	// Latest returns the newest version of a document
	Latest(ctx context.Context, documentID string) (*Version, error)
	Close() error
}

// PostgresConfig contains database configuration
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig contains Redis snapshot cache configuration
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL       string        `yaml:"redis_url" mapstructure:"redis_url"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DefaultTTL     time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix      string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// freeze builds the stored form of a draft. Missing annotation ids are
// minted so every annotation in a version is addressable.
func freeze(draft Draft, id string, number int, now time.Time, newID func() string) *Version {
	anns := annotation.Clone(draft.Annotations)
	if anns == nil {
		anns = []annotation.Annotation{}
	}
	for i := range anns {
		if anns[i].ID == "" {
			anns[i].ID = newID()
		}
	}
	return &Version{
		ID:          id,
		DocumentID:  draft.DocumentID,
		Number:      number,
		Source:      draft.Source,
		Author:      draft.Author,
		CreatedAt:   now.UTC(),
		Annotations: anns,
	}
}

func clone(v *Version) *Version {
	cp := *v
	cp.Annotations = annotation.Clone(v.Annotations)
	return &cp
}
