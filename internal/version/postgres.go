package version

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
)

const schema = `
CREATE TABLE IF NOT EXISTS annotation_versions (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	number      INTEGER NOT NULL,
	source      TEXT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	annotations JSONB NOT NULL,
	UNIQUE (document_id, number)
)`

// PostgresStore persists versions in PostgreSQL. Each version is one row
// with its annotations held as a JSONB array.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// versionRow is the database form of a version
type versionRow struct {
	ID          string    `db:"id"`
	DocumentID  string    `db:"document_id"`
	Number      int       `db:"number"`
	Source      string    `db:"source"`
	Author      string    `db:"author"`
	CreatedAt   time.Time `db:"created_at"`
	Annotations []byte    `db:"annotations"`
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists
func NewPostgresStore(config *PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Version store initialized successfully",
		zap.String("database_url", maskURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the connection and creates the versions table
func (s *PostgresStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append freezes a draft into the next version of its document. Numbering
// is serialized per document with a transaction-scoped advisory lock.
func (s *PostgresStore) Append(ctx context.Context, draft Draft) (*Version, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", draft.DocumentID); err != nil {
		return nil, fmt.Errorf("failed to lock document history: %w", err)
	}

	var number int
	if err := tx.GetContext(ctx, &number,
		"SELECT COALESCE(MAX(number), 0) + 1 FROM annotation_versions WHERE document_id = $1",
		draft.DocumentID); err != nil {
		return nil, fmt.Errorf("failed to allocate version number: %w", err)
	}

	v := freeze(draft, uuid.NewString(), number, time.Now(), uuid.NewString)
	row, err := toRow(v)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO annotation_versions (id, document_id, number, source, author, created_at, annotations)
		VALUES (:id, :document_id, :number, :source, :author, :created_at, :annotations)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		s.logger.Error("Failed to insert version",
			zap.Error(err),
			zap.String("document_id", draft.DocumentID),
			zap.Int("number", number))
		return nil, fmt.Errorf("failed to insert version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	s.logger.Info("Version saved",
		zap.String("version_id", v.ID),
		zap.String("document_id", v.DocumentID),
		zap.Int("number", v.Number),
		zap.String("source", string(v.Source)),
		zap.Int("annotations", len(v.Annotations)))

	return v, nil
}

// Get returns a version by id
func (s *PostgresStore) Get(ctx context.Context, id string) (*Version, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, document_id, number, source, author, created_at, annotations
		FROM annotation_versions
		WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return row.toVersion()
}

// List returns the versions of a document, oldest first
func (s *PostgresStore) List(ctx context.Context, documentID string) ([]Summary, error) {
	summaries := []Summary{}
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT id, document_id, number, source, author, created_at,
			jsonb_array_length(annotations) AS annotation_count
		FROM annotation_versions
		WHERE document_id = $1
		ORDER BY number`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return summaries, nil
}

// Latest returns the newest version of a document
func (s *PostgresStore) Latest(ctx context.Context, documentID string) (*Version, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, document_id, number, source, author, created_at, annotations
		FROM annotation_versions
		WHERE document_id = $1
		ORDER BY number DESC
		LIMIT 1`, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return row.toVersion()
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toRow(v *Version) (*versionRow, error) {
	data, err := json.Marshal(v.Annotations)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotations: %w", err)
	}
	return &versionRow{
		ID:          v.ID,
		DocumentID:  v.DocumentID,
		Number:      v.Number,
		Source:      string(v.Source),
		Author:      v.Author,
		CreatedAt:   v.CreatedAt,
		Annotations: data,
	}, nil
}

func (r *versionRow) toVersion() (*Version, error) {
	anns := []annotation.Annotation{}
	if err := json.Unmarshal(r.Annotations, &anns); err != nil {
		return nil, fmt.Errorf("failed to decode annotations of version %s: %w", r.ID, err)
	}
	return &Version{
		ID:          r.ID,
		DocumentID:  r.DocumentID,
		Number:      r.Number,
		Source:      Source(r.Source),
		Author:      r.Author,
		CreatedAt:   r.CreatedAt,
		Annotations: anns,
	}, nil
}

// maskURL masks the password of a connection URL for logging
func maskURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
