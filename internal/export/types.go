// Package export runs batch de-identification over document dumps.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/annotext/internal/annotation"
)

// Job is one document to de-identify, read from a JSONL dump
type Job struct {
	DocumentID  string                  `json:"document_id"`
	Text        string                  `json:"text"`
	Annotations []annotation.Annotation `json:"annotations"`
}

// Record is the de-identified output for one job
type Record struct {
	DocumentID   string `csv:"document_id" parquet:"document_id" json:"document_id"`
	Text         string `csv:"text" parquet:"text" json:"text"`
	Tags         string `csv:"tags" parquet:"tags" json:"tags"`
	Replacements int    `csv:"replacements" parquet:"replacements" json:"replacements"`
	Skipped      int    `csv:"skipped" parquet:"skipped" json:"skipped"`
}

// ProcessingResult summarizes an export run
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	SkippedSpans    int64         `json:"skipped_spans"`
	Duration        time.Duration `json:"duration"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains export pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`
	MaxTextLength  int  `yaml:"max_text_length" mapstructure:"max_text_length"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
	// Format is empty to pick the format from the output file's extension
	Format string `yaml:"format" mapstructure:"format"`
}

// FileFormat represents supported output formats
type FileFormat string

const (
	FormatJSONL   FileFormat = "jsonl"
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
)

// ParseFileFormat validates a format name
func ParseFileFormat(s string) (FileFormat, bool) {
	switch f := FileFormat(strings.ToLower(s)); f {
	case FormatJSONL, FormatCSV, FormatParquet:
		return f, true
	case "json":
		return FormatJSONL, true
	}
	return "", false
}

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return FormatJSONL
	}
}

// ResolveFileFormat picks the output format: an explicit name wins, and an
// empty name falls back to the output file's extension.
func ResolveFileFormat(name, outputPath string) (FileFormat, error) {
	if name == "" {
		return DetectFileFormat(outputPath), nil
	}
	f, ok := ParseFileFormat(name)
	if !ok {
		return "", fmt.Errorf("unsupported output format: %s", name)
	}
	return f, nil
}
