package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/annotext/internal/annotation"
	"github.com/raaihank/annotext/internal/deidentify"
)

// Pipeline de-identifies a stream of jobs in batches
type Pipeline struct {
	config *Config
	logger *zap.Logger
	mu     sync.RWMutex
	start  time.Time
	result ProcessingResult
}

// NewPipeline creates a new export pipeline
func NewPipeline(config *Config, logger *zap.Logger) *Pipeline {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.ProgressReport <= 0 {
		config.ProgressReport = 1000
	}
	return &Pipeline{
		config: config,
		logger: logger,
	}
}

// ProcessFile reads JSONL jobs from inputPath and writes records to
// outputPath in the format its extension names
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string, format FileFormat) (*ProcessingResult, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if format == "" {
		format = DetectFileFormat(outputPath)
	}
	w, err := NewWriter(format, out)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Starting export",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize))

	result, err := p.Run(ctx, in, w)
	if closeErr := w.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to finalize output: %w", closeErr)
	}
	return result, err
}

// Run de-identifies every job read from r and hands the records to w.
// A job that fails validation is counted and skipped; the run continues.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, w Writer) (*ProcessingResult, error) {
	p.reset()
	decoder := json.NewDecoder(r)

	line := int64(0)
	readBatch := func() ([]Job, error) {
		var batch []Job
		for len(batch) < p.config.BatchSize {
			var job Job
			err := decoder.Decode(&job)
			if err == io.EOF {
				break
			}
			line++
			if err != nil {
				return batch, fmt.Errorf("record %d: failed to decode job: %w", line, err)
			}
			batch = append(batch, job)
		}
		return batch, nil
	}

	for {
		select {
		case <-ctx.Done():
			return p.snapshot(), ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			// The decoder cannot resync after malformed JSON
			if writeErr := p.processBatch(batch, w); writeErr != nil {
				return p.snapshot(), writeErr
			}
			p.mu.Lock()
			p.result.TotalRecords++
			p.mu.Unlock()
			p.fail(err.Error())
			return p.snapshot(), err
		}
		if len(batch) == 0 {
			break
		}

		if err := p.processBatch(batch, w); err != nil {
			return p.snapshot(), err
		}
	}

	result := p.snapshot()
	p.logger.Info("Export completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("skipped_spans", result.SkippedSpans),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// processBatch transforms a batch and writes the successful records. Only
// writer errors abort the run.
func (p *Pipeline) processBatch(batch []Job, w Writer) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]Record, 0, len(batch))
	for _, job := range batch {
		record, err := p.transform(job)
		if err != nil {
			p.logger.Warn("Job rejected",
				zap.String("document_id", job.DocumentID),
				zap.Error(err))
			p.fail(fmt.Sprintf("%s: %v", job.DocumentID, err))
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		if err := w.Write(records); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.result.TotalRecords += int64(len(batch))
	p.result.ProcessedOK += int64(len(records))
	for _, r := range records {
		p.result.SkippedSpans += int64(r.Skipped)
	}
	total := p.result.TotalRecords
	p.mu.Unlock()

	if total/int64(p.config.ProgressReport) != (total-int64(len(batch)))/int64(p.config.ProgressReport) {
		p.reportProgress()
	}
	return nil
}

func (p *Pipeline) transform(job Job) (Record, error) {
	if err := p.validateJob(job); err != nil {
		return Record{}, err
	}

	doc := annotation.NewDocument(job.DocumentID, job.Text)
	result, err := deidentify.Transform(doc, job.Annotations)
	if err != nil {
		return Record{}, err
	}

	return Record{
		DocumentID:   job.DocumentID,
		Text:         result.Text,
		Tags:         distinctTags(result.Replacements),
		Replacements: len(result.Replacements),
		Skipped:      len(result.Skipped),
	}, nil
}

// validateJob validates a job before it is transformed
func (p *Pipeline) validateJob(job Job) error {
	if !p.config.ValidateData {
		return nil
	}
	if strings.TrimSpace(job.DocumentID) == "" {
		return &annotation.ValidationError{Field: "document_id", Message: "must not be empty"}
	}
	if p.config.MaxTextLength > 0 && len(job.Text) > p.config.MaxTextLength {
		return &annotation.ValidationError{Field: "text", Value: len(job.Text), Message: "exceeds max_text_length"}
	}
	return nil
}

func distinctTags(replacements []deidentify.Replacement) string {
	seen := make(map[string]struct{}, len(replacements))
	tags := make([]string, 0, len(replacements))
	for _, r := range replacements {
		if _, ok := seen[r.Tag]; ok {
			continue
		}
		seen[r.Tag] = struct{}{}
		tags = append(tags, r.Tag)
	}
	return strings.Join(tags, " ")
}

func (p *Pipeline) fail(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.ProcessedFailed++
	p.result.Errors = append(p.result.Errors, msg)
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress() {
	result := p.snapshot()
	rate := float64(result.TotalRecords) / result.Duration.Seconds()

	p.logger.Info("Export progress",
		zap.Int64("records_ok", result.ProcessedOK),
		zap.Int64("records_failed", result.ProcessedFailed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", result.Duration))
}

func (p *Pipeline) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.result = ProcessingResult{}
}

func (p *Pipeline) snapshot() *ProcessingResult {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := p.result
	result.Errors = append([]string(nil), p.result.Errors...)
	result.Duration = time.Since(p.start)
	return &result
}

// Stats returns the progress of the current or last run
func (p *Pipeline) Stats() *ProcessingResult {
	return p.snapshot()
}
