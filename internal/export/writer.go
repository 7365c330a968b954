package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/segmentio/parquet-go"
)

// Writer receives de-identified records
type Writer interface {
	Write(records []Record) error
	Close() error
}

// NewWriter returns a writer for format over w. Close flushes buffered
// output but does not close w.
func NewWriter(format FileFormat, w io.Writer) (Writer, error) {
	switch format {
	case FormatJSONL:
		return &jsonlWriter{enc: json.NewEncoder(w)}, nil
	case FormatCSV:
		return newCSVWriter(w), nil
	case FormatParquet:
		return &parquetWriter{w: parquet.NewGenericWriter[Record](w)}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(records []Record) error {
	for i := range records {
		if err := j.enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to write JSON record: %w", err)
		}
	}
	return nil
}

func (j *jsonlWriter) Close() error {
	return nil
}

var csvHeader = []string{"document_id", "text", "tags", "replacements", "skipped"}

type csvWriter struct {
	w             *csv.Writer
	headerWritten bool
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: csv.NewWriter(w)}
}

func (c *csvWriter) Write(records []Record) error {
	if !c.headerWritten {
		if err := c.w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		c.headerWritten = true
	}
	for _, r := range records {
		row := []string{
			r.DocumentID,
			r.Text,
			r.Tags,
			strconv.Itoa(r.Replacements),
			strconv.Itoa(r.Skipped),
		}
		if err := c.w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvWriter) Close() error {
	if !c.headerWritten {
		if err := c.w.Write(csvHeader); err != nil {
			return err
		}
	}
	c.w.Flush()
	return c.w.Error()
}

type parquetWriter struct {
	w *parquet.GenericWriter[Record]
}

func (p *parquetWriter) Write(records []Record) error {
	if _, err := p.w.Write(records); err != nil {
		return fmt.Errorf("failed to write Parquet rows: %w", err)
	}
	return nil
}

func (p *parquetWriter) Close() error {
	return p.w.Close()
}
