package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-site-crawler/models"
)

// DualWriter writes every batch to a CSV file and to a JSONL companion file.
type DualWriter struct {
	mu      sync.Mutex
	outputs []namedOutput
}

type namedOutput struct {
	path   string
	writer OutputWriter
}

// NewDualWriter creates csvPath and jsonPath. The CSV header follows mode.
func NewDualWriter(csvPath, jsonPath string, mode models.Mode) (*DualWriter, error) {
	csvOut, err := NewCSVWriter(csvPath, mode)
	if err != nil {
		return nil, err
	}
	jsonOut, err := NewJSONWriter(jsonPath)
	if err != nil {
		_ = csvOut.Close()
		return nil, err
	}

	return &DualWriter{
		outputs: []namedOutput{
			{path: csvPath, writer: csvOut},
			{path: jsonPath, writer: jsonOut},
		},
	}, nil
}

// Write stops at the first output that fails. Rows already written to an
// earlier output are kept.
func (dw *DualWriter) Write(records []*models.Record) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	for _, out := range dw.outputs {
		if err := out.writer.Write(records); err != nil {
			return fmt.Errorf("%s: %w", out.path, err)
		}
	}
	return nil
}

// Close closes every output, even when an earlier one fails.
func (dw *DualWriter) Close() error {
	return dw.each(OutputWriter.Close)
}

// Validate checks every output.
func (dw *DualWriter) Validate() error {
	return dw.each(OutputWriter.Validate)
}

func (dw *DualWriter) each(fn func(OutputWriter) error) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	for _, out := range dw.outputs {
		if err := fn(out.writer); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.path, err))
		}
	}
	return errors.Join(errs...)
}
