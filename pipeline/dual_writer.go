package pipeline

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-torrent-relay/models"
)

// DualWriter fans every record out to a CSV and a JSONL journal.
type DualWriter struct {
	writers []OutputWriter
}

// NewDualWriter opens both journal files.
func NewDualWriter(csvFilename, jsonFilename string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("csv journal: %w", err)
	}
	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		_ = csvWriter.Close()
		return nil, fmt.Errorf("json journal: %w", err)
	}
	return &DualWriter{writers: []OutputWriter{csvWriter, jsonWriter}}, nil
}

// Write stops at the first writer that fails. Each writer locks itself.
func (dw *DualWriter) Write(records []*models.DeliveryRecord) error {
	for _, w := range dw.writers {
		if err := w.Write(records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (dw *DualWriter) Close() error {
	return dw.each(OutputWriter.Close)
}

// Validate checks every writer and joins their errors.
func (dw *DualWriter) Validate() error {
	return dw.each(OutputWriter.Validate)
}

func (dw *DualWriter) each(fn func(OutputWriter) error) error {
	var errs []error
	for _, w := range dw.writers {
		if err := fn(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
