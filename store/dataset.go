package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/models"
)

// Dataset is an append-only record store.
type Dataset interface {
	PushData(ctx context.Context, row models.ExtractedRow) error
	Close() error
}

// OpenDataset opens the datasets selected by cfg.DatasetFormats for one run.
// More than one format yields a fan-out dataset.
func OpenDataset(cfg config.StoreConfig, runID string) (Dataset, error) {
	var sets []Dataset
	closeAll := func() {
		for _, d := range sets {
			d.Close()
		}
	}

	for _, format := range cfg.DatasetFormats {
		var (
			d   Dataset
			err error
		)
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "jsonl", "json":
			d, err = NewJSONLDataset(filepath.Join(cfg.DatasetDir, runID, "rows.jsonl"))
		case "csv":
			d, err = NewCSVDataset(filepath.Join(cfg.DatasetDir, runID, "rows.csv"))
		case "sqlite":
			d, err = NewSQLiteDataset(cfg.SQLitePath)
		case "":
			continue
		default:
			err = fmt.Errorf("unknown dataset format %q", format)
		}
		if err != nil {
			closeAll()
			return nil, err
		}
		sets = append(sets, d)
	}

	switch len(sets) {
	case 0:
		return nil, errors.New("no dataset format configured")
	case 1:
		return sets[0], nil
	}
	return &MultiDataset{sets: sets}, nil
}

// JSONLDataset writes one JSON object per row.
type JSONLDataset struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONLDataset creates (or truncates) filename.
func NewJSONLDataset(filename string) (*JSONLDataset, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create jsonl file: %w", err)
	}
	buffer := bufio.NewWriter(f)
	return &JSONLDataset{file: f, writer: buffer, encoder: json.NewEncoder(buffer)}, nil
}

// PushData appends row and flushes it to disk.
func (d *JSONLDataset) PushData(_ context.Context, row models.ExtractedRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.encoder.Encode(row); err != nil {
		return fmt.Errorf("encode jsonl row: %w", err)
	}
	if err := d.writer.Flush(); err != nil {
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the file.
func (d *JSONLDataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writer.Flush(); err != nil {
		d.file.Close()
		return fmt.Errorf("flush jsonl writer: %w", err)
	}
	return d.file.Close()
}

// CSVDataset writes rows as run_id, page, then the row's cells. Rows may
// have different widths.
type CSVDataset struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVDataset creates (or truncates) filename and writes the header.
func NewCSVDataset(filename string) (*CSVDataset, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"run_id", "page", "columns"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}
	return &CSVDataset{file: f, writer: writer}, nil
}

// PushData appends row.
func (d *CSVDataset) PushData(_ context.Context, row models.ExtractedRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	record := make([]string, 0, len(row.Columns)+2)
	record = append(record, row.RunID, strconv.Itoa(row.Page))
	record = append(record, row.Columns...)
	if err := d.writer.Write(record); err != nil {
		return fmt.Errorf("write csv record: %w", err)
	}
	d.writer.Flush()
	if err := d.writer.Error(); err != nil {
		return fmt.Errorf("flush csv record: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (d *CSVDataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.writer.Flush()
	if err := d.writer.Error(); err != nil {
		d.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return d.file.Close()
}

// MultiDataset pushes every row to all of its datasets in order.
type MultiDataset struct {
	sets []Dataset
}

// NewMultiDataset fans out to sets.
func NewMultiDataset(sets ...Dataset) *MultiDataset {
	return &MultiDataset{sets: sets}
}

// PushData appends row to every dataset, stopping at the first failure.
func (m *MultiDataset) PushData(ctx context.Context, row models.ExtractedRow) error {
	for _, d := range m.sets {
		if err := d.PushData(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every dataset and joins their errors.
func (m *MultiDataset) Close() error {
	var errs []error
	for _, d := range m.sets {
		if err := d.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
