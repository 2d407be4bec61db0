package harvesttest

import (
	"context"
	"sort"
	"sync"

	"github.com/use-agent/sosharvest/models"
)

// Store is an in-memory harvest.ArtifactStore.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte
	types  map[string]string
	order  []string

	// Err, when set, fails every write.
	Err error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string][]byte), types: make(map[string]string)}
}

func (s *Store) SetValue(_ context.Context, key string, value []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.values[key] = append([]byte(nil), value...)
	s.types[key] = contentType
	s.order = append(s.order, key)
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// ContentType returns the content type stored with key.
func (s *Store) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[key]
}

// Keys returns the stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes returns every written key in write order, repeats included.
func (s *Store) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Dataset is an in-memory harvest.Dataset.
type Dataset struct {
	mu   sync.Mutex
	rows []models.ExtractedRow

	// Err, when set, fails every push.
	Err error
}

func (d *Dataset) PushData(_ context.Context, row models.ExtractedRow) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.rows = append(d.rows, row)
	return nil
}

// Close is a no-op so Dataset also satisfies store.Dataset.
func (d *Dataset) Close() error { return nil }

// Rows returns a copy of the pushed rows.
func (d *Dataset) Rows() []models.ExtractedRow {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.ExtractedRow(nil), d.rows...)
}
