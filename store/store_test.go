package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/models"
)

func TestFileStore_SetGet(t *testing.T) {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "run-1"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.SetValue(ctx, "A1_LOGIN_PAGE.html", []byte("<html></html>"), "text/html"))
	require.NoError(t, fs.SetValue(ctx, "RESULT.json", []byte(`{"ok":true}`), "application/json"))

	data, ct, err := fs.GetValue("RESULT.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
	assert.Equal(t, "application/json; charset=utf-8", ct)

	keys, err := fs.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"A1_LOGIN_PAGE.html", "RESULT.json"}, keys)
}

func TestFileStore_Overwrite(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, fs.SetValue(ctx, "k.json", []byte("1"), "application/json"))
	require.NoError(t, fs.SetValue(ctx, "k.json", []byte("2"), "application/json"))

	data, _, err := fs.GetValue("k.json")
	require.NoError(t, err)
	assert.Equal(t, "2", string(data))
}

func TestFileStore_InvalidKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "..", "../x", "a/b", ".hidden", "a b"} {
		assert.Error(t, fs.SetValue(ctx, key, []byte("x"), "text/plain"), key)
	}
	assert.Error(t, fs.SetValue(ctx, "ok.txt", []byte("x"), ""))
}

func TestFileStore_NotFound(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, _, err = fs.GetValue("missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("A3_AFTER_SUBMIT.png"))
	assert.Equal(t, "text/markdown; charset=utf-8", ContentType("x.md"))
	assert.True(t, strings.HasPrefix(ContentType("x.html"), "text/html"))
	assert.Equal(t, "application/octet-stream", ContentType("noext"))
}

func sampleRows() []models.ExtractedRow {
	return []models.ExtractedRow{
		{RunID: "r1", Page: 1, Columns: []string{"801234567", "ACME LLC"}},
		{RunID: "r1", Page: 1, Columns: []string{"801234568", "BETA, INC", "extra"}},
		{RunID: "r1", Page: 2, Columns: []string{"801234569", "GAMMA LP"}},
	}
}

func TestJSONLDataset_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r1", "rows.jsonl")
	d, err := NewJSONLDataset(path)
	require.NoError(t, err)
	for _, r := range sampleRows() {
		require.NoError(t, d.PushData(context.Background(), r))
	}
	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"runId":"r1","page":1,"columns":["801234567","ACME LLC"]}`, lines[0])
}

func TestCSVDataset_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	d, err := NewCSVDataset(path)
	require.NoError(t, err)
	for _, r := range sampleRows() {
		require.NoError(t, d.PushData(context.Background(), r))
	}
	require.NoError(t, d.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []string{"run_id", "page", "columns"}, records[0])
	assert.Equal(t, []string{"r1", "1", "801234568", "BETA, INC", "extra"}, records[2])
}

func TestSQLiteDataset_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "harvest.db")
	d, err := NewSQLiteDataset(path)
	require.NoError(t, err)
	ctx := context.Background()
	for _, r := range sampleRows() {
		require.NoError(t, d.PushData(ctx, r))
	}
	require.NoError(t, d.PushData(ctx, models.ExtractedRow{RunID: "r2", Page: 1, Columns: []string{"x"}}))
	require.NoError(t, d.Close())

	reopened, err := NewSQLiteDataset(path)
	require.NoError(t, err)
	defer reopened.Close()

	rows, err := reopened.Rows(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, sampleRows(), rows)
}

type failingDataset struct{ closed bool }

func (f *failingDataset) PushData(context.Context, models.ExtractedRow) error {
	return os.ErrPermission
}
func (f *failingDataset) Close() error { f.closed = true; return nil }

func TestMultiDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.jsonl")
	j, err := NewJSONLDataset(path)
	require.NoError(t, err)
	bad := &failingDataset{}

	m := NewMultiDataset(j, bad)
	err = m.PushData(context.Background(), sampleRows()[0])
	assert.ErrorIs(t, err, os.ErrPermission)
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)
}

func TestOpenDataset(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StoreConfig{
		DatasetDir:     dir,
		DatasetFormats: []string{"jsonl", "csv", "sqlite"},
		SQLitePath:     filepath.Join(dir, "harvest.db"),
	}
	d, err := OpenDataset(cfg, "run-42")
	require.NoError(t, err)
	_, isMulti := d.(*MultiDataset)
	assert.True(t, isMulti)
	require.NoError(t, d.PushData(context.Background(), sampleRows()[0]))
	require.NoError(t, d.Close())

	assert.FileExists(t, filepath.Join(dir, "run-42", "rows.jsonl"))
	assert.FileExists(t, filepath.Join(dir, "run-42", "rows.csv"))

	cfg.DatasetFormats = []string{"parquet"}
	_, err = OpenDataset(cfg, "run-43")
	assert.Error(t, err)

	cfg.DatasetFormats = nil
	_, err = OpenDataset(cfg, "run-44")
	assert.Error(t, err)
}
