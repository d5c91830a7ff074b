package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/vector-notes/internal/indexer"
	"github.com/bull/vector-notes/internal/notes"
)

// writeConfig creates an in-memory, hash-embedding config so commands run
// without Qdrant or an API key.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := fmt.Sprintf(`log:
  level: error
  format: text
vector_store:
  type: memory
notes:
  collection: notes
  vector_size: 32
  text_split_maximum_size: 80
metadata:
  table_name: notes_metadata
embedding:
  type: hash
registry:
  path: %s
`, filepath.Join(dir, "collections.json"))
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStoreFromStdin(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "first paragraph.\n\nsecond paragraph.", "--config", cfg, "--json", "store", "inbox")
	require.NoError(t, err)

	var report notes.IngestReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "inbox", report.CollectionName)
	assert.True(t, report.RecordCreated)
	assert.Equal(t, report.TotalChunks, report.StoredChunks)
}

func TestStoreSingleChunk(t *testing.T) {
	cfg := writeConfig(t)
	file := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(file, []byte("one line"), 0o644))

	out, err := execute(t, "", "--config", cfg, "store", "--single", "inbox", file)
	require.NoError(t, err)
	assert.Contains(t, out, `Stored 1 chunk in "inbox"`)
}

func TestImportDirectory(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("bravo"), 0o644))

	out, err := execute(t, "", "--config", cfg, "--json", "import", dir)
	require.NoError(t, err)

	var result indexer.IndexResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 2, result.SuccessfulDocs)
}

func TestArgumentValidation(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "", "--config", cfg, "search", "only-collection")
	assert.Error(t, err)

	_, err = execute(t, "", "--config", cfg, "delete-chunks", "inbox", "not-an-id")
	assert.Error(t, err)

	_, err = execute(t, "", "--config", cfg, "import", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector_store:\n  type: cassandra\n"), 0o644))

	_, err := execute(t, "", "--config", path, "collections")
	assert.Error(t, err)
}
