package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesRoundTripJSON(t *testing.T) {
	dir := t.TempDir()
	f := NewFiles(map[string]string{"doc": filepath.Join(dir, "nested", "doc.json")})
	ctx := context.Background()

	in := map[string]int{"a": 1, "b": 2}
	require.NoError(t, f.Save(ctx, "doc", in))

	var out map[string]int
	require.NoError(t, f.Load(ctx, "doc", &out))
	assert.Equal(t, in, out)
}

func TestFilesMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.json")
	f := NewFiles(map[string]string{"doc": p})
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, f.Load(ctx, "doc", &out), ErrNotFound)

	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))
	assert.ErrorIs(t, f.Load(ctx, "doc", &out), ErrCorrupt)

	assert.Error(t, f.Load(ctx, "unknown", &out))
}

func TestFilesLines(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "subs.txt")
	f := NewFiles(map[string]string{"subs": p})
	ctx := context.Background()

	lines := []string{"-100123", "42"}
	require.NoError(t, f.Save(ctx, "subs", &lines))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "-100123\n42", string(raw))

	require.NoError(t, os.WriteFile(p, []byte("  7 \n\n8\n"), 0o644))
	var got []string
	require.NoError(t, f.Load(ctx, "subs", &got))
	assert.Equal(t, []string{"7", "8"}, got)
}

func TestReadLinesMissingFile(t *testing.T) {
	lines, err := ReadLines(filepath.Join(t.TempDir(), "none.txt"))
	require.NoError(t, err)
	assert.Empty(t, lines)
}
