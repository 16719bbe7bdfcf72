package persist

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrCorrupt  = errors.New("document corrupt")
)

// Backend loads and saves whole named state documents.
type Backend interface {
	Load(ctx context.Context, name string, v any) error
	Save(ctx context.Context, name string, v any) error
}

// Files keeps each document in its own file. Documents whose path ends in .txt and
// whose value is a *[]string are stored one entry per line; everything else is JSON.
type Files struct {
	paths map[string]string
}

var _ Backend = (*Files)(nil)

func NewFiles(paths map[string]string) *Files {
	cp := make(map[string]string, len(paths))
	for k, v := range paths {
		cp[k] = v
	}
	return &Files{paths: cp}
}

func (f *Files) path(name string) (string, error) {
	p, ok := f.paths[name]
	if !ok {
		return "", fmt.Errorf("no path configured for document %q", name)
	}
	return p, nil
}

func (f *Files) Load(_ context.Context, name string, v any) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	if lines, ok := v.(*[]string); ok && strings.HasSuffix(p, ".txt") {
		*lines = ParseLines(data)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, p, err)
	}
	return nil
}

func (f *Files) Save(_ context.Context, name string, v any) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	var data []byte
	if lines, ok := v.(*[]string); ok && strings.HasSuffix(p, ".txt") {
		data = []byte(strings.Join(*lines, "\n"))
	} else if data, err = json.MarshalIndent(v, "", "  "); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return WriteFileAtomic(p, data)
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ParseLines splits data into trimmed, non-empty lines.
func ParseLines(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// ReadLines reads a line-oriented file. A missing file yields no lines.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLines(data), nil
}
