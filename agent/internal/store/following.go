package store

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"mint-radar/shared/persist"
)

var handleRe = regexp.MustCompile(`^[a-z0-9_]{1,15}$`)

// NormalizeHandle lowercases h and strips a leading @. It reports false for anything
// that is not a valid account handle.
func NormalizeHandle(h string) (string, bool) {
	h = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
	if !handleRe.MatchString(h) {
		return "", false
	}
	return h, true
}

// Following is the set of accounts the operator follows, read from a handles file.
type Following struct {
	mu      sync.RWMutex
	path    string
	handles map[string]struct{}
}

func NewFollowing(path string) *Following {
	return &Following{path: path, handles: map[string]struct{}{}}
}

// Reload re-reads the handles file. A missing file yields an empty set.
func (f *Following) Reload() error {
	lines, err := persist.ReadLines(f.path)
	if err != nil {
		return fmt.Errorf("read handles file: %w", err)
	}
	handles := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if h, ok := NormalizeHandle(l); ok {
			handles[h] = struct{}{}
		}
	}
	f.mu.Lock()
	f.handles = handles
	f.mu.Unlock()
	return nil
}

func (f *Following) Contains(handle string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.handles[handle]
	return ok
}

func (f *Following) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handles)
}

func (f *Following) Path() string {
	return f.path
}

// Sample returns up to n handles in sorted order.
func (f *Following) Sample(n int) []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.handles))
	for h := range f.handles {
		out = append(out, h)
	}
	f.mu.RUnlock()
	slices.Sort(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
