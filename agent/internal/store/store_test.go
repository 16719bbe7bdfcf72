package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"mint-radar/shared/persist"
)

func newFileBackend(t *testing.T) *persist.Files {
	t.Helper()
	dir := t.TempDir()
	return persist.NewFiles(map[string]string{
		DocMirror:      filepath.Join(dir, "mirror.json"),
		DocBaselines:   filepath.Join(dir, "first_seen_caps.json"),
		DocPins:        filepath.Join(dir, "pins.json"),
		DocSubscribers: filepath.Join(dir, "subscribers.txt"),
	})
}

// flakyBackend fails every Save while failing is set and counts the calls.
type flakyBackend struct {
	persist.Backend
	mu      sync.Mutex
	failing bool
	saves   int
}

func (f *flakyBackend) Save(ctx context.Context, name string, v any) error {
	f.mu.Lock()
	f.saves++
	failing := f.failing
	f.mu.Unlock()
	if failing {
		return errors.New("disk full")
	}
	return f.Backend.Save(ctx, name, v)
}

func (f *flakyBackend) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

// gatedBackend holds the first Save until release is closed.
type gatedBackend struct {
	persist.Backend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedBackend(inner persist.Backend) *gatedBackend {
	return &gatedBackend{
		Backend: inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedBackend) Save(ctx context.Context, name string, v any) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Backend.Save(ctx, name, v)
}
