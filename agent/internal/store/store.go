// Package store holds the engine's owned state: the snapshot mirror, baselines,
// tracking set, pin table, subscribers and followed accounts. Each store guards its
// own data and exposes narrow mutation methods.
package store

import (
	"context"
	"errors"

	"mint-radar/shared/logger"
	"mint-radar/shared/persist"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

// Document names shared by every persistence backend.
const (
	DocMirror      = "mirror"
	DocBaselines   = "first_seen"
	DocPins        = "pins"
	DocSubscribers = "subscribers"
)

// loadDocument loads name into v. Missing or corrupt documents leave v untouched
// and are reported as a warning only.
func loadDocument(ctx context.Context, backend persist.Backend, name string, v any, log *logger.Logger) bool {
	err := backend.Load(ctx, name, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, persist.ErrNotFound):
		log.Info("No stored state, starting empty", zap.String("document", name))
	default:
		log.Warn("Stored state unreadable, starting empty", zap.String("document", name), zap.Error(err))
	}
	return false
}
