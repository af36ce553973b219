package sources

import (
	"context"
	"errors"

	"github.com/atlasbio/meridian/internal/logger"
)

// HealthRecorder receives degradation signals for a named source. timeout
// distinguishes transient deadline expiry from hard call failures. Each run
// owns its own recorder; health never recovers within a run.
type HealthRecorder interface {
	Degrade(source string, timeout bool)
}

// Guarded runs fn and converts any error into the provided empty-but-valid
// fallback, recording the source as degraded. Cancellation of the run itself
// is passed through untouched so callers can stop scheduling.
func Guarded[T any](ctx context.Context, log *logger.Logger, rec HealthRecorder, source string, fallback T, fn func(ctx context.Context) (T, error)) T {
	out, err := fn(ctx)
	if err != nil {
		if rec != nil && !errors.Is(err, context.Canceled) {
			rec.Degrade(source, errors.Is(err, context.DeadlineExceeded))
		}
		log.Warn("source call degraded", "source", source, "error", err)
		return fallback
	}
	return out
}
