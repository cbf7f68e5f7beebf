package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rescp17/ticketShare/pkg/transfer"
)

// Relay forwards every sample from samples into the store, tagged with gen.
// It returns when ctx is done or samples is closed. Samples of a superseded session are dropped.
func Relay(ctx context.Context, store *Store, gen uint64, samples <-chan transfer.Progress) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-samples:
			if !ok {
				return
			}
			err := store.RecordProgress(gen, Progress{Done: p.Done, Total: p.Total})
			if errors.Is(err, ErrStaleGeneration) {
				slog.Debug("dropping stale progress sample", "generation", gen, "done", p.Done, "total", p.Total)
			}
		}
	}
}
