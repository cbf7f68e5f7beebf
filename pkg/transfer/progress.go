package transfer

import (
	"context"
	"time"
)

// ProgressReporter throttles samples onto a progress channel. The first and the
// terminal sample are always delivered; intermediate ones at most once per interval.
type ProgressReporter struct {
	out      chan<- Progress
	total    int64
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func NewProgressReporter(out chan<- Progress, total int64, interval time.Duration) *ProgressReporter {
	return &ProgressReporter{
		out:      out,
		total:    total,
		interval: interval,
		now:      time.Now,
	}
}

// Start reports (0, total).
func (r *ProgressReporter) Start(ctx context.Context) error {
	return r.emit(ctx, 0, true)
}

// Update reports done unless the last sample is too recent.
func (r *ProgressReporter) Update(ctx context.Context, done int64) error {
	if done >= r.total {
		return nil
	}
	return r.emit(ctx, done, false)
}

// Finish reports the terminal sample (total, total).
func (r *ProgressReporter) Finish(ctx context.Context) error {
	return r.emit(ctx, r.total, true)
}

func (r *ProgressReporter) emit(ctx context.Context, done int64, force bool) error {
	if r.out == nil {
		return nil
	}
	now := r.now()
	if !force && now.Sub(r.last) < r.interval {
		return nil
	}
	select {
	case r.out <- Progress{Done: done, Total: r.total}:
		r.last = now
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
