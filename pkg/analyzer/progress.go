package analyzer

import (
	"context"
	"sync/atomic"
)

// Progress is a snapshot of a tracked run.
type Progress struct {
	// Done counts files that reached a terminal state, failed ones included.
	Done   int
	Failed int
	Total  int
	// Path is the file whose completion produced this snapshot.
	Path string
}

// Remaining returns how many files have not finished yet.
func (p Progress) Remaining() int {
	if p.Total <= p.Done {
		return 0
	}
	return p.Total - p.Done
}

// ProgressFunc receives a snapshot each time a file finishes.
type ProgressFunc func(Progress)

// Tracker counts finished and failed files. Safe for concurrent use.
type Tracker struct {
	total    atomic.Int64
	done     atomic.Int64
	failed   atomic.Int64
	callback ProgressFunc
}

// NewTracker creates a tracker that calls callback on every Done.
// callback may be nil.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int64(n))
}

// Fail records path as failed. The file still has to be reported through
// Done once it reaches its terminal state.
func (t *Tracker) Fail(path string) {
	t.failed.Add(1)
}

// Done marks path as finished and notifies the callback.
func (t *Tracker) Done(path string) {
	done := t.done.Add(1)
	if t.callback != nil {
		p := t.Snapshot()
		p.Done = int(done)
		p.Path = path
		t.callback(p)
	}
}

// Snapshot returns the current counts.
func (t *Tracker) Snapshot() Progress {
	return Progress{
		Done:   int(t.done.Load()),
		Failed: int(t.failed.Load()),
		Total:  int(t.total.Load()),
	}
}

type trackerKey struct{}

// WithTracker returns a context that carries t.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the tracker carried by ctx, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
