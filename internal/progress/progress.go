// Package progress reports cumulative page completion during extraction.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Snapshot is an immutable view of progress after an update.
type Snapshot struct {
	Message   string        `json:"message"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Percent   float64       `json:"percent"`
	Elapsed   time.Duration `json:"elapsed"`
	ETA       time.Duration `json:"eta"`
}

// Done reports whether every page has completed.
func (s Snapshot) Done() bool {
	return s.Total > 0 && s.Completed >= s.Total
}

// Callback receives snapshots in the order they were produced.
type Callback func(Snapshot)

// Func adapts a (message, completed, total) callback.
func Func(fn func(message string, completed, total int)) Callback {
	if fn == nil {
		return nil
	}
	return func(s Snapshot) {
		fn(s.Message, s.Completed, s.Total)
	}
}

// Reporter tracks completed pages. Completed never decreases and never
// exceeds Total. Safe for concurrent use.
type Reporter struct {
	mu        sync.Mutex
	total     int
	completed int
	start     time.Time
	callback  Callback
	now       func() time.Time
}

// NewReporter creates a reporter for total pages. cb may be nil.
func NewReporter(total int, cb Callback) *Reporter {
	return &Reporter{
		total:    total,
		start:    time.Now(),
		callback: cb,
		now:      time.Now,
	}
}

// Advance records pages more completed pages and notifies the callback.
func (r *Reporter) Advance(message string, pages int) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pages > 0 {
		r.completed += pages
	}
	if r.completed > r.total {
		r.completed = r.total
	}
	snap := r.snapshotLocked(message)
	// Delivered under the lock so callbacks observe snapshots in order.
	if r.callback != nil {
		r.callback(snap)
	}
	return snap
}

// Snapshot returns the current state without advancing.
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked("")
}

func (r *Reporter) snapshotLocked(message string) Snapshot {
	elapsed := r.now().Sub(r.start)
	snap := Snapshot{
		Message:   message,
		Completed: r.completed,
		Total:     r.total,
		Elapsed:   elapsed,
	}
	if r.total > 0 {
		snap.Percent = float64(r.completed) / float64(r.total) * 100
	}
	if r.completed > 0 && r.completed < r.total {
		perPage := elapsed / time.Duration(r.completed)
		snap.ETA = perPage * time.Duration(r.total-r.completed)
	}
	return snap
}

// LogCallback logs each snapshot at info level.
func LogCallback(logger *slog.Logger) Callback {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s Snapshot) {
		logger.Info("progress",
			"message", s.Message,
			"completed", s.Completed,
			"total", s.Total,
			"percent", fmt.Sprintf("%.1f", s.Percent),
			"eta", s.ETA.Round(time.Second))
	}
}

// WriterCallback prints a one-line progress message per snapshot.
func WriterCallback(w io.Writer) Callback {
	return func(s Snapshot) {
		fmt.Fprintf(w, "Progress: %.1f%% (%d/%d) - %s\n", s.Percent, s.Completed, s.Total, s.Message)
	}
}

// Multi fans a snapshot out to every non-nil callback.
func Multi(cbs ...Callback) Callback {
	var live []Callback
	for _, cb := range cbs {
		if cb != nil {
			live = append(live, cb)
		}
	}
	if len(live) == 0 {
		return nil
	}
	return func(s Snapshot) {
		for _, cb := range live {
			cb(s)
		}
	}
}
