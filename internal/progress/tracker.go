package progress

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// completedLabel is the message shown once every item has been processed.
const completedLabel = "Completed"

// Snapshot is the pollable state of a bulk operation.
type Snapshot struct {
	OperationID string `json:"operationId"`
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	Percent     int    `json:"percent"`
	Successes   int    `json:"successes"`
	Errors      int    `json:"errors"`
	Complete    bool   `json:"complete"`
	Dismissed   bool   `json:"dismissed"`
}

// Tracker accumulates progress for a single bulk operation. Processed never
// decreases, percent is rounded to the nearest integer and the operation is
// complete once processed reaches total. After completion the tracker
// dismisses itself, firing the close callback exactly once whether the
// dismissal was automatic or requested by the caller.
type Tracker struct {
	mu sync.Mutex

	id        string
	kind      string
	label     string
	processed int
	total     int
	succeeded int
	errors    int
	dismissed bool

	dismissAfter time.Duration
	dismissTimer *time.Timer
	closeOnce    sync.Once
	onClose      func()
}

// Advance records one processed item. A non-empty label replaces the current
// one, and errored items are counted without interrupting the operation.
func (t *Tracker) Advance(label string, errored bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dismissed {
		return
	}
	if t.processed < t.total {
		t.processed++
	}
	if errored {
		t.errors++
	} else {
		t.succeeded++
	}
	if label != "" {
		t.label = label
	}
	if t.processed >= t.total {
		t.label = completedLabel
		t.scheduleDismissLocked()
	}
}

// Complete forces the tracker into its terminal state regardless of how many
// items were processed. Used when an operation aborts early.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dismissed {
		return
	}
	t.processed = t.total
	t.label = completedLabel
	t.scheduleDismissLocked()
}

// AddErrors moves n items from the success count to the error count without
// advancing progress. Used when a failed batch commit converts optimistic
// successes into failures.
func (t *Tracker) AddErrors(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dismissed && n > 0 {
		t.errors += n
		t.succeeded -= n
		if t.succeeded < 0 {
			t.succeeded = 0
		}
	}
}

// Close dismisses the tracker immediately. The close callback still fires
// at most once.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.dismissTimer != nil {
		t.dismissTimer.Stop()
	}
	t.dismissed = true
	t.mu.Unlock()

	t.fireClose()
}

// Snapshot returns the current state for polling clients.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	percent := 0
	if t.total > 0 {
		percent = int(math.Round(float64(t.processed) / float64(t.total) * 100))
	}
	return Snapshot{
		OperationID: t.id,
		Kind:        t.kind,
		Label:       t.label,
		Processed:   t.processed,
		Total:       t.total,
		Percent:     percent,
		Successes:   t.succeeded,
		Errors:      t.errors,
		Complete:    t.processed >= t.total,
		Dismissed:   t.dismissed,
	}
}

func (t *Tracker) scheduleDismissLocked() {
	if t.dismissTimer != nil {
		return
	}
	t.dismissTimer = time.AfterFunc(t.dismissAfter, func() {
		t.mu.Lock()
		t.dismissed = true
		t.mu.Unlock()
		t.fireClose()
	})
}

func (t *Tracker) fireClose() {
	t.closeOnce.Do(func() {
		if t.onClose != nil {
			t.onClose()
		}
	})
}

// Registry holds the in-flight bulk operations keyed by operation ID.
type Registry struct {
	mu           sync.RWMutex
	ops          map[string]*Tracker
	dismissAfter time.Duration
	logger       *zap.Logger
}

// NewRegistry builds a registry whose trackers auto-dismiss dismissAfter
// after completion.
func NewRegistry(dismissAfter time.Duration, logger *zap.Logger) *Registry {
	if dismissAfter <= 0 {
		dismissAfter = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ops:          make(map[string]*Tracker),
		dismissAfter: dismissAfter,
		logger:       logger,
	}
}

// Start registers a new tracker and returns it. The tracker is removed from
// the registry when it is dismissed, after the caller's onClose runs.
func (r *Registry) Start(kind, label string, total int, onClose func()) *Tracker {
	id := uuid.NewString()
	t := &Tracker{
		id:           id,
		kind:         kind,
		label:        label,
		total:        total,
		dismissAfter: r.dismissAfter,
	}
	t.onClose = func() {
		if onClose != nil {
			onClose()
		}
		r.mu.Lock()
		delete(r.ops, id)
		r.mu.Unlock()
		r.logger.Sugar().Debugw("bulk operation dismissed", "operation_id", id)
	}

	r.mu.Lock()
	r.ops[id] = t
	r.mu.Unlock()
	return t
}

// Get returns the tracker for an operation ID.
func (r *Registry) Get(id string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.ops[id]
	return t, ok
}

// Close dismisses every in-flight tracker, cancelling pending dismiss timers.
// Called on shutdown so no timer fires after the registry's owner is gone.
func (r *Registry) Close() {
	r.mu.RLock()
	trackers := make([]*Tracker, 0, len(r.ops))
	for _, t := range r.ops {
		trackers = append(trackers, t)
	}
	r.mu.RUnlock()

	for _, t := range trackers {
		t.Close()
	}
}
