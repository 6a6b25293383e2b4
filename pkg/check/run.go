package check

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/walteh/tmplcheck/pkg/offense"
)

const DefaultTimeout = 5 * time.Second

// Run holds what a single analysis run shares between dispatches: the per call budget,
// the trace flag and the two output channels.
type Run struct {
	ID      string
	Timeout time.Duration
	Trace   bool

	mu       sync.Mutex
	offenses []*offense.Offense
	faults   []*Fault
}

type RunOption func(*Run)

func WithTimeout(d time.Duration) RunOption {
	return func(r *Run) {
		if d > 0 {
			r.Timeout = d
		}
	}
}

func WithTrace(trace bool) RunOption {
	return func(r *Run) {
		r.Trace = trace
	}
}

func NewRun(opts ...RunOption) *Run {
	r := &Run{
		ID:      uuid.NewString(),
		Timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Offenses returns the committed offenses in report order.
func (r *Run) Offenses() []*offense.Offense {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*offense.Offense(nil), r.offenses...)
}

func (r *Run) Faults() []*Fault {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Fault(nil), r.faults...)
}

func (r *Run) commit(found []*offense.Offense) {
	if len(found) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offenses = append(r.offenses, found...)
}

func (r *Run) fault(f *Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = append(r.faults, f)
}
