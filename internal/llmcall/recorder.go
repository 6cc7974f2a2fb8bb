package llmcall

import (
	"sort"
	"sync"

	"github.com/jackzampolin/vellum/internal/providers"
)

// Recorder keeps calls in memory for the lifetime of a run. It is safe for
// concurrent use; a nil *Recorder discards everything.
type Recorder struct {
	mu    sync.Mutex
	calls []*Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record captures a model attempt.
func (r *Recorder) Record(result *providers.ChatResult, err error, opts RecordOptions) *Call {
	call := FromChatResult(result, err, opts)
	r.RecordCall(call)
	return call
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

// Calls returns recorded calls ordered by batch, then attempt.
func (r *Recorder) Calls() []*Call {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]*Call, len(r.calls))
	copy(out, r.calls)
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Batch != out[j].Batch {
			return out[i].Batch < out[j].Batch
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out
}

// Summary aggregates the recorded calls.
type Summary struct {
	Calls    int             `json:"calls" yaml:"calls"`
	Failures int             `json:"failures" yaml:"failures"`
	Usage    providers.Usage `json:"token_usage" yaml:"token_usage"`
	ByError  map[string]int  `json:"by_error,omitempty" yaml:"by_error,omitempty"`
}

// Summary totals token usage and failures across all calls.
func (r *Recorder) Summary() Summary {
	s := Summary{}
	for _, c := range r.Calls() {
		s.Calls++
		s.Usage.Add(c.Usage())
		if !c.Success {
			s.Failures++
			if s.ByError == nil {
				s.ByError = make(map[string]int)
			}
			s.ByError[c.ErrorType]++
		}
	}
	return s
}
