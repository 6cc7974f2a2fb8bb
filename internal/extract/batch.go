package extract

import (
	"fmt"
)

// Batch is a contiguous run of pages sent to the model in one request.
type Batch struct {
	Index int
	Pages []int
}

// First returns the first page in the batch.
func (b Batch) First() int { return b.Pages[0] }

// Last returns the last page in the batch.
func (b Batch) Last() int { return b.Pages[len(b.Pages)-1] }

// ResolveRange applies defaults to a requested page range and checks it
// against the document. Zero start or end select the first or last page.
func ResolveRange(start, end, total int) (int, int, error) {
	if total < 1 {
		return 0, 0, fmt.Errorf("%w: document has no pages", ErrInvalidArgument)
	}
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = total
	}
	switch {
	case start < 1 || start > total:
		return 0, 0, fmt.Errorf("%w: start page %d outside 1-%d", ErrInvalidArgument, start, total)
	case end < 1 || end > total:
		return 0, 0, fmt.Errorf("%w: end page %d outside 1-%d", ErrInvalidArgument, end, total)
	case start > end:
		return 0, 0, fmt.Errorf("%w: start page %d after end page %d", ErrInvalidArgument, start, end)
	}
	return start, end, nil
}

// Partition splits start..end into contiguous batches of at most size pages.
func Partition(start, end, size int) []Batch {
	if size < 1 || start > end {
		return nil
	}
	batches := make([]Batch, 0, (end-start)/size+1)
	for first := start; first <= end; first += size {
		last := min(first+size-1, end)
		pages := make([]int, 0, last-first+1)
		for p := first; p <= last; p++ {
			pages = append(pages, p)
		}
		batches = append(batches, Batch{Index: len(batches), Pages: pages})
	}
	return batches
}

// State is the lifecycle position of a batch.
type State int

const (
	Pending State = iota
	Attempting
	Succeeded
	Degraded
	Aborted
)

var stateNames = [...]string{"pending", "attempting", "succeeded", "degraded", "aborted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == Succeeded || s == Degraded || s == Aborted
}

var transitions = map[State][]State{
	Pending:    {Attempting, Degraded, Aborted},
	Attempting: {Attempting, Succeeded, Degraded, Aborted},
}

// CanTransition reports whether a batch may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// batchRun tracks one batch through its states.
type batchRun struct {
	Batch
	state    State
	attempts int
	history  []State
}

func newBatchRun(b Batch) *batchRun {
	return &batchRun{Batch: b, state: Pending, history: []State{Pending}}
}

func (r *batchRun) to(s State) {
	if !CanTransition(r.state, s) {
		panic(fmt.Sprintf("batch %d: invalid transition %s -> %s", r.Index, r.state, s))
	}
	if s == Attempting {
		r.attempts++
	}
	r.state = s
	r.history = append(r.history, s)
}

// BatchReport summarizes how a batch finished.
type BatchReport struct {
	Index    int    `json:"index"`
	Pages    []int  `json:"pages"`
	State    State  `json:"state"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func (r *batchRun) report(err error) BatchReport {
	rep := BatchReport{
		Index:    r.Index,
		Pages:    append([]int(nil), r.Pages...),
		State:    r.state,
		Attempts: r.attempts,
	}
	if err != nil {
		rep.Error = err.Error()
	}
	return rep
}
