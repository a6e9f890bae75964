package orchestrator

import "sync/atomic"

// Tally counts failed test cases. It is safe for concurrent use.
type Tally struct {
	n atomic.Int64
}

// Inc records one failed test case.
func (t *Tally) Inc() {
	t.n.Add(1)
}

// Value returns the number of failed test cases recorded so far.
func (t *Tally) Value() int {
	return int(t.n.Load())
}
