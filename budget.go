package sleuth

// RetryBudget bounds the number of unsuccessful tool-assisted attempts in a
// single run. It never goes below zero.
type RetryBudget struct {
	initial   int
	remaining int
}

// NewRetryBudget returns a budget holding n units. Negative n is treated
// as zero.
func NewRetryBudget(n int) *RetryBudget {
	if n < 0 {
		n = 0
	}
	return &RetryBudget{initial: n, remaining: n}
}

// Consume takes one unit and reports whether any remain afterwards.
func (b *RetryBudget) Consume() bool {
	if b.remaining > 0 {
		b.remaining--
	}
	return b.remaining > 0
}

// Remaining returns the units left.
func (b *RetryBudget) Remaining() int { return b.remaining }

// Used returns the units consumed so far.
func (b *RetryBudget) Used() int { return b.initial - b.remaining }

// Exhausted reports whether the budget reached zero.
func (b *RetryBudget) Exhausted() bool { return b.remaining == 0 }
