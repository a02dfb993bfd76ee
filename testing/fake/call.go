package fake

import (
	"sync"
)

// Call records the arguments of the calls to a function.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the i-th argument of the n-th call.
func (c *Call) Get(n, i int) interface{} {
	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add records a call.
func (c *Call) Add(args ...interface{}) {
	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// Counter is a decreasing counter. A nil counter is always done.
type Counter struct {
	sync.Mutex
	value int
}

// NewCounter returns a counter starting at the value.
func NewCounter(value int) *Counter {
	return &Counter{value: value}
}

// Done returns true when the counter has reached zero.
func (c *Counter) Done() bool {
	if c == nil {
		return true
	}

	c.Lock()
	defer c.Unlock()

	return c.value <= 0
}

// Decrease decreases the counter by one.
func (c *Counter) Decrease() {
	if c == nil {
		return
	}

	c.Lock()
	c.value--
	c.Unlock()
}

// BadWriter is a writer that always fails.
//
// - implements io.Writer
type BadWriter struct{}

// Write implements io.Writer. It returns the fake error.
func (BadWriter) Write([]byte) (int, error) {
	return 0, GetError()
}
