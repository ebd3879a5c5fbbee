package structure

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator hands out item ids for structured list entries.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function into an IDGenerator.
type IDFunc func() string

// NewID implements IDGenerator.
func (fn IDFunc) NewID() string {
	return fn()
}

// UUIDGenerator returns random UUIDv4 ids. It is the controller default.
func UUIDGenerator() IDGenerator {
	return IDFunc(uuid.NewString)
}

// Counter is a monotonic id generator, handy for deterministic tests and
// for backends that expect numeric temporary keys.
type Counter struct {
	mu     sync.Mutex
	prefix string
	next   int64
}

// NewCounter creates a counter emitting prefix1, prefix2...
func NewCounter(prefix string) *Counter {
	return &Counter{prefix: prefix}
}

// NewID implements IDGenerator.
func (c *Counter) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.prefix + strconv.FormatInt(c.next, 10)
}
