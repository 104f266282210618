package testfixtures

import (
	"strconv"
	"sync/atomic"
)

// IDGenerator yields "<prefix>-1", "<prefix>-2", ... and is safe for
// concurrent use. Services built by one ServiceFactory share a generator, so
// users, bands, rules and rehearsals draw from one sequence.
type IDGenerator struct {
	prefix atomic.Pointer[string]
	seq    atomic.Uint64
}

// NewIDGenerator uses "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	g := &IDGenerator{}
	g.Reset(prefix)
	return g
}

func (g *IDGenerator) Next() string {
	return *g.prefix.Load() + "-" + strconv.FormatUint(g.seq.Add(1), 10)
}

// NextFunc returns Next for injection; a nil generator yields empty ids.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset switches to prefix and restarts the sequence at 1.
func (g *IDGenerator) Reset(prefix string) {
	if prefix == "" {
		prefix = "id"
	}
	g.prefix.Store(&prefix)
	g.seq.Store(0)
}
