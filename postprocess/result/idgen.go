package result

import (
	"go.uber.org/atomic"
)

// IDGenerator hands out increasing detection IDs, it is safe for concurrent
// use
type IDGenerator struct {
	id atomic.Int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next ID, the first is 1
func (g *IDGenerator) GetNext() int64 {
	return g.id.Inc()
}
