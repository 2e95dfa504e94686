package mocks

import (
	"fmt"

	"github.com/scorekeep/scorekeep/internal/dependencies/idgen"
)

// MockIDGen is a mock implementation of Generator for testing
type MockIDGen struct {
	queue   []string
	counter int
}

// Ensure MockIDGen implements Generator
var _ idgen.Generator = (*MockIDGen)(nil)

// NewMockIDGen creates a MockIDGen
func NewMockIDGen() *MockIDGen {
	return &MockIDGen{}
}

// QueueID queues IDs to be returned by subsequent NewID calls
func (g *MockIDGen) QueueID(ids ...string) {
	g.queue = append(g.queue, ids...)
}

// NewID returns the next queued ID, or a sequential fallback ID if the
// queue is empty
func (g *MockIDGen) NewID() string {
	if len(g.queue) > 0 {
		id := g.queue[0]
		g.queue = g.queue[1:]
		return id
	}
	g.counter++
	return fmt.Sprintf("id-%04d", g.counter)
}
