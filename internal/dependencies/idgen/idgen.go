package idgen

import "github.com/google/uuid"

// Generator provides ID generation that can be mocked for testing
type Generator interface {
	// NewID returns a new globally-unique identifier
	NewID() string
}

// UUIDGenerator implements Generator using random UUIDs
type UUIDGenerator struct{}

// New creates a new UUIDGenerator
func New() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID returns a random UUID string
func (g *UUIDGenerator) NewID() string {
	return uuid.NewString()
}
