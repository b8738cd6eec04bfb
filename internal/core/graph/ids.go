package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces identifiers for new nodes and edges.
type IDGenerator interface {
	NewID(prefix string) string
}

// SequenceIDs is a monotonic counter generator: node_0, node_1, ...
// The counter is shared across prefixes.
type SequenceIDs struct {
	next atomic.Int64
}

// NewSequenceIDs creates a counter starting at start.
func NewSequenceIDs(start int64) *SequenceIDs {
	s := &SequenceIDs{}
	s.next.Store(start)
	return s
}

// NewID returns prefix_<n>.
func (s *SequenceIDs) NewID(prefix string) string {
	n := s.next.Add(1) - 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

// UUIDs generates prefix_<uuid> identifiers.
type UUIDs struct{}

// NewID returns prefix_<random uuid>.
func (UUIDs) NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
