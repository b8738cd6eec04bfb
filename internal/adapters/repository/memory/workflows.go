// Package memory provides in-process workflow and run stores. Records are
// held in encoded form, so callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/graph"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
	"github.com/flowcanvas/flowcanvas/pkg/validation"
)

// WorkflowStore keeps workflow documents in a map
// PRINCIPLES:
// - KISS: Simple map-based storage
// - SRP: Only responsible for document persistence
// - Thread-safe
type WorkflowStore struct {
	mu         sync.RWMutex
	docs       map[string][]byte
	serializer *serialization.Serializer
	now        func() time.Time
}

// NewWorkflowStore creates an empty store. A nil serializer means
// serialization.DocumentSerializer(nil).
func NewWorkflowStore(serializer *serialization.Serializer) *WorkflowStore {
	if serializer == nil {
		serializer = serialization.DocumentSerializer(nil)
	}
	return &WorkflowStore{
		docs:       make(map[string][]byte),
		serializer: serializer,
		now:        time.Now,
	}
}

// Save validates and stores g. CreatedAt is kept from an earlier version;
// UpdatedAt is set to now.
func (s *WorkflowStore) Save(_ context.Context, g *graph.Graph) error {
	if err := validation.ValidateGraph(g); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	doc := g.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc.CreatedAt = now
	if prev, ok := s.docs[doc.ID]; ok {
		var old graph.Graph
		if err := s.serializer.Deserialize(prev, &old); err == nil {
			doc.CreatedAt = old.CreatedAt
		}
	}
	doc.UpdatedAt = now

	data, err := s.serializer.Serialize(doc)
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	s.docs[doc.ID] = data
	return nil
}

// Get returns the workflow with the given id.
func (s *WorkflowStore) Get(_ context.Context, id string) (*graph.Graph, error) {
	s.mu.RLock()
	data, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, graph.ErrGraphNotFound
	}
	return s.decode(data)
}

// List returns every workflow ordered by id.
func (s *WorkflowStore) List(_ context.Context) ([]*graph.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*graph.Graph, 0, len(s.docs))
	for _, data := range s.docs {
		g, err := s.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes a workflow.
func (s *WorkflowStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return graph.ErrGraphNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *WorkflowStore) decode(data []byte) (*graph.Graph, error) {
	var g graph.Graph
	if err := s.serializer.Deserialize(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode workflow: %w", err)
	}
	return &g, nil
}
