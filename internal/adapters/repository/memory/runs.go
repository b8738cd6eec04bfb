package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowcanvas/flowcanvas/internal/core/run"
	"github.com/flowcanvas/flowcanvas/pkg/serialization"
)

// RunStore implements run.Recorder in memory
// PRINCIPLES:
// - KISS: Map plus a start-time index, no background goroutines
// - DIP: Implements run.Recorder interface
type RunStore struct {
	mu         sync.RWMutex
	entries    map[string]runEntry
	serializer *serialization.Serializer
	maxRecords int
}

// RunStoreConfig holds configuration for RunStore
type RunStoreConfig struct {
	MaxRecords int                       // Oldest records are evicted beyond this; 0 is unbounded
	Serializer *serialization.Serializer // Custom serializer (optional)
}

type runEntry struct {
	workflowID string
	startedAt  time.Time
	data       []byte
}

// NewRunStore creates a new in-memory run store
func NewRunStore(config RunStoreConfig) *RunStore {
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}
	return &RunStore{
		entries:    make(map[string]runEntry),
		serializer: config.Serializer,
		maxRecords: config.MaxRecords,
	}
}

// Save stores a record, replacing one with the same id.
func (s *RunStore) Save(_ context.Context, rec *run.Record) error {
	if rec == nil {
		return run.ErrInvalidRunID
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("run validation failed: %w", err)
	}
	data, err := s.serializer.Serialize(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", run.ErrSaveFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[rec.ID] = runEntry{workflowID: rec.WorkflowID, startedAt: rec.StartedAt, data: data}
	s.evict()
	return nil
}

// Load retrieves a record by id.
func (s *RunStore) Load(_ context.Context, id string) (*run.Record, error) {
	if id == "" {
		return nil, run.ErrInvalidRunID
	}
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, run.ErrRunNotFound
	}
	return s.decode(e.data)
}

// List returns records matching the filter, newest first.
func (s *RunStore) List(_ context.Context, filter run.Filter) ([]*run.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter validation failed: %w", err)
	}

	s.mu.RLock()
	ordered := s.ordered()
	s.mu.RUnlock()

	var out []*run.Record
	skipped := 0
	for _, e := range ordered {
		probe := run.Record{WorkflowID: e.workflowID, StartedAt: e.startedAt}
		if !filter.Matches(&probe) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		rec, err := s.decode(e.data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Delete removes a record by id.
func (s *RunStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return run.ErrInvalidRunID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return run.ErrRunNotFound
	}
	delete(s.entries, id)
	return nil
}

// Len returns the number of stored records.
func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ordered returns entries newest first; ties break on id. Caller holds mu.
func (s *RunStore) ordered() []runEntry {
	type keyed struct {
		id string
		runEntry
	}
	all := make([]keyed, 0, len(s.entries))
	for id, e := range s.entries {
		all = append(all, keyed{id, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].startedAt.Equal(all[j].startedAt) {
			return all[i].startedAt.After(all[j].startedAt)
		}
		return all[i].id > all[j].id
	})
	out := make([]runEntry, len(all))
	for i := range all {
		out[i] = all[i].runEntry
	}
	return out
}

// evict drops the oldest records beyond maxRecords. Caller holds mu.
func (s *RunStore) evict() {
	if s.maxRecords <= 0 || len(s.entries) <= s.maxRecords {
		return
	}
	var oldestID string
	for len(s.entries) > s.maxRecords {
		oldestID = ""
		var oldest time.Time
		for id, e := range s.entries {
			if oldestID == "" || e.startedAt.Before(oldest) || (e.startedAt.Equal(oldest) && id < oldestID) {
				oldestID, oldest = id, e.startedAt
			}
		}
		delete(s.entries, oldestID)
	}
}

func (s *RunStore) decode(data []byte) (*run.Record, error) {
	var rec run.Record
	if err := s.serializer.Deserialize(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", run.ErrLoadFailed, err)
	}
	return &rec, nil
}
