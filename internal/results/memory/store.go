// Package memory provides an in-process result store for single-node
// runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/feedlake/social-crawler/internal/crawl"
)

// Store keeps work results in a map keyed by task id.
type Store struct {
	mu      sync.RWMutex
	results map[string]crawl.WorkResult
}

// New constructs an empty Store.
func New() *Store {
	return &Store{results: make(map[string]crawl.WorkResult)}
}

// Put records the result, overwriting any previous result for the task.
func (s *Store) Put(_ context.Context, res crawl.WorkResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.TaskID] = res
	return nil
}

// Get returns the recorded result or crawl.ErrResultNotFound.
func (s *Store) Get(_ context.Context, taskID string) (crawl.WorkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[taskID]
	if !ok {
		return crawl.WorkResult{}, crawl.ErrResultNotFound
	}
	return res, nil
}
