package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Memory is an in-process document store.
type Memory struct {
	mu     sync.Mutex
	docs   map[string]string
	merges int
	// FailMerge, when set, is returned by every Merge.
	FailMerge error
}

func NewMemory() *Memory {
	return &Memory{docs: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, collection, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.docs[collection+"/"+id]
	return body, ok, nil
}

func (m *Memory) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	if collection == "" || id == "" {
		return errors.New("collection and id are required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merges++
	if m.FailMerge != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, m.FailMerge)
	}
	key := collection + "/" + id
	body, ok := m.docs[key]
	if !ok {
		body = "{}"
	}
	merged, err := MergeJSON(body, fields)
	if err != nil {
		return err
	}
	m.docs[key] = merged
	return nil
}

// Put replaces a document body.
func (m *Memory) Put(collection, id, body string) {
	m.mu.Lock()
	m.docs[collection+"/"+id] = body
	m.mu.Unlock()
}

func (m *Memory) Merges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merges
}
