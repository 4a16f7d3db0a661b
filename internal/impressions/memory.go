// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package impressions

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps impressions in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	bySession map[string][]Impression
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bySession: make(map[string][]Impression)}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) Save(_ context.Context, imp Impression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[imp.SessionID] = append(s.bySession[imp.SessionID], imp)
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string) ([]Impression, error) {
	s.mu.RLock()
	out := append([]Impression(nil), s.bySession[sessionID]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
