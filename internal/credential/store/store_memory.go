package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"iam/internal/credential/models"
)

// InMemoryStore keeps stamps and claims in process memory.
// It implements both the stamp and claim stores and is used in development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	stamps map[string]models.Stamp // keyed by stamp hash
	claims map[string]string       // stamp hash -> owning address
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		stamps: make(map[string]models.Stamp),
		claims: make(map[string]string),
	}
}

// Claim records address as the owner of hash if nobody owns it yet and
// returns the owner after the call.
func (s *InMemoryStore) Claim(_ context.Context, hash, address string) (string, error) {
	if hash == "" || address == "" {
		return "", fmt.Errorf("hash and address are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.claims[hash]; ok {
		return owner, nil
	}
	s.claims[hash] = address
	return address, nil
}

// Save upserts a stamp by hash. An existing stamp keeps its ID, which is
// copied back into stamp.
func (s *InMemoryStore) Save(_ context.Context, stamp *models.Stamp) error {
	if stamp == nil {
		return fmt.Errorf("stamp is required")
	}
	if stamp.Hash == "" {
		return fmt.Errorf("stamp hash is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.stamps[stamp.Hash]; ok {
		stamp.ID = existing.ID
	}
	stored := *stamp
	stored.Record = maps.Clone(stamp.Record)
	s.stamps[stamp.Hash] = stored
	return nil
}

// FindByHash returns the stamp with the given hash or ErrNotFound.
func (s *InMemoryStore) FindByHash(_ context.Context, hash string) (*models.Stamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stamp, ok := s.stamps[hash]
	if !ok {
		return nil, ErrNotFound
	}
	stamp.Record = maps.Clone(stamp.Record)
	return &stamp, nil
}

// ListByAddress returns the address's stamps, newest first.
func (s *InMemoryStore) ListByAddress(_ context.Context, address string) ([]*models.Stamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*models.Stamp
	for _, stamp := range s.stamps {
		if stamp.Address != address {
			continue
		}
		stamp.Record = maps.Clone(stamp.Record)
		result = append(result, &stamp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}
