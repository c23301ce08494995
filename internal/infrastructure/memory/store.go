package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
)

const backendName = "memory"

// Store keeps encoded documents in process memory. Values are stored as JSON
// so callers never share state with the store.
type Store struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
	ops  observability.Counter
}

var _ document.Store = (*Store)(nil)

func NewStore(tel observability.Observability) *Store {
	return &Store{
		docs: make(map[string]map[string][]byte),
		ops:  observability.MetricsOf(tel).Counter(observability.MStoreOperations),
	}
}

func (s *Store) Create(ctx context.Context, collection, key string, v any) (err error) {
	defer func() { s.observe(collection, "create", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory: encode %s/%s: %w", collection, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.docs[collection]
	if c == nil {
		c = make(map[string][]byte)
		s.docs[collection] = c
	}
	if _, exists := c[key]; exists {
		return document.ErrAlreadyExists
	}
	c[key] = data
	return nil
}

func (s *Store) Read(ctx context.Context, collection, key string, dst any) (err error) {
	defer func() { s.observe(collection, "read", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	data, ok := s.docs[collection][key]
	s.mu.RUnlock()

	if !ok {
		return document.ErrNotFound
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("memory: decode %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, key string, v any) (err error) {
	defer func() { s.observe(collection, "update", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory: encode %s/%s: %w", collection, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[collection][key]; !exists {
		return document.ErrNotFound
	}
	s.docs[collection][key] = data
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) (err error) {
	defer func() { s.observe(collection, "delete", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[collection][key]; !exists {
		return document.ErrNotFound
	}
	delete(s.docs[collection], key)
	return nil
}

func (s *Store) List(ctx context.Context, collection string) (_ []string, err error) {
	defer func() { s.observe(collection, "list", err) }()
	if err := document.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.docs[collection]))
	for k := range s.docs[collection] {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys, nil
}

func (s *Store) observe(collection, op string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case err == document.ErrNotFound:
		outcome = "not_found"
	case err == document.ErrAlreadyExists:
		outcome = "exists"
	default:
		outcome = "error"
	}
	s.ops.Add(1,
		observability.L("backend", backendName),
		observability.L("collection", collection),
		observability.L("op", op),
		observability.L("outcome", outcome),
	)
}
