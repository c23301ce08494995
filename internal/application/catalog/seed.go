package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	domain "github.com/Zhima-Mochi/minishop-delivery/internal/domain/catalog"
)

// Seed upserts every item of the JSON array read from r and returns how
// many were written. It stops at the first invalid item.
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var items []domain.Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("decode catalog seed: %w", err)
	}
	for i, it := range items {
		if err := s.Upsert(ctx, it); err != nil {
			return i, fmt.Errorf("seed item %q: %w", it.Name, err)
		}
	}
	return len(items), nil
}
