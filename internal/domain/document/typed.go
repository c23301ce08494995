package document

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// readConcurrency bounds the number of in-flight reads issued by ReadMany.
const readConcurrency = 8

// KeyError reports which key of a multi-key read failed.
type KeyError struct {
	Key string
	Err error
}

func (e *KeyError) Error() string { return fmt.Sprintf("%s: %v", e.Key, e.Err) }
func (e *KeyError) Unwrap() error { return e.Err }

// Get reads the document at key into a new T.
func Get[T any](ctx context.Context, s Store, collection, key string) (*T, error) {
	var v T
	if err := s.Read(ctx, collection, key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadMany reads every key of collection concurrently and returns the values
// in the order of keys. The first failure cancels the remaining reads and is
// returned as a *KeyError. Each read is independent: no snapshot across keys
// is implied.
func ReadMany[T any](ctx context.Context, s Store, collection string, keys []string) ([]T, error) {
	out := make([]T, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			if err := s.Read(gctx, collection, key, &out[i]); err != nil {
				return &KeyError{Key: key, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
