// Package storetest holds the behaviour every document.Store backend must
// show. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Tags  []string `json:"tags"`
}

// Run exercises a fresh store returned by newStore for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) document.Store) {
	t.Run("RoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		in := doc{Name: "margherita", Price: 10.5, Tags: []string{"veg"}}
		require.NoError(t, s.Create(ctx, "items", "margherita", in))

		var out doc
		require.NoError(t, s.Read(ctx, "items", "margherita", &out))
		assert.Equal(t, in, out)

		in.Price = 11
		require.NoError(t, s.Update(ctx, "items", "margherita", in))
		got, err := document.Get[doc](ctx, s, "items", "margherita")
		require.NoError(t, err)
		assert.Equal(t, 11.0, got.Price)

		require.NoError(t, s.Delete(ctx, "items", "margherita"))
		assert.ErrorIs(t, s.Read(ctx, "items", "margherita", &out), document.ErrNotFound)
	})

	t.Run("MissingDocuments", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var out doc
		assert.ErrorIs(t, s.Read(ctx, "items", "nope", &out), document.ErrNotFound)
		assert.ErrorIs(t, s.Update(ctx, "items", "nope", doc{}), document.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "items", "nope"), document.ErrNotFound)

		keys, err := s.List(ctx, "carts")
		require.NoError(t, err)
		assert.Empty(t, keys)
		assert.NotNil(t, keys)
	})

	t.Run("CreateIsExclusive", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const n = 16
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = s.Create(ctx, "carts", "a@b.com", doc{Name: fmt.Sprint(i)})
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			assert.ErrorIs(t, err, document.ErrAlreadyExists)
		}
		assert.Equal(t, 1, wins)

		var out doc
		require.NoError(t, s.Read(ctx, "carts", "a@b.com", &out))
		assert.NotEmpty(t, out.Name)
	})

	t.Run("ConcurrentUpdatesNeverTear", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Create(ctx, "items", "k", doc{Name: "0"}))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = s.Update(ctx, "items", "k", doc{Name: fmt.Sprint(i), Tags: make([]string, 64)})
			}()
			go func() {
				defer wg.Done()
				var out doc
				assert.NoError(t, s.Read(ctx, "items", "k", &out))
			}()
		}
		wg.Wait()
	})

	t.Run("ListSortedAndEscaped", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"b@x.com", "a@x.com", ".hidden", "pepperoni pizza", "50%off"} {
			require.NoError(t, s.Create(ctx, "users", k, doc{Name: k}))
		}
		keys, err := s.List(ctx, "users")
		require.NoError(t, err)
		assert.Equal(t, []string{".hidden", "50%off", "a@x.com", "b@x.com", "pepperoni pizza"}, keys)

		var out doc
		require.NoError(t, s.Read(ctx, "users", ".hidden", &out))
		assert.Equal(t, ".hidden", out.Name)
	})

	t.Run("InvalidKeys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"", ".", "..", "a/b", `a\b`, "../etc"} {
			err := s.Create(ctx, "items", k, doc{})
			assert.True(t, errors.Is(err, document.ErrInvalidKey), "key %q: %v", k, err)
		}
		assert.ErrorIs(t, s.Create(ctx, "../x", "k", doc{}), document.ErrInvalidKey)
	})

	t.Run("LongKeysAgreeAcrossBackends", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		// 198 raw bytes, 264 once spaces are escaped.
		spaced := strings.Repeat("pizza ", 33)
		assert.ErrorIs(t, s.Create(ctx, "items", spaced, doc{}), document.ErrInvalidKey)
		assert.ErrorIs(t, s.Read(ctx, "items", spaced, &doc{}), document.ErrInvalidKey)

		accented := strings.Repeat("é", 50)
		assert.ErrorIs(t, s.Create(ctx, "items", accented, doc{}), document.ErrInvalidKey)

		plain := strings.Repeat("p", 200)
		require.NoError(t, s.Create(ctx, "items", plain, doc{Name: "long"}))
		var got doc
		require.NoError(t, s.Read(ctx, "items", plain, &got))
		assert.Equal(t, "long", got.Name)
	})

	t.Run("ReadMany", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		names := []string{"c", "a", "b"}
		for _, n := range names {
			require.NoError(t, s.Create(ctx, "items", n, doc{Name: n}))
		}
		got, err := document.ReadMany[doc](ctx, s, "items", names)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, n := range names {
			assert.Equal(t, n, got[i].Name)
		}

		_, err = document.ReadMany[doc](ctx, s, "items", []string{"a", "zzz"})
		var ke *document.KeyError
		require.ErrorAs(t, err, &ke)
		assert.Equal(t, "zzz", ke.Key)
		assert.ErrorIs(t, err, document.ErrNotFound)
	})
}
