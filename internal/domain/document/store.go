// Package document defines the keyed document store every resource is
// persisted through: one JSON document per (collection, key).
package document

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	Users  = "users"
	Tokens = "tokens"
	Items  = "items"
	Carts  = "carts"
	Orders = "orders"
)

var (
	ErrNotFound      = errors.New("document: not found")
	ErrAlreadyExists = errors.New("document: already exists")
	ErrInvalidKey    = errors.New("document: invalid collection or key")
)

// Store is implemented by every persistence backend.
//
// Writes to the same (collection, key) are serialized; writes to different
// keys proceed independently. Read never observes a partially written value.
type Store interface {
	// Create writes v only if nothing exists at key. The existence check and
	// the write are one indivisible step.
	Create(ctx context.Context, collection, key string, v any) error
	// Read decodes the document at key into dst.
	Read(ctx context.Context, collection, key string, dst any) error
	// Update replaces the whole document at key.
	Update(ctx context.Context, collection, key string, v any) error
	Delete(ctx context.Context, collection, key string) error
	// List returns the keys of collection in ascending order. A missing or
	// empty collection yields an empty slice.
	List(ctx context.Context, collection string) ([]string, error)
}

const (
	maxKeyLen = 200
	// maxEncodedKeyLen bounds the path-escaped key so that a file name built
	// from it stays under the 255-byte NAME_MAX of common filesystems.
	maxEncodedKeyLen = 240
)

var collectionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// ValidateKey rejects names that cannot be stored safely by every backend.
func ValidateKey(collection, key string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	switch {
	case key == "", key == ".", key == "..":
		return fmt.Errorf("%w: empty or reserved key %q", ErrInvalidKey, key)
	case len(key) > maxKeyLen:
		return fmt.Errorf("%w: key longer than %d bytes", ErrInvalidKey, maxKeyLen)
	case !utf8.ValidString(key), strings.ContainsAny(key, "/\\\x00"):
		return fmt.Errorf("%w: key %q contains forbidden characters", ErrInvalidKey, key)
	case len(url.PathEscape(key)) > maxEncodedKeyLen:
		return fmt.Errorf("%w: escaped key longer than %d bytes", ErrInvalidKey, maxEncodedKeyLen)
	}
	return nil
}

func ValidateCollection(collection string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("%w: collection %q", ErrInvalidKey, collection)
	}
	return nil
}
