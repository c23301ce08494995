// Package filestore persists documents as one JSON file per key under
// <root>/<collection>/.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/document"
	"github.com/Zhima-Mochi/minishop-delivery/internal/infrastructure/keylock"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability"
	"github.com/Zhima-Mochi/minishop-delivery/internal/observability/logctx"
)

const (
	backendName = "file"
	fileExt     = ".json"
	tmpPrefix   = ".tmp-"
	dirPerm     = 0o755
)

type Store struct {
	root  string
	locks *keylock.Locker
	log   observability.Logger
	ops   observability.Counter // store_operations_total{backend,collection,op,outcome}
}

var _ document.Store = (*Store)(nil)

// New opens (creating if needed) a store rooted at dir.
func New(dir string, tel observability.Observability) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: root directory is required")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Store{
		root:  dir,
		locks: keylock.New(),
		log:   observability.LoggerOf(tel).With(observability.F("component", "filestore")),
		ops:   observability.MetricsOf(tel).Counter(observability.MStoreOperations),
	}, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) Create(ctx context.Context, collection, key string, v any) (err error) {
	defer func() { s.observe(ctx, collection, "create", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("filestore: encode %s/%s: %w", collection, key, err)
	}
	unlock, err := s.locks.Lock(ctx, lockKey(collection, key))
	if err != nil {
		return err
	}
	defer unlock()

	dir, err := s.collectionDir(collection, true)
	if err != nil {
		return err
	}
	tmp, err := writeTemp(dir, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	final := filepath.Join(dir, fileName(key))
	// Link fails if final exists, making check-and-create a single step even
	// across processes sharing the directory.
	linkErr := os.Link(tmp, final)
	switch {
	case linkErr == nil:
		return nil
	case errors.Is(linkErr, fs.ErrExist):
		return document.ErrAlreadyExists
	}
	// Filesystems without hard links: the key lock still makes this exclusive
	// within the process.
	if _, statErr := os.Stat(final); statErr == nil {
		return document.ErrAlreadyExists
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("filestore: stat %s/%s: %w", collection, key, statErr)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("filestore: create %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, collection, key string, dst any) (err error) {
	defer func() { s.observe(ctx, collection, "read", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(s.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return document.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("filestore: read %s/%s: %w", collection, key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("filestore: decode %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, key string, v any) (err error) {
	defer func() { s.observe(ctx, collection, "update", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("filestore: encode %s/%s: %w", collection, key, err)
	}
	unlock, err := s.locks.Lock(ctx, lockKey(collection, key))
	if err != nil {
		return err
	}
	defer unlock()

	final := s.path(collection, key)
	if _, err := os.Stat(final); errors.Is(err, fs.ErrNotExist) {
		return document.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("filestore: stat %s/%s: %w", collection, key, err)
	}
	tmp, err := writeTemp(filepath.Dir(final), data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filestore: replace %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) (err error) {
	defer func() { s.observe(ctx, collection, "delete", err) }()
	if err := document.ValidateKey(collection, key); err != nil {
		return err
	}
	unlock, err := s.locks.Lock(ctx, lockKey(collection, key))
	if err != nil {
		return err
	}
	defer unlock()

	err = os.Remove(s.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return document.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("filestore: delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string) (_ []string, err error) {
	defer func() { s.observe(ctx, collection, "list", err) }()
	if err := document.ValidateCollection(collection); err != nil {
		return nil, err
	}
	dir, err := s.collectionDir(collection, false)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: list %s: %w", collection, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			logctx.FromOr(ctx, s.log).Warn("store_list_skip_file",
				observability.F("collection", collection),
				observability.F("file", name),
			)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) collectionDir(collection string, create bool) (string, error) {
	dir := filepath.Join(s.root, collection)
	if create {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return "", fmt.Errorf("filestore: create collection %s: %w", collection, err)
		}
	}
	return dir, nil
}

func (s *Store) path(collection, key string) string {
	return filepath.Join(s.root, collection, fileName(key))
}

func (s *Store) observe(ctx context.Context, collection, op string, err error) {
	outcome := outcomeOf(err)
	s.ops.Add(1,
		observability.L("backend", backendName),
		observability.L("collection", collection),
		observability.L("op", op),
		observability.L("outcome", outcome),
	)
	if outcome == "error" {
		logctx.FromOr(ctx, s.log).Error("store_operation_failed",
			observability.F("collection", collection),
			observability.F("op", op),
			observability.F("error", err),
		)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, document.ErrNotFound):
		return "not_found"
	case errors.Is(err, document.ErrAlreadyExists):
		return "exists"
	case errors.Is(err, document.ErrInvalidKey):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// fileName maps a key to a file name that cannot be hidden, traverse
// directories or collide with temp files.
func fileName(key string) string {
	escaped := url.PathEscape(key)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped + fileExt
}

func lockKey(collection, key string) string { return collection + "/" + key }

// writeTemp writes data to a fresh hidden file in dir and returns its path.
func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("filestore: create temp: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("filestore: write temp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("filestore: sync temp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("filestore: close temp: %w", err)
	}
	return name, nil
}
