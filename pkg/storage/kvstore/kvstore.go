// Package kvstore implements a storage provider on an embedded Badger
// key-value database. File contents are stored under "file:<path>" keys and
// explicit containers under "dir:<path>" keys.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// ProviderName is the registry key of the Badger provider
const ProviderName = "badger"

const (
	filePrefix = "file:"
	dirPrefix  = "dir:"
)

// Store is a storage provider over a Badger database
type Store struct {
	db *badger.DB
}

// Open opens the database in dir. An empty dir opens an in-memory database.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if strings.TrimSpace(dir) == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger storage: %w", err)
	}
	return &Store{db: db}, nil
}

// FromOptions opens the database at the "dir" option. The option is
// required; in-memory stores are only created through Open.
func FromOptions(opts types.ProviderOptions) (*Store, error) {
	if err := opts.Require("dir"); err != nil {
		return nil, fmt.Errorf("badger storage: %v: %w", err, errdefs.ErrInvalidArgument)
	}
	return Open(opts.String("dir"))
}

// StorageRegistration describes the provider for the storage registry
func StorageRegistration() storage.Registration {
	return storage.Registration{
		Name:        ProviderName,
		DisplayName: "Badger Key-Value Store",
		Description: "Store files in an embedded Badger database directory",
		Factory: func(opts types.ProviderOptions) (storage.Provider, error) {
			return FromOptions(opts)
		},
	}
}

// Close flushes and closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func fileKey(p string) []byte { return []byte(filePrefix + storage.CleanPath(p)) }

// ReadText reads a file as a string
func (s *Store) ReadText(ctx context.Context, p string) (string, error) {
	data, err := s.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary reads a file's bytes
func (s *Store) ReadBinary(_ context.Context, p string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fileKey(p))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("read %s: %w", storage.CleanPath(p), errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", storage.CleanPath(p), err)
	}
	return data, nil
}

// WriteText stores content
func (s *Store) WriteText(ctx context.Context, p string, content string) error {
	return s.WriteBinary(ctx, p, []byte(content))
}

// WriteBinary sets the file's value, replacing any previous content
func (s *Store) WriteBinary(_ context.Context, p string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fileKey(p), buf)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", storage.CleanPath(p), err)
	}
	return nil
}

// DeleteFile removes a file; a missing file is not an error
func (s *Store) DeleteFile(_ context.Context, p string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fileKey(p))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", storage.CleanPath(p), err)
	}
	return nil
}

// scan returns the keys with prefix, with the prefix stripped
func (s *Store) scan(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().KeyCopy(nil)), prefix))
		}
		return nil
	})
	return keys, err
}

func under(dir string) string {
	dir = storage.CleanPath(dir)
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// ListFiles lists files directly under dir whose names end in ext
func (s *Store) ListFiles(_ context.Context, dir string, ext string) ([]string, error) {
	base := under(dir)
	keys, err := s.scan(filePrefix + base)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, k := range keys {
		if strings.Contains(k, "/") || !strings.HasSuffix(k, ext) {
			continue
		}
		out = append(out, base+k)
	}
	return out, nil
}

// ListContainers lists explicit containers and implicit file directories
// directly under dir
func (s *Store) ListContainers(_ context.Context, dir string) ([]string, error) {
	base := under(dir)
	seen := map[string]bool{}
	for _, prefix := range []string{filePrefix, dirPrefix} {
		keys, err := s.scan(prefix + base)
		if err != nil {
			return nil, fmt.Errorf("list containers %s: %w", dir, err)
		}
		for _, k := range keys {
			i := strings.Index(k, "/")
			switch {
			case i > 0:
				seen[base+k[:i]] = true
			case prefix == dirPrefix && k != "":
				seen[base+k] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// CreateContainer records an explicit container
func (s *Store) CreateContainer(_ context.Context, dir string) error {
	name := storage.CleanPath(dir)
	if name == "" {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(dirPrefix+name), []byte{})
	})
	if err != nil {
		return fmt.Errorf("create container %s: %w", name, err)
	}
	return nil
}

// DeleteContainer removes a container and everything below it
func (s *Store) DeleteContainer(_ context.Context, dir string) error {
	name := storage.CleanPath(dir)
	base := under(name)

	var doomed [][]byte
	for _, prefix := range []string{filePrefix, dirPrefix} {
		keys, err := s.scan(prefix + base)
		if err != nil {
			return fmt.Errorf("delete container %s: %w", name, err)
		}
		for _, k := range keys {
			doomed = append(doomed, []byte(prefix+base+k))
		}
	}
	if name != "" {
		doomed = append(doomed, []byte(dirPrefix+name))
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range doomed {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("delete container %s: %w", name, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("delete container %s: %w", name, err)
	}
	return nil
}

var _ storage.Provider = (*Store)(nil)
