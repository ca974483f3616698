// Package sqlitestore implements a storage provider that keeps every file in
// a single SQLite database, so a whole project or export travels as one file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// ProviderName is the registry key of the SQLite provider
const ProviderName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	dir        TEXT NOT NULL,
	content    BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_dir ON files(dir);

CREATE TABLE IF NOT EXISTS containers (
	path       TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_containers_parent ON containers(parent);
`

// Store is a storage provider over one SQLite database
type Store struct {
	dbPath string
	db     *sql.DB
}

// Open opens (creating when needed) the database at dbPath and applies the schema
func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("sqlite storage: path is required: %w", errdefs.ErrInvalidArgument)
	}
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite storage: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite storage: %w: %v", errdefs.ErrConnection, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite storage schema: %w", err)
	}
	return &Store{dbPath: dbPath, db: db}, nil
}

// FromOptions opens the database named by the "path" option
func FromOptions(opts types.ProviderOptions) (*Store, error) {
	return Open(opts.String("path"))
}

// StorageRegistration describes the provider for the storage registry
func StorageRegistration() storage.Registration {
	return storage.Registration{
		Name:        ProviderName,
		DisplayName: "SQLite Database",
		Description: "Store files as rows of a single SQLite database file",
		Factory: func(opts types.ProviderOptions) (storage.Provider, error) {
			return FromOptions(opts)
		},
	}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." {
		return ""
	}
	return d
}

// ReadText reads a file as a string
func (s *Store) ReadText(ctx context.Context, p string) (string, error) {
	data, err := s.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary reads a file's bytes
func (s *Store) ReadBinary(ctx context.Context, p string) ([]byte, error) {
	name := storage.CleanPath(p)
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM files WHERE path = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read %s: %w", name, errdefs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// WriteText stores content
func (s *Store) WriteText(ctx context.Context, p string, content string) error {
	return s.WriteBinary(ctx, p, []byte(content))
}

// WriteBinary inserts or replaces a file
func (s *Store) WriteBinary(ctx context.Context, p string, data []byte) error {
	name := storage.CleanPath(p)
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (path, dir, content, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		name, dirOf(name), data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// DeleteFile removes a file; a missing file is not an error
func (s *Store) DeleteFile(ctx context.Context, p string) error {
	name := storage.CleanPath(p)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// ListFiles lists files directly under dir whose names end in ext
func (s *Store) ListFiles(ctx context.Context, dir string, ext string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files WHERE dir = ? ORDER BY path ASC`, storage.CleanPath(dir))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		if strings.HasSuffix(p, ext) {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

// ListContainers lists explicit containers and implicit file directories
// directly under dir
func (s *Store) ListContainers(ctx context.Context, dir string) ([]string, error) {
	dir = storage.CleanPath(dir)
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM containers WHERE parent = ?
		 UNION
		 SELECT DISTINCT dir FROM files WHERE dir <> '' AND dir <> ?
		 ORDER BY 1 ASC`, dir, dir)
	if err != nil {
		return nil, fmt.Errorf("list containers %s: %w", dir, err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("list containers %s: %w", dir, err)
		}
		// file dirs may be nested deeper; reduce to the direct child of dir
		child := directChild(dir, p)
		if child != "" && !seen[child] {
			seen[child] = true
			out = append(out, child)
		}
	}
	return out, rows.Err()
}

func directChild(dir, p string) string {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
		if !strings.HasPrefix(p, prefix) {
			return ""
		}
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" {
		return ""
	}
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return prefix + rest
}

// CreateContainer records an explicit container
func (s *Store) CreateContainer(ctx context.Context, dir string) error {
	name := storage.CleanPath(dir)
	if name == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO containers (path, parent, created_at) VALUES (?, ?, ?) ON CONFLICT(path) DO NOTHING`,
		name, dirOf(name), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create container %s: %w", name, err)
	}
	return nil
}

// DeleteContainer removes a container and everything below it
func (s *Store) DeleteContainer(ctx context.Context, dir string) error {
	name := storage.CleanPath(dir)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	like := escapeLike(name) + "/%"
	if name == "" {
		like = "%"
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path LIKE ? ESCAPE '\'`, like); err != nil {
		return fmt.Errorf("delete container %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM containers WHERE path = ? OR path LIKE ? ESCAPE '\'`, name, like); err != nil {
		return fmt.Errorf("delete container %s: %w", name, err)
	}
	return tx.Commit()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ storage.Provider = (*Store)(nil)
