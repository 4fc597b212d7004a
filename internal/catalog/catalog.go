// Package catalog persists which (flavor, version) artifacts have been built.
//
// Every operation runs under one mutex over one SQLite connection, so reads
// from the query surface and writes from the pipeline never interleave. The
// lock covers a single statement; callers never hold it across builds or
// downloads.
package catalog

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/shadowjar/internal/foundation/errors"
	"git.home.luguber.info/inful/shadowjar/internal/logfields"
)

// Store failures. Writes are retryable; the pipeline queues what it cannot record.
var (
	ErrStoreOpen   = errors.StoreError("failed to open catalog").Fatal().Build()
	ErrStoreSchema = errors.StoreError("failed to initialize catalog schema").Fatal().Build()
	ErrStoreWrite  = errors.StoreError("failed to write catalog record").Build()
	ErrStoreQuery  = errors.StoreError("failed to query catalog").Build()
)

// Reader is the read side used by the query surface.
type Reader interface {
	List(ctx context.Context, flavor string) ([]string, error)
	Latest(ctx context.Context, flavor string) (string, bool, error)
	Flavors(ctx context.Context) ([]string, error)
}

// Writer is the write side used by the pipeline.
type Writer interface {
	Record(ctx context.Context, flavor, version string) error
	Has(ctx context.Context, flavor, version string) (bool, error)
}

// Catalog is the SQLite-backed version catalog.
type Catalog struct {
	mu sync.Mutex
	db *sql.DB
}

var (
	_ Reader = (*Catalog)(nil)
	_ Writer = (*Catalog)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	server_type TEXT NOT NULL,
	version TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_versions_server_type ON versions(server_type);
`

// Open opens (creating if needed) the catalog at path. ":memory:" is accepted.
// Initialization is idempotent and leaves existing rows untouched.
func Open(path string) (*Catalog, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, ErrStoreOpen.WithCause(err).WithContext("path", path)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ErrStoreOpen.WithCause(err).WithContext("path", path)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, ErrStoreSchema.WithCause(err).WithContext("path", path)
	}
	slog.Debug("Catalog opened", logfields.Path(path))
	return &Catalog{db: db}, nil
}

// Record appends a (flavor, version) row. Duplicates are allowed.
func (c *Catalog) Record(ctx context.Context, flavor, version string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		"INSERT INTO versions (server_type, version) VALUES (?, ?)", flavor, version)
	if err != nil {
		return ErrStoreWrite.WithCause(err).
			WithContext("flavor", flavor).
			WithContext("version", version)
	}
	return nil
}

// List returns the distinct versions recorded for flavor in first-recorded
// order. Unknown flavors yield an empty slice.
func (c *Catalog) List(ctx context.Context, flavor string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listLocked(ctx, flavor)
}

func (c *Catalog) listLocked(ctx context.Context, flavor string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT version FROM versions WHERE server_type = ? GROUP BY version ORDER BY MIN(id)", flavor)
	if err != nil {
		return nil, ErrStoreQuery.WithCause(err).WithContext("flavor", flavor)
	}
	defer func() { _ = rows.Close() }()

	versions := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, ErrStoreQuery.WithCause(err).WithContext("flavor", flavor)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrStoreQuery.WithCause(err).WithContext("flavor", flavor)
	}
	return versions, nil
}

// Latest returns the greatest recorded version for flavor by dotted-numeric
// ordering. ok is false when nothing is recorded.
func (c *Catalog) Latest(ctx context.Context, flavor string) (string, bool, error) {
	c.mu.Lock()
	versions, err := c.listLocked(ctx, flavor)
	c.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	if len(versions) == 0 {
		return "", false, nil
	}
	return slices.MaxFunc(versions, CompareVersions), true, nil
}

// Has reports whether (flavor, version) has been recorded at least once.
func (c *Catalog) Has(ctx context.Context, flavor, version string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var one int
	err := c.db.QueryRowContext(ctx,
		"SELECT 1 FROM versions WHERE server_type = ? AND version = ? LIMIT 1", flavor, version).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, ErrStoreQuery.WithCause(err).
			WithContext("flavor", flavor).
			WithContext("version", version)
	}
	return true, nil
}

// Flavors returns every flavor with at least one record, sorted.
func (c *Catalog) Flavors(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx, "SELECT DISTINCT server_type FROM versions ORDER BY server_type")
	if err != nil {
		return nil, ErrStoreQuery.WithCause(err)
	}
	defer func() { _ = rows.Close() }()

	out := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, ErrStoreQuery.WithCause(err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrStoreQuery.WithCause(err)
	}
	return out, nil
}

// Close closes the underlying connection.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}

// CompareVersions orders dotted numeric versions ("1.9" < "1.21.4"). Values
// that are not dotted numbers sort below those that are, then lexically.
func CompareVersions(a, b string) int {
	if r := semver.Compare(canonical(a), canonical(b)); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func canonical(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
