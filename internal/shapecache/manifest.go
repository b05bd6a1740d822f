package shapecache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// ManifestName is the manifest database filename inside the cache root.
const ManifestName = "manifest.db"

// Entry is one promoted archive as recorded in the manifest.
type Entry struct {
	ID        string
	Key       string
	Filename  string
	Bytes     int64
	SHA256    string
	FetchedAt time.Time
}

// Manifest records promoted archives in a SQLite database. It is
// advisory: presence on the filesystem is authoritative, and manifest
// failures never block cache reads.
type Manifest struct {
	db *sql.DB
}

const manifestMigration = `
CREATE TABLE IF NOT EXISTS archives (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	filename   TEXT NOT NULL,
	bytes      INTEGER NOT NULL,
	sha256     TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archives_filename ON archives(filename);
`

// OpenManifest opens (creating if needed) the manifest database at the
// given path, configures WAL mode, and applies the schema.
func OpenManifest(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "manifest: exec %s", pragma)
		}
	}
	if _, err := db.Exec(manifestMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "manifest: migrate")
	}
	return &Manifest{db: db}, nil
}

// Record upserts the manifest row for an archive keyed by its cache key.
func (m *Manifest) Record(ctx context.Context, key, filename string, bytes int64, sha256 string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO archives (id, key, filename, bytes, sha256, fetched_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			filename = excluded.filename,
			bytes = excluded.bytes,
			sha256 = excluded.sha256,
			fetched_at = excluded.fetched_at`,
		uuid.New().String(), key, filename, bytes, sha256, time.Now().UTC(),
	)
	return eris.Wrapf(err, "manifest: record %s", key)
}

// Delete removes the manifest row for key. Absent rows are not an error.
func (m *Manifest) Delete(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM archives WHERE key = ?`, key)
	return eris.Wrapf(err, "manifest: delete %s", key)
}

// List returns every recorded archive ordered by key.
func (m *Manifest) List(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, key, filename, bytes, sha256, fetched_at FROM archives ORDER BY key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Key, &e.Filename, &e.Bytes, &e.SHA256, &e.FetchedAt); err != nil {
			return nil, eris.Wrap(err, "manifest: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "manifest: list iterate")
}

func (m *Manifest) Close() error {
	return m.db.Close()
}
