// Package catalog implements the embedded relational store of produced
// mosaics (C2), keyed by content hash. Grounded on SentryShot's
// database/sql + mattn/go-sqlite3 log store: a single *sql.DB, a
// bootstrap-if-missing schema, and serialized writes.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mosaicgen/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS mosaics (
	mosaic_id INTEGER PRIMARY KEY AUTOINCREMENT,
	movie_file_path TEXT NOT NULL,
	mosaic_file_path TEXT NOT NULL,
	size INTEGER NOT NULL,
	density TEXT NOT NULL,
	folder_hierarchy TEXT,
	hash TEXT NOT NULL UNIQUE,
	duration REAL,
	resolution_width REAL,
	resolution_height REAL,
	codec TEXT,
	video_type TEXT,
	creation_date TEXT
);
`

// Catalog is the embedded mosaic store. Writes are serialized by mu; reads
// may proceed concurrently since sqlite3 itself serializes at the
// connection/driver level.
type Catalog struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// OpenInMemory opens a private in-memory catalog, for tests.
func OpenInMemory() (*Catalog, error) {
	return Open(":memory:")
}

func (c *Catalog) Close() error { return c.db.Close() }

// Insert upserts entry by content hash; if a row with the same hash already
// exists, the insert is silently ignored (spec: duplicates never create a
// new row).
func (c *Catalog) Insert(entry model.CatalogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.Exec(`
		INSERT INTO mosaics (
			movie_file_path, mosaic_file_path, size, density, folder_hierarchy,
			hash, duration, resolution_width, resolution_height, codec, video_type, creation_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		entry.MovieFilePath, entry.MosaicFilePath, entry.Size, string(entry.Density), entry.FolderHierarchy,
		entry.ContentHash, entry.Duration, entry.ResolutionWidth, entry.ResolutionHeight,
		entry.Codec, string(entry.VideoType), entry.CreationDate.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert catalog entry: %w", err)
	}
	return nil
}

// IsDuplicate reports whether hash already has a catalog row.
func (c *Catalog) IsDuplicate(hash string) (bool, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM mosaics WHERE hash = ?`, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return count > 0, nil
}

// FetchAll returns all rows, most recent first.
func (c *Catalog) FetchAll() ([]model.CatalogEntry, error) {
	rows, err := c.db.Query(`
		SELECT mosaic_id, movie_file_path, mosaic_file_path, size, density, folder_hierarchy,
		       hash, duration, resolution_width, resolution_height, codec, video_type, creation_date
		FROM mosaics ORDER BY mosaic_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// FetchVariants returns all rows sharing entry.MovieFilePath, excluding
// entry itself (matched by content hash).
func (c *Catalog) FetchVariants(entry model.CatalogEntry) ([]model.CatalogEntry, error) {
	rows, err := c.db.Query(`
		SELECT mosaic_id, movie_file_path, mosaic_file_path, size, density, folder_hierarchy,
		       hash, duration, resolution_width, resolution_height, codec, video_type, creation_date
		FROM mosaics WHERE movie_file_path = ? AND hash != ? ORDER BY mosaic_id DESC
	`, entry.MovieFilePath, entry.ContentHash)
	if err != nil {
		return nil, fmt.Errorf("fetch variants: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Clean removes rows whose movie_file_path no longer exists on disk.
func (c *Catalog) Clean() (int64, error) {
	entries, err := c.FetchAll()
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed int64
	for _, e := range entries {
		if _, err := os.Stat(e.MovieFilePath); os.IsNotExist(err) {
			res, err := c.db.Exec(`DELETE FROM mosaics WHERE mosaic_id = ?`, e.MosaicID)
			if err != nil {
				return removed, fmt.Errorf("clean: delete %d: %w", e.MosaicID, err)
			}
			n, _ := res.RowsAffected()
			removed += n
		}
	}
	return removed, nil
}

func scanEntries(rows *sql.Rows) ([]model.CatalogEntry, error) {
	var out []model.CatalogEntry
	for rows.Next() {
		var e model.CatalogEntry
		var density, videoType, creationDate string
		if err := rows.Scan(
			&e.MosaicID, &e.MovieFilePath, &e.MosaicFilePath, &e.Size, &density, &e.FolderHierarchy,
			&e.ContentHash, &e.Duration, &e.ResolutionWidth, &e.ResolutionHeight,
			&e.Codec, &videoType, &creationDate,
		); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		e.Density = model.Density(density)
		e.VideoType = model.DurationBucket(videoType)
		if t, err := time.Parse(time.RFC3339, creationDate); err == nil {
			e.CreationDate = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
