package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed cache for raw responses from the external
// publication sources. Entries are keyed by source name and request key and
// expire after a TTL, so repeated sync runs within a day don't hit the
// upstream APIs again.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at the given path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS responses (
			source TEXT NOT NULL,
			key TEXT NOT NULL,
			payload BLOB NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (source, key)
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached payload for source and key. The second return value
// is false when no entry exists or the entry is older than ttl.
func (s *Store) Get(source, key string, ttl time.Duration) ([]byte, bool, error) {
	var payload []byte
	var fetchedAt int64

	err := s.db.QueryRow(`
		SELECT payload, fetched_at FROM responses
		WHERE source = ? AND key = ?
	`, source, key).Scan(&payload, &fetchedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	if time.Since(time.Unix(fetchedAt, 0)) > ttl {
		return nil, false, nil
	}
	return payload, true, nil
}

// Put stores payload under source and key, replacing any previous entry.
func (s *Store) Put(source, key string, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO responses (source, key, payload, fetched_at)
		VALUES (?, ?, ?, ?)
	`, source, key, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Purge deletes entries older than ttl and returns how many were removed.
func (s *Store) Purge(ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl).Unix()

	res, err := s.db.Exec(`DELETE FROM responses WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Count returns the number of cached entries.
func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&count)
	return count, err
}
