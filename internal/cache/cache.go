// package cache provides an optional sqlite-backed lookup cache and run
// journal. Lookup rows survive between runs so reference resolutions
// (account names, contact emails, campaign names) don't burn API quota
// twice; the journal keeps a per-record audit trail keyed by run id.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS lookups (
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	sf_id TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (kind, key)
);

CREATE TABLE IF NOT EXISTS journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stream TEXT NOT NULL,
	object TEXT,
	sf_id TEXT,
	action TEXT NOT NULL,
	error TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_journal_run ON journal (run_id);
`

// Cache wraps the sqlite database holding lookups and the journal.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at path and ensures the schema.
// The path may be ":memory:" for a throwaway cache.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Writes are serialized through one run; a single connection avoids
	// sqlite's writer lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns a cached Salesforce id for a lookup key.
func (c *Cache) Get(kind, key string) (string, bool) {
	var id string
	err := c.db.QueryRow("SELECT sf_id FROM lookups WHERE kind = ? AND key = ?", kind, key).Scan(&id)
	if err != nil {
		return "", false
	}
	return id, true
}

// Put stores a lookup resolution, replacing any previous value.
func (c *Cache) Put(kind, key, id string) error {
	_, err := c.db.Exec(
		"INSERT INTO lookups (kind, key, sf_id) VALUES (?, ?, ?) ON CONFLICT (kind, key) DO UPDATE SET sf_id = excluded.sf_id",
		kind, key, id)
	if err != nil {
		return fmt.Errorf("failed to store lookup: %w", err)
	}
	return nil
}

// Entry is one journal row describing what happened to a record.
type Entry struct {
	RunID     string
	Stream    string
	Object    string
	SFID      string
	Action    string
	Error     string
	CreatedAt time.Time
}

// Record appends an entry to the journal.
func (c *Cache) Record(entry Entry) error {
	_, err := c.db.Exec(
		"INSERT INTO journal (run_id, stream, object, sf_id, action, error) VALUES (?, ?, ?, ?, ?, ?)",
		entry.RunID, entry.Stream, entry.Object, entry.SFID, entry.Action, entry.Error)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// RunEntries returns the journal rows for one run in insertion order.
func (c *Cache) RunEntries(runID string) ([]Entry, error) {
	rows, err := c.db.Query(
		"SELECT run_id, stream, COALESCE(object, ''), COALESCE(sf_id, ''), action, COALESCE(error, ''), created_at FROM journal WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Stream, &e.Object, &e.SFID, &e.Action, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes cache contents.
type Stats struct {
	Lookups int `json:"lookups"`
	Entries int `json:"journal_entries"`
	Runs    int `json:"runs"`
}

// Stats counts lookups, journal rows, and distinct runs.
func (c *Cache) Stats() (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		q    string
		dest *int
	}{
		{"SELECT COUNT(*) FROM lookups", &stats.Lookups},
		{"SELECT COUNT(*) FROM journal", &stats.Entries},
		{"SELECT COUNT(DISTINCT run_id) FROM journal", &stats.Runs},
	}

	for _, query := range queries {
		if err := c.db.QueryRow(query.q).Scan(query.dest); err != nil {
			return nil, fmt.Errorf("failed to gather cache stats: %w", err)
		}
	}
	return stats, nil
}
