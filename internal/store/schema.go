package store

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

const schema = `
-- Cached record snapshots, one row per record per (owner, collection)
CREATE TABLE IF NOT EXISTS records (
    owner_id   TEXT NOT NULL,
    collection TEXT NOT NULL,
    id         TEXT NOT NULL,
    fields     TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (owner_id, collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_updated
    ON records(owner_id, collection, updated_at);

-- Snapshot freshness per (owner, collection)
CREATE TABLE IF NOT EXISTS cache_meta (
    owner_id    TEXT NOT NULL,
    collection  TEXT NOT NULL,
    last_synced TEXT,
    PRIMARY KEY (owner_id, collection)
);

-- Writes waiting for the remote store; seq gives FIFO order per collection
CREATE TABLE IF NOT EXISTS offline_queue (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection    TEXT NOT NULL,
    op            TEXT NOT NULL,
    owner_id      TEXT NOT NULL,
    record_id     TEXT NOT NULL,
    record        TEXT,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    queued_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queue_collection
    ON offline_queue(collection, seq);

-- Derived per-truck maintenance aggregates, invalidated on mutation
CREATE TABLE IF NOT EXISTS stats_cache (
    owner_id    TEXT NOT NULL,
    truck_id    TEXT NOT NULL,
    entry_count INTEGER NOT NULL,
    total_cost  REAL NOT NULL,
    computed_at TEXT NOT NULL,
    PRIMARY KEY (owner_id, truck_id)
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);
`

// migrate applies additive migrations for databases created by older
// versions. The schema above is idempotent, so re-running it covers
// missing tables; version bumps are recorded in schema_info.
func (s *Store) migrate() error {
	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	var version int
	err := s.conn.QueryRow("SELECT version FROM schema_info LIMIT 1").Scan(&version)
	if err != nil {
		// Fresh database or pre-versioning database
		_, err = s.conn.Exec("INSERT INTO schema_info (version) VALUES (?)", SchemaVersion)
		return err
	}

	if version < SchemaVersion {
		if _, err := s.conn.Exec("UPDATE schema_info SET version = ?", SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}
