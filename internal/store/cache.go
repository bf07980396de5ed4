package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Get returns the cached snapshot for (owner, collection). It never blocks
// beyond the local read and returns an empty slice when nothing is cached.
func (s *Store) Get(owner string, collection models.Collection) ([]models.Record, error) {
	rows, err := s.conn.Query(`
		SELECT id, fields, created_at, updated_at
		FROM records
		WHERE owner_id = ? AND collection = ?
		ORDER BY updated_at DESC, id ASC
	`, owner, string(collection))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	result := []models.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, owner, collection)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// GetByID returns a single cached record, or nil when absent.
func (s *Store) GetByID(owner string, collection models.Collection, id string) (*models.Record, error) {
	row := s.conn.QueryRow(`
		SELECT id, fields, created_at, updated_at
		FROM records
		WHERE owner_id = ? AND collection = ? AND id = ?
	`, owner, string(collection), id)

	var fields, createdAt, updatedAt string
	rec := models.Record{OwnerID: owner, Collection: collection}
	err := row.Scan(&rec.ID, &fields, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if err := fillTimes(&rec, fields, createdAt, updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set atomically replaces the snapshot for (owner, collection) and touches
// its lastSynced timestamp. Readers never observe a partially written
// snapshot: the replace happens in one transaction.
func (s *Store) Set(owner string, collection models.Collection, records []models.Record) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`DELETE FROM records WHERE owner_id = ? AND collection = ?`,
			owner, string(collection)); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}

		for _, rec := range records {
			if err := insertRecordTx(tx, owner, collection, rec); err != nil {
				return err
			}
		}

		if err := touchLastSyncedTx(tx, owner, collection, time.Now()); err != nil {
			return err
		}
		if collection == models.CollectionMaintenance {
			if err := invalidateStatsTx(tx, owner); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Upsert inserts or overwrites a single record by id.
func (s *Store) Upsert(owner string, collection models.Collection, rec models.Record) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := insertRecordTx(tx, owner, collection, rec); err != nil {
			return err
		}
		if collection == models.CollectionMaintenance {
			if err := invalidateStatsTx(tx, owner); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Remove deletes a record from the cache, drops any queued writes that
// still reference it, and invalidates derived aggregates, all in one
// transaction.
func (s *Store) Remove(owner string, collection models.Collection, id string) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`DELETE FROM records WHERE owner_id = ? AND collection = ? AND id = ?`,
			owner, string(collection), id); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}

		// Queued creates/updates for a record the user already deleted
		// would resurrect it on flush; delete entries themselves stay.
		if _, err := tx.Exec(
			`DELETE FROM offline_queue
			 WHERE owner_id = ? AND collection = ? AND record_id = ? AND op != ?`,
			owner, string(collection), id, string(models.OpDelete)); err != nil {
			return fmt.Errorf("drop queued writes: %w", err)
		}

		if err := invalidateStatsTx(tx, owner); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// LastSynced returns when (owner, collection) last saw a successful remote
// snapshot, or ok=false when it has never synced.
func (s *Store) LastSynced(owner string, collection models.Collection) (time.Time, bool, error) {
	var raw sql.NullString
	err := s.conn.QueryRow(`
		SELECT last_synced FROM cache_meta
		WHERE owner_id = ? AND collection = ?
	`, owner, string(collection)).Scan(&raw)
	if err == sql.ErrNoRows || (err == nil && !raw.Valid) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query cache meta: %w", err)
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last_synced: %w", err)
	}
	return t, true, nil
}

// RewriteID swaps a local id for the remote-assigned canonical record.
// The cache row, every payload cross-reference held by the owner's other
// records, and any queued writes are rewritten in a single transaction so
// no reference to the retired local id survives.
func (s *Store) RewriteID(owner string, collection models.Collection, localID string, canonical models.Record) error {
	if !IsLocalID(localID) {
		return fmt.Errorf("rewrite id: %q is not a local id", localID)
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := rewriteIDTx(tx, owner, collection, localID, canonical); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func rewriteIDTx(tx *sql.Tx, owner string, collection models.Collection, localID string, canonical models.Record) error {
	if _, err := tx.Exec(
		`DELETE FROM records WHERE owner_id = ? AND collection = ? AND id = ?`,
		owner, string(collection), localID); err != nil {
		return fmt.Errorf("retire local id: %w", err)
	}
	if err := insertRecordTx(tx, owner, collection, canonical); err != nil {
		return err
	}

	// Cross-references in other records' payloads (e.g. a maintenance
	// entry pointing at a truck created offline) are stored as JSON
	// string values, so a quoted replace rewrites exactly the id.
	oldRef := `"` + localID + `"`
	newRef := `"` + canonical.ID + `"`
	if _, err := tx.Exec(
		`UPDATE records SET fields = replace(fields, ?, ?)
		 WHERE owner_id = ? AND fields LIKE ?`,
		oldRef, newRef, owner, "%"+localID+"%"); err != nil {
		return fmt.Errorf("rewrite payload references: %w", err)
	}

	if _, err := tx.Exec(
		`UPDATE offline_queue
		 SET record_id = CASE WHEN record_id = ? THEN ? ELSE record_id END,
		     record = CASE WHEN record IS NOT NULL THEN replace(record, ?, ?) ELSE record END
		 WHERE owner_id = ?`,
		localID, canonical.ID, oldRef, newRef, owner); err != nil {
		return fmt.Errorf("rewrite queued references: %w", err)
	}

	return invalidateStatsTx(tx, owner)
}

func insertRecordTx(tx *sql.Tx, owner string, collection models.Collection, rec models.Record) error {
	fields := rec.Fields
	if len(fields) == 0 {
		fields = json.RawMessage("{}")
	}
	_, err := tx.Exec(`
		INSERT INTO records (owner_id, collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, collection, id) DO UPDATE SET
			fields = excluded.fields,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, owner, string(collection), rec.ID, string(fields),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func touchLastSyncedTx(tx *sql.Tx, owner string, collection models.Collection, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO cache_meta (owner_id, collection, last_synced)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id, collection) DO UPDATE SET last_synced = excluded.last_synced
	`, owner, string(collection), formatTime(at))
	if err != nil {
		return fmt.Errorf("touch last_synced: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner, owner string, collection models.Collection) (models.Record, error) {
	var fields, createdAt, updatedAt string
	rec := models.Record{OwnerID: owner, Collection: collection}
	if err := row.Scan(&rec.ID, &fields, &createdAt, &updatedAt); err != nil {
		return rec, fmt.Errorf("scan record: %w", err)
	}
	if err := fillTimes(&rec, fields, createdAt, updatedAt); err != nil {
		return rec, err
	}
	return rec, nil
}

func fillTimes(rec *models.Record, fields, createdAt, updatedAt string) error {
	rec.Fields = json.RawMessage(fields)
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return fmt.Errorf("parse updated_at for %s: %w", rec.ID, err)
	}
	return nil
}

// CollectionStatus summarizes one cached collection for status displays.
type CollectionStatus struct {
	Collection models.Collection
	Records    int
	Pending    int
	LastSynced time.Time
	Synced     bool
}

// StatusByCollection reports cache and queue totals per collection for an
// owner.
func (s *Store) StatusByCollection(owner string) ([]CollectionStatus, error) {
	var result []CollectionStatus
	for _, c := range models.Collections {
		st := CollectionStatus{Collection: c}

		if err := s.conn.QueryRow(
			`SELECT COUNT(*) FROM records WHERE owner_id = ? AND collection = ?`,
			owner, string(c)).Scan(&st.Records); err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		if err := s.conn.QueryRow(
			`SELECT COUNT(*) FROM offline_queue WHERE owner_id = ? AND collection = ?`,
			owner, string(c)).Scan(&st.Pending); err != nil {
			return nil, fmt.Errorf("count queue: %w", err)
		}

		last, ok, err := s.LastSynced(owner, c)
		if err != nil {
			return nil, err
		}
		st.LastSynced, st.Synced = last, ok
		result = append(result, st)
	}
	return result, nil
}
