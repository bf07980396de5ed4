package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

// Enqueue appends a write to the offline queue. Create entries must already
// carry their local id so the caller can render the record immediately.
func (s *Store) Enqueue(entry models.QueueEntry) (int64, error) {
	var recordJSON sql.NullString
	if entry.Record != nil {
		data, err := json.Marshal(entry.Record)
		if err != nil {
			return 0, fmt.Errorf("marshal queued record: %w", err)
		}
		recordJSON = sql.NullString{String: string(data), Valid: true}
	}

	queuedAt := entry.QueuedAt
	if queuedAt.IsZero() {
		queuedAt = time.Now()
	}

	var seq int64
	err := s.withWriteLock(func() error {
		res, err := s.conn.Exec(`
			INSERT INTO offline_queue (collection, op, owner_id, record_id, record, attempt_count, queued_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(entry.Collection), string(entry.Op), entry.OwnerID,
			entry.RecordID, recordJSON, entry.AttemptCount, formatTime(queuedAt))
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		seq, err = res.LastInsertId()
		return err
	})
	return seq, err
}

// Pending returns the queued writes for one collection in FIFO order.
func (s *Store) Pending(collection models.Collection) ([]models.QueueEntry, error) {
	return s.queryQueue(`
		SELECT seq, collection, op, owner_id, record_id, record, attempt_count, queued_at
		FROM offline_queue WHERE collection = ? ORDER BY seq ASC
	`, string(collection))
}

// PendingAll returns every queued write across collections in FIFO order.
func (s *Store) PendingAll() ([]models.QueueEntry, error) {
	return s.queryQueue(`
		SELECT seq, collection, op, owner_id, record_id, record, attempt_count, queued_at
		FROM offline_queue ORDER BY seq ASC
	`)
}

// Drain snapshots the queue for a collection. Entries stay queued until the
// caller acknowledges each confirmed commit with Ack; anything not acked
// remains for the next flush.
func (s *Store) Drain(collection models.Collection) ([]models.QueueEntry, error) {
	return s.Pending(collection)
}

// Ack removes a queue entry after the remote store confirmed its operation.
func (s *Store) Ack(seq int64) error {
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := ackTx(tx, seq); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// AckRewrite acknowledges a committed offline create and swaps its local id
// for the remote-assigned canonical record in one transaction. A crash can
// therefore never leave the entry gone from the queue with the local id
// still live, or the id rewritten with the entry still queued.
func (s *Store) AckRewrite(seq int64, owner string, collection models.Collection, localID string, canonical models.Record) error {
	if !IsLocalID(localID) {
		return fmt.Errorf("ack rewrite: %q is not a local id", localID)
	}
	return s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := ackTx(tx, seq); err != nil {
			return err
		}
		if err := rewriteIDTx(tx, owner, collection, localID, canonical); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func ackTx(tx *sql.Tx, seq int64) error {
	res, err := tx.Exec(`DELETE FROM offline_queue WHERE seq = ?`, seq)
	if err != nil {
		return fmt.Errorf("ack queue entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ack queue entry: seq %d not found", seq)
	}
	return nil
}

// BumpAttempt increments the attempt counter after a failed commit. Entries
// are retried without bound; the counter exists for observability.
func (s *Store) BumpAttempt(seq int64) error {
	return s.withWriteLock(func() error {
		_, err := s.conn.Exec(
			`UPDATE offline_queue SET attempt_count = attempt_count + 1 WHERE seq = ?`, seq)
		if err != nil {
			return fmt.Errorf("bump attempt: %w", err)
		}
		return nil
	})
}

// QueueDepth returns the number of queued writes, total and per collection.
func (s *Store) QueueDepth() (int, map[models.Collection]int, error) {
	rows, err := s.conn.Query(
		`SELECT collection, COUNT(*) FROM offline_queue GROUP BY collection`)
	if err != nil {
		return 0, nil, fmt.Errorf("queue depth: %w", err)
	}
	defer rows.Close()

	total := 0
	perCollection := make(map[models.Collection]int)
	for rows.Next() {
		var collection string
		var count int
		if err := rows.Scan(&collection, &count); err != nil {
			return 0, nil, err
		}
		perCollection[models.Collection(collection)] = count
		total += count
	}
	return total, perCollection, rows.Err()
}

func (s *Store) queryQueue(query string, args ...any) ([]models.QueueEntry, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		var (
			entry      models.QueueEntry
			collection string
			op         string
			recordJSON sql.NullString
			queuedAt   string
		)
		if err := rows.Scan(&entry.Seq, &collection, &op, &entry.OwnerID,
			&entry.RecordID, &recordJSON, &entry.AttemptCount, &queuedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entry.Collection = models.Collection(collection)
		entry.Op = models.OpType(op)
		if recordJSON.Valid && recordJSON.String != "" {
			rec := &models.Record{}
			if err := json.Unmarshal([]byte(recordJSON.String), rec); err != nil {
				return nil, fmt.Errorf("unmarshal queued record seq=%d: %w", entry.Seq, err)
			}
			entry.Record = rec
		}
		if entry.QueuedAt, err = parseTime(queuedAt); err != nil {
			return nil, fmt.Errorf("parse queued_at seq=%d: %w", entry.Seq, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
