package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

// TruckStats aggregates cached maintenance entries for one truck.
type TruckStats struct {
	TruckID    string
	EntryCount int
	TotalCost  float64
	ComputedAt time.Time
}

// maintenanceFields is the subset of a maintenance entry's payload the
// aggregates care about.
type maintenanceFields struct {
	TruckID string  `json:"truck_id"`
	Cost    float64 `json:"cost"`
}

// TruckMaintenanceStats returns per-truck maintenance totals for an owner.
// Results are served from the stats cache when present; any mutation of
// maintenance records invalidates the cache, so a recompute here always
// sees the current snapshot.
func (s *Store) TruckMaintenanceStats(owner string) ([]TruckStats, error) {
	cached, err := s.cachedStats(owner)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	return s.recomputeStats(owner)
}

func (s *Store) cachedStats(owner string) ([]TruckStats, error) {
	rows, err := s.conn.Query(`
		SELECT truck_id, entry_count, total_cost, computed_at
		FROM stats_cache WHERE owner_id = ? ORDER BY truck_id
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query stats cache: %w", err)
	}
	defer rows.Close()

	var result []TruckStats
	for rows.Next() {
		var st TruckStats
		var computedAt string
		if err := rows.Scan(&st.TruckID, &st.EntryCount, &st.TotalCost, &computedAt); err != nil {
			return nil, err
		}
		if st.ComputedAt, err = parseTime(computedAt); err != nil {
			return nil, fmt.Errorf("parse computed_at: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

func (s *Store) recomputeStats(owner string) ([]TruckStats, error) {
	records, err := s.Get(owner, models.CollectionMaintenance)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	byTruck := make(map[string]*TruckStats)
	for _, rec := range records {
		var fields maintenanceFields
		if err := json.Unmarshal(rec.Fields, &fields); err != nil || fields.TruckID == "" {
			continue
		}
		st, ok := byTruck[fields.TruckID]
		if !ok {
			st = &TruckStats{TruckID: fields.TruckID, ComputedAt: now}
			byTruck[fields.TruckID] = st
		}
		st.EntryCount++
		st.TotalCost += fields.Cost
	}

	result := make([]TruckStats, 0, len(byTruck))
	for _, st := range byTruck {
		result = append(result, *st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TruckID < result[j].TruckID })

	err = s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := invalidateStatsTx(tx, owner); err != nil {
			return err
		}
		for _, st := range result {
			if _, err := tx.Exec(`
				INSERT INTO stats_cache (owner_id, truck_id, entry_count, total_cost, computed_at)
				VALUES (?, ?, ?, ?, ?)
			`, owner, st.TruckID, st.EntryCount, st.TotalCost, formatTime(st.ComputedAt)); err != nil {
				return fmt.Errorf("fill stats cache: %w", err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func invalidateStatsTx(tx *sql.Tx, owner string) error {
	if _, err := tx.Exec(`DELETE FROM stats_cache WHERE owner_id = ?`, owner); err != nil {
		return fmt.Errorf("invalidate stats cache: %w", err)
	}
	return nil
}
