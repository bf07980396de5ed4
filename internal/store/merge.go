package store

import (
	"sort"

	"github.com/mwhite/fleetsync/internal/models"
)

// Merge reconciles a cached snapshot with a freshly fetched one. The map is
// seeded from local; a remote copy replaces the local one only when its
// UpdatedAt is strictly greater, and unknown ids are added. This recency
// rule is the engine's only conflict resolution: no field-level merging,
// no vector clocks.
func Merge(local, remote []models.Record) []models.Record {
	byID := make(map[string]models.Record, len(local)+len(remote))
	for _, rec := range local {
		byID[rec.ID] = rec
	}
	for _, rec := range remote {
		existing, ok := byID[rec.ID]
		if !ok || rec.UpdatedAt.After(existing.UpdatedAt) {
			byID[rec.ID] = rec
		}
	}

	result := make([]models.Record, 0, len(byID))
	for _, rec := range byID {
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// HasNewerData reports whether fetched carries anything the cache lacks:
// a different record count, an unknown id, or a strictly greater UpdatedAt
// for a known id.
func HasNewerData(cached, fetched []models.Record) bool {
	if len(cached) != len(fetched) {
		return true
	}
	byID := make(map[string]models.Record, len(cached))
	for _, rec := range cached {
		byID[rec.ID] = rec
	}
	for _, rec := range fetched {
		existing, ok := byID[rec.ID]
		if !ok || rec.UpdatedAt.After(existing.UpdatedAt) {
			return true
		}
	}
	return false
}
