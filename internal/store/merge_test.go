package store

import (
	"testing"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

func mergeRecord(id string, updatedAt time.Time) models.Record {
	return models.Record{ID: id, UpdatedAt: updatedAt}
}

func TestMergeRemoteNewerWins(t *testing.T) {
	now := time.Now()
	local := []models.Record{mergeRecord("a", now)}
	remote := []models.Record{mergeRecord("a", now.Add(time.Second))}

	merged := Merge(local, remote)
	if len(merged) != 1 {
		t.Fatalf("got %d records, want 1", len(merged))
	}
	if !merged[0].UpdatedAt.Equal(remote[0].UpdatedAt) {
		t.Error("newer remote copy did not win")
	}
}

func TestMergeLocalNewerKept(t *testing.T) {
	now := time.Now()
	local := []models.Record{mergeRecord("a", now.Add(time.Second))}
	remote := []models.Record{mergeRecord("a", now)}

	merged := Merge(local, remote)
	if !merged[0].UpdatedAt.Equal(local[0].UpdatedAt) {
		t.Error("newer local copy was overwritten")
	}
}

func TestMergeEqualTimestampKeepsLocal(t *testing.T) {
	now := time.Now()
	local := []models.Record{{ID: "a", OwnerID: "local", UpdatedAt: now}}
	remote := []models.Record{{ID: "a", OwnerID: "remote", UpdatedAt: now}}

	merged := Merge(local, remote)
	if merged[0].OwnerID != "local" {
		t.Error("remote replaced local without being strictly newer")
	}
}

func TestMergeUnionOfIDs(t *testing.T) {
	now := time.Now()
	local := []models.Record{mergeRecord("local-only", now)}
	remote := []models.Record{mergeRecord("remote-only", now)}

	merged := Merge(local, remote)
	if len(merged) != 2 {
		t.Fatalf("got %d records, want union of 2", len(merged))
	}
}

func TestMergeOrdering(t *testing.T) {
	now := time.Now()
	merged := Merge(
		[]models.Record{mergeRecord("b", now), mergeRecord("a", now)},
		[]models.Record{mergeRecord("c", now.Add(time.Second))},
	)

	if merged[0].ID != "c" {
		t.Errorf("most recent not first: %s", merged[0].ID)
	}
	// Ties broken by id
	if merged[1].ID != "a" || merged[2].ID != "b" {
		t.Errorf("tie-break order wrong: %s, %s", merged[1].ID, merged[2].ID)
	}
}

func TestHasNewerData(t *testing.T) {
	now := time.Now()
	cached := []models.Record{mergeRecord("a", now), mergeRecord("b", now)}

	if HasNewerData(cached, cached) {
		t.Error("identical snapshots reported as newer")
	}
	if !HasNewerData(cached, []models.Record{mergeRecord("a", now)}) {
		t.Error("shrunk snapshot not reported as newer")
	}
	if !HasNewerData(cached, []models.Record{
		mergeRecord("a", now), mergeRecord("c", now),
	}) {
		t.Error("unknown id not reported as newer")
	}
	if !HasNewerData(cached, []models.Record{
		mergeRecord("a", now.Add(time.Second)), mergeRecord("b", now),
	}) {
		t.Error("bumped timestamp not reported as newer")
	}
}
