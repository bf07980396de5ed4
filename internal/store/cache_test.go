package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mwhite/fleetsync/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeRecord(id string, updatedAt time.Time, fields string) models.Record {
	return models.Record{
		ID:         id,
		OwnerID:    "owner1",
		Collection: models.CollectionTrucks,
		Fields:     json.RawMessage(fields),
		CreatedAt:  updatedAt.Add(-time.Hour),
		UpdatedAt:  updatedAt,
	}
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()

	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(dir, ".fleetsync", "fleet.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file not created")
	}
}

func TestOpenWithoutInit(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("Open succeeded without init")
	}
}

func TestGetEmptyCollection(t *testing.T) {
	s := setupStore(t)

	records, err := s.Get("owner1", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if records == nil {
		t.Error("Get returned nil, want empty slice")
	}
	if len(records) != 0 {
		t.Errorf("Get returned %d records, want 0", len(records))
	}
}

func TestSetAndGet(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	older := makeRecord("t1", now.Add(-time.Minute), `{"name":"Truck 1"}`)
	newer := makeRecord("t2", now, `{"name":"Truck 2"}`)

	if err := s.Set("owner1", models.CollectionTrucks, []models.Record{older, newer}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	records, err := s.Get("owner1", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	// Most recently updated first
	if records[0].ID != "t2" || records[1].ID != "t1" {
		t.Errorf("wrong order: got %s, %s", records[0].ID, records[1].ID)
	}
	if string(records[0].Fields) != `{"name":"Truck 2"}` {
		t.Errorf("fields not preserved: %s", records[0].Fields)
	}
}

func TestSetReplacesSnapshot(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	first := []models.Record{makeRecord("t1", now, `{}`), makeRecord("t2", now, `{}`)}
	if err := s.Set("owner1", models.CollectionTrucks, first); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second := []models.Record{makeRecord("t3", now, `{}`)}
	if err := s.Set("owner1", models.CollectionTrucks, second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	records, err := s.Get("owner1", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "t3" {
		t.Errorf("snapshot not replaced: %+v", records)
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now, `{}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	records, err := s.Get("owner2", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("owner2 sees owner1's records: %+v", records)
	}
}

func TestGetByID(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now, `{"name":"Kenworth"}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec, err := s.GetByID("owner1", models.CollectionTrucks, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec == nil {
		t.Fatal("GetByID returned nil for existing record")
	}
	if rec.ID != "t1" || rec.Collection != models.CollectionTrucks {
		t.Errorf("wrong record: %+v", rec)
	}

	missing, err := s.GetByID("owner1", models.CollectionTrucks, "nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("GetByID returned %+v for missing id", missing)
	}
}

func TestUpsertOverwrites(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now, `{"miles":100}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now.Add(time.Second), `{"miles":200}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rec, err := s.GetByID("owner1", models.CollectionTrucks, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if string(rec.Fields) != `{"miles":200}` {
		t.Errorf("record not overwritten: %s", rec.Fields)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	now := time.Now()
	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now, `{"name":"Volvo"}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionTrucks,
		Op:         models.OpUpdate,
		OwnerID:    "owner1",
		RecordID:   "t1",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	s.Close()

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer reopened.Close()

	rec, err := reopened.GetByID("owner1", models.CollectionTrucks, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec == nil || string(rec.Fields) != `{"name":"Volvo"}` {
		t.Errorf("record lost across reopen: %+v", rec)
	}

	pending, err := reopened.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("queue lost across reopen: %d entries", len(pending))
	}
}

func TestLastSynced(t *testing.T) {
	s := setupStore(t)

	_, ok, err := s.LastSynced("owner1", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("LastSynced failed: %v", err)
	}
	if ok {
		t.Error("LastSynced reported synced before any Set")
	}

	if err := s.Set("owner1", models.CollectionTrucks, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	at, ok, err := s.LastSynced("owner1", models.CollectionTrucks)
	if err != nil {
		t.Fatalf("LastSynced failed: %v", err)
	}
	if !ok {
		t.Fatal("LastSynced not recorded by Set")
	}
	if time.Since(at) > time.Minute {
		t.Errorf("stale last_synced: %v", at)
	}
}

func TestRemoveDropsQueuedWrites(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	rec := makeRecord("t1", now, `{}`)
	if err := s.Upsert("owner1", models.CollectionTrucks, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionTrucks, Op: models.OpUpdate,
		OwnerID: "owner1", RecordID: "t1", Record: &rec,
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionTrucks, Op: models.OpDelete,
		OwnerID: "owner1", RecordID: "t1",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := s.Remove("owner1", models.CollectionTrucks, "t1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	got, err := s.GetByID("owner1", models.CollectionTrucks, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Error("record survived Remove")
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	// The queued update would resurrect the record; the delete must stay
	if len(pending) != 1 || pending[0].Op != models.OpDelete {
		t.Errorf("wrong queue after Remove: %+v", pending)
	}
}

func TestRewriteID(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	localID := NewLocalID()
	if !IsLocalID(localID) {
		t.Fatalf("NewLocalID produced non-local id %q", localID)
	}

	truck := makeRecord(localID, now, `{"name":"Offline Truck"}`)
	if err := s.Upsert("owner1", models.CollectionTrucks, truck); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// A maintenance entry created against the offline truck references it
	maint := models.Record{
		ID: "m1", OwnerID: "owner1", Collection: models.CollectionMaintenance,
		Fields:    json.RawMessage(`{"truck_id":"` + localID + `","cost":50}`),
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Upsert("owner1", models.CollectionMaintenance, maint); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionMaintenance, Op: models.OpCreate,
		OwnerID: "owner1", RecordID: "m1", Record: &maint,
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	canonical := truck
	canonical.ID = "truck-777"
	if err := s.RewriteID("owner1", models.CollectionTrucks, localID, canonical); err != nil {
		t.Fatalf("RewriteID failed: %v", err)
	}

	if rec, _ := s.GetByID("owner1", models.CollectionTrucks, localID); rec != nil {
		t.Error("local id still resolvable after rewrite")
	}
	rec, err := s.GetByID("owner1", models.CollectionTrucks, "truck-777")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec == nil {
		t.Fatal("canonical record missing after rewrite")
	}

	// Payload cross-reference rewritten
	m, err := s.GetByID("owner1", models.CollectionMaintenance, "m1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(m.Fields, &fields); err != nil {
		t.Fatalf("unmarshal fields: %v", err)
	}
	if fields["truck_id"] != "truck-777" {
		t.Errorf("cross-reference not rewritten: %v", fields["truck_id"])
	}

	// Queued record payload rewritten too
	pending, err := s.Pending(models.CollectionMaintenance)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d queue entries, want 1", len(pending))
	}
	var queuedFields map[string]any
	if err := json.Unmarshal(pending[0].Record.Fields, &queuedFields); err != nil {
		t.Fatalf("unmarshal queued fields: %v", err)
	}
	if queuedFields["truck_id"] != "truck-777" {
		t.Errorf("queued cross-reference not rewritten: %v", queuedFields["truck_id"])
	}
}

func TestRewriteIDRejectsCanonicalSource(t *testing.T) {
	s := setupStore(t)
	canonical := makeRecord("truck-1", time.Now(), `{}`)
	if err := s.RewriteID("owner1", models.CollectionTrucks, "truck-0", canonical); err == nil {
		t.Error("RewriteID accepted a non-local source id")
	}
}

// Verifies the on-disk format with an independent sqlite driver: rows
// written through the store must be readable as plain TEXT columns with
// RFC 3339 timestamps.
func TestOnDiskFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := Initialize(dir)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	now := time.Now()
	if err := s.Upsert("owner1", models.CollectionTrucks, makeRecord("t1", now, `{"name":"Mack"}`)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	s.Close()

	raw, err := sql.Open("sqlite3", filepath.Join(dir, ".fleetsync", "fleet.db"))
	if err != nil {
		t.Fatalf("open with independent driver: %v", err)
	}
	defer raw.Close()

	var fields, updatedAt string
	err = raw.QueryRow(
		`SELECT fields, updated_at FROM records WHERE owner_id = 'owner1' AND id = 't1'`).
		Scan(&fields, &updatedAt)
	if err != nil {
		t.Fatalf("read raw row: %v", err)
	}
	if fields != `{"name":"Mack"}` {
		t.Errorf("fields stored as %s", fields)
	}
	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		t.Fatalf("updated_at not RFC 3339: %q", updatedAt)
	}
	if parsed.Sub(now).Abs() > time.Second {
		t.Errorf("updated_at drifted: stored %v, wrote %v", parsed, now)
	}
}

func TestStatusByCollection(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	if err := s.Set("owner1", models.CollectionTrucks, []models.Record{makeRecord("t1", now, `{}`)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionParts, Op: models.OpCreate,
		OwnerID: "owner1", RecordID: "p1",
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	statuses, err := s.StatusByCollection("owner1")
	if err != nil {
		t.Fatalf("StatusByCollection failed: %v", err)
	}
	byName := map[models.Collection]CollectionStatus{}
	for _, st := range statuses {
		byName[st.Collection] = st
	}

	if st := byName[models.CollectionTrucks]; st.Records != 1 || !st.Synced {
		t.Errorf("trucks status wrong: %+v", st)
	}
	if st := byName[models.CollectionParts]; st.Pending != 1 || st.Synced {
		t.Errorf("parts status wrong: %+v", st)
	}
}
