package store

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

func enqueueN(t *testing.T, s *Store, collection models.Collection, ids ...string) []int64 {
	t.Helper()
	var seqs []int64
	for _, id := range ids {
		seq, err := s.Enqueue(models.QueueEntry{
			Collection: collection,
			Op:         models.OpCreate,
			OwnerID:    "owner1",
			RecordID:   id,
		})
		if err != nil {
			t.Fatalf("Enqueue %s failed: %v", id, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs
}

func TestEnqueueFIFO(t *testing.T) {
	s := setupStore(t)
	seqs := enqueueN(t, s, models.CollectionTrucks, "t1", "t2", "t3")

	if seqs[0] >= seqs[1] || seqs[1] >= seqs[2] {
		t.Errorf("seqs not monotonic: %v", seqs)
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("got %d entries, want 3", len(pending))
	}
	for i, id := range []string{"t1", "t2", "t3"} {
		if pending[i].RecordID != id {
			t.Errorf("entry %d is %s, want %s", i, pending[i].RecordID, id)
		}
	}
}

func TestPendingFiltersByCollection(t *testing.T) {
	s := setupStore(t)
	enqueueN(t, s, models.CollectionTrucks, "t1")
	enqueueN(t, s, models.CollectionParts, "p1", "p2")

	pending, err := s.Pending(models.CollectionParts)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d parts entries, want 2", len(pending))
	}

	all, err := s.PendingAll()
	if err != nil {
		t.Fatalf("PendingAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d total entries, want 3", len(all))
	}
}

func TestAck(t *testing.T) {
	s := setupStore(t)
	seqs := enqueueN(t, s, models.CollectionTrucks, "t1", "t2")

	if err := s.Ack(seqs[0]); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].RecordID != "t2" {
		t.Errorf("wrong queue after ack: %+v", pending)
	}

	if err := s.Ack(seqs[0]); err == nil {
		t.Error("double Ack succeeded")
	}
}

func TestDrainLeavesEntriesQueued(t *testing.T) {
	s := setupStore(t)
	enqueueN(t, s, models.CollectionTrucks, "t1")

	drained, err := s.Drain(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(drained) != 1 {
		t.Fatalf("got %d entries, want 1", len(drained))
	}

	// Nothing acked yet, so the entry must still be there
	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Drain removed an unacked entry")
	}
}

func TestBumpAttempt(t *testing.T) {
	s := setupStore(t)
	seqs := enqueueN(t, s, models.CollectionTrucks, "t1")

	if err := s.BumpAttempt(seqs[0]); err != nil {
		t.Fatalf("BumpAttempt failed: %v", err)
	}
	if err := s.BumpAttempt(seqs[0]); err != nil {
		t.Fatalf("BumpAttempt failed: %v", err)
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending[0].AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", pending[0].AttemptCount)
	}
}

func TestQueueDepth(t *testing.T) {
	s := setupStore(t)
	enqueueN(t, s, models.CollectionTrucks, "t1", "t2")
	enqueueN(t, s, models.CollectionMaintenance, "m1")

	total, perCollection, err := s.QueueDepth()
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if perCollection[models.CollectionTrucks] != 2 || perCollection[models.CollectionMaintenance] != 1 {
		t.Errorf("per-collection counts wrong: %v", perCollection)
	}
}

func TestEnqueuePreservesRecordPayload(t *testing.T) {
	s := setupStore(t)
	rec := makeRecord("t1", time.Now(), `{"name":"Peterbilt"}`)

	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionTrucks,
		Op:         models.OpCreate,
		OwnerID:    "owner1",
		RecordID:   "t1",
		Record:     &rec,
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending[0].Record == nil {
		t.Fatal("queued record payload lost")
	}
	if string(pending[0].Record.Fields) != `{"name":"Peterbilt"}` {
		t.Errorf("queued fields = %s", pending[0].Record.Fields)
	}
	if pending[0].QueuedAt.IsZero() {
		t.Error("queued_at not defaulted")
	}
}

func TestAckRewrite(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	localID := NewLocalID()
	rec := makeRecord(localID, now, `{"name":"Offline Truck"}`)
	if err := s.Upsert("owner1", models.CollectionTrucks, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	seq, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionTrucks,
		Op:         models.OpCreate,
		OwnerID:    "owner1",
		RecordID:   localID,
		Record:     &rec,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// A later queued write pointing at the offline truck
	maint := models.Record{
		ID: "m1", OwnerID: "owner1", Collection: models.CollectionMaintenance,
		Fields:    json.RawMessage(`{"truck_id":"` + localID + `"}`),
		CreatedAt: now, UpdatedAt: now,
	}
	if _, err := s.Enqueue(models.QueueEntry{
		Collection: models.CollectionMaintenance,
		Op:         models.OpCreate,
		OwnerID:    "owner1",
		RecordID:   "m1",
		Record:     &maint,
	}); err != nil {
		t.Fatalf("Enqueue maintenance failed: %v", err)
	}

	canonical := rec
	canonical.ID = "srv-1"
	if err := s.AckRewrite(seq, "owner1", models.CollectionTrucks, localID, canonical); err != nil {
		t.Fatalf("AckRewrite failed: %v", err)
	}

	pending, err := s.Pending(models.CollectionTrucks)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("truck entry still queued: %+v", pending)
	}

	if got, err := s.GetByID("owner1", models.CollectionTrucks, localID); err != nil || got != nil {
		t.Errorf("local id still cached: %+v, err %v", got, err)
	}
	if got, err := s.GetByID("owner1", models.CollectionTrucks, "srv-1"); err != nil || got == nil {
		t.Fatalf("canonical record missing: err %v", err)
	}

	deps, err := s.Pending(models.CollectionMaintenance)
	if err != nil {
		t.Fatalf("Pending maintenance failed: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("maintenance queue = %d entries, want 1", len(deps))
	}
	if !strings.Contains(string(deps[0].Record.Fields), `"srv-1"`) {
		t.Errorf("queued reference not rewritten: %s", deps[0].Record.Fields)
	}
}

func TestAckRewriteRejectsCanonicalID(t *testing.T) {
	s := setupStore(t)
	rec := makeRecord("srv-9", time.Now(), `{}`)

	if err := s.AckRewrite(1, "owner1", models.CollectionTrucks, "srv-9", rec); err == nil {
		t.Fatal("AckRewrite accepted a canonical id")
	}
}
