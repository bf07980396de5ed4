package models

import (
	"encoding/json"
	"time"
)

// Collection identifies one class of fleet records.
type Collection string

const (
	CollectionTrucks         Collection = "trucks"
	CollectionMaintenance    Collection = "maintenance"
	CollectionParts          Collection = "parts"
	CollectionSuppliers      Collection = "suppliers"
	CollectionPurchaseOrders Collection = "purchase_orders"
	CollectionNotifications  Collection = "notifications"
)

// Collections lists every known collection in a stable order.
var Collections = []Collection{
	CollectionTrucks,
	CollectionMaintenance,
	CollectionParts,
	CollectionSuppliers,
	CollectionPurchaseOrders,
	CollectionNotifications,
}

// ValidCollection reports whether c names a known collection.
func ValidCollection(c Collection) bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// Record is one business entity: a truck, a maintenance entry, a part,
// a supplier, a purchase order, or a notification. Free-form attributes
// live in Fields; the engine only interprets the envelope.
//
// UpdatedAt is the conflict-resolution signal: when two copies of the same
// id are compared, the greater UpdatedAt wins. UpdatedAt >= CreatedAt.
type Record struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Collection Collection      `json:"collection"`
	Fields     json.RawMessage `json:"fields"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.Fields != nil {
		out.Fields = make(json.RawMessage, len(r.Fields))
		copy(out.Fields, r.Fields)
	}
	return out
}

// OpType is the kind of a queued or live write.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Operation is a single write request against a collection.
// Create and update carry the record; delete carries RecordID.
type Operation struct {
	Type       OpType
	Collection Collection
	OwnerID    string
	Record     *Record
	RecordID   string
}

// QueueEntry is one not-yet-committed write waiting for the remote store.
// Seq orders entries FIFO per collection. An entry leaves the queue only
// after the remote store confirms the corresponding operation.
type QueueEntry struct {
	Seq          int64
	Collection   Collection
	Op           OpType
	OwnerID      string
	RecordID     string
	Record       *Record
	AttemptCount int
	QueuedAt     time.Time
}
