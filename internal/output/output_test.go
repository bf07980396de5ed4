package output

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
)

func sampleRecord(fields string) models.Record {
	now := time.Now()
	return models.Record{
		ID: "t1", OwnerID: "owner1", Collection: models.CollectionTrucks,
		Fields: json.RawMessage(fields), CreatedAt: now, UpdatedAt: now,
	}
}

func TestFormatRecordLine(t *testing.T) {
	line := FormatRecordLine(sampleRecord(`{"name":"Kenworth W900"}`), false)
	if !strings.Contains(line, "t1") || !strings.Contains(line, "Kenworth W900") {
		t.Errorf("line missing id or title: %q", line)
	}
	if strings.Contains(line, "[pending]") {
		t.Errorf("synced record marked pending: %q", line)
	}

	pending := FormatRecordLine(sampleRecord(`{}`), true)
	if !strings.Contains(pending, "[pending]") {
		t.Errorf("pending marker missing: %q", pending)
	}
}

func TestFormatRecordDetail(t *testing.T) {
	detail := FormatRecordDetail(sampleRecord(`{"name":"Mack","miles":120000}`), false)
	if !strings.Contains(detail, "trucks t1") {
		t.Errorf("header missing: %q", detail)
	}
	if !strings.Contains(detail, "miles") || !strings.Contains(detail, "name") {
		t.Errorf("fields missing: %q", detail)
	}
	// Keys render sorted
	if strings.Index(detail, "miles") > strings.Index(detail, "name") {
		t.Errorf("fields not sorted: %q", detail)
	}
}

func TestRecordTitleFallbacks(t *testing.T) {
	tests := []struct {
		fields string
		want   string
	}{
		{`{"name":"Named"}`, "Named"},
		{`{"title":"Titled"}`, "Titled"},
		{`{"description":"Described"}`, "Described"},
		{`{"name":"Named","description":"Described"}`, "Named"},
		{`{"other":"x"}`, ""},
		{`not json`, ""},
	}
	for _, tt := range tests {
		if got := recordTitle(sampleRecord(tt.fields)); got != tt.want {
			t.Errorf("recordTitle(%s) = %q, want %q", tt.fields, got, tt.want)
		}
	}
}

func TestFormatQueueLine(t *testing.T) {
	line := FormatQueueLine(models.QueueEntry{
		Seq: 7, Collection: models.CollectionParts, Op: models.OpDelete, RecordID: "p1",
	})
	for _, want := range []string{"#7", "delete", "parts", "p1"} {
		if !strings.Contains(line, want) {
			t.Errorf("queue line missing %q: %q", want, line)
		}
	}
}
