package history

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "hearth.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndRecentTicks(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, state := range []string{"completed", "errored", "turn_budget_exceeded"} {
		err := db.RecordTick(TickRecord{
			ID:        string(rune('a' + i)),
			Started:   base.Add(time.Duration(i) * time.Minute),
			State:     state,
			Turns:     i + 1,
			ToolCalls: i,
			TokensIn:  100,
			TokensOut: 50,
			Output:    "out",
		})
		if err != nil {
			t.Fatalf("RecordTick failed: %v", err)
		}
	}

	records, err := db.RecentTicks(10)
	if err != nil {
		t.Fatalf("RecentTicks failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	// Newest first.
	if records[0].State != "turn_budget_exceeded" {
		t.Errorf("records[0].State = %q", records[0].State)
	}
	if records[2].Turns != 1 {
		t.Errorf("records[2].Turns = %d, want 1", records[2].Turns)
	}
	if !records[0].Started.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Started = %v", records[0].Started)
	}
}

func TestRecentTicksLimit(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		err := db.RecordTick(TickRecord{
			ID:      string(rune('a' + i)),
			Started: time.Now().Add(time.Duration(i) * time.Second),
			State:   "completed",
		})
		if err != nil {
			t.Fatalf("RecordTick failed: %v", err)
		}
	}

	records, err := db.RecentTicks(2)
	if err != nil {
		t.Fatalf("RecentTicks failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
}

func TestPurgeOldTicks(t *testing.T) {
	db := openTestDB(t)

	err := db.RecordTick(TickRecord{ID: "old", Started: time.Now().Add(-48 * time.Hour), State: "completed"})
	if err != nil {
		t.Fatalf("RecordTick failed: %v", err)
	}
	err = db.RecordTick(TickRecord{ID: "new", Started: time.Now(), State: "completed"})
	if err != nil {
		t.Fatalf("RecordTick failed: %v", err)
	}

	deleted, err := db.PurgeOldTicks(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldTicks failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	records, err := db.RecentTicks(10)
	if err != nil {
		t.Fatalf("RecentTicks failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "new" {
		t.Errorf("records = %+v, want only the new tick", records)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	db.Close()
}
