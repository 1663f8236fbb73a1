package storage

import (
	"context"
	"testing"

	caselaw "github.com/jason-riddle/caselaw-go"
)

func insertTestRecords(t *testing.T, db *DB, texts ...string) []*caselaw.Record {
	t.Helper()
	var records []*caselaw.Record
	for _, text := range texts {
		var rec, err = db.InsertRecord(context.Background(), caselaw.NewRecord{Text: text, Vector: "[1,0]"})
		if err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

func TestInsertRecord(t *testing.T) {
	var db = setupTestDB(t)

	var rec, err = db.InsertRecord(context.Background(), caselaw.NewRecord{
		Text:   "kıdem tazminatı faiz başlangıcı",
		Vector: "[0.1,0.2,0.3]",
	})
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	if rec.ID <= 0 {
		t.Errorf("Expected positive ID, got %d", rec.ID)
	}
	if rec.CreatedAt.Time().IsZero() {
		t.Error("Expected created_at to be set")
	}
	if rec.Vector != "[0.1,0.2,0.3]" {
		t.Errorf("Expected vector to round-trip, got %q", rec.Vector)
	}
}

func TestListAllRecords(t *testing.T) {
	var db = setupTestDB(t)
	var inserted = insertTestRecords(t, db, "birinci", "ikinci", "üçüncü")

	var records, err = db.ListAllRecords(context.Background(), nil)
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}

	if len(records) != len(inserted) {
		t.Fatalf("Expected %d records, got %d", len(inserted), len(records))
	}
	for i, rec := range records {
		if rec.ID != inserted[i].ID {
			t.Errorf("Record %d: expected ID %d, got %d", i, inserted[i].ID, rec.ID)
		}
		if rec.Text != inserted[i].Text {
			t.Errorf("Record %d: expected text %q, got %q", i, inserted[i].Text, rec.Text)
		}
		if rec.CreatedAt.Time().IsZero() {
			t.Errorf("Record %d: created_at not parsed", i)
		}
	}
}

func TestListAllRecordsIgnoresPaging(t *testing.T) {
	var db = setupTestDB(t)
	insertTestRecords(t, db, "a", "b", "c")

	var records, err = db.ListAllRecords(context.Background(), &caselaw.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected 3 records, got %d", len(records))
	}
}

func TestListRecordsColumnsAndPaging(t *testing.T) {
	var db = setupTestDB(t)
	insertTestRecords(t, db, "a", "b", "c", "d")

	var records, err = db.ListRecords(context.Background(), &caselaw.ListOptions{
		Columns:  []string{"id", "vector"},
		Ordering: "id.desc",
		Limit:    2,
		Offset:   1,
	})
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != 3 || records[1].ID != 2 {
		t.Errorf("Expected IDs [3 2], got [%d %d]", records[0].ID, records[1].ID)
	}
	for _, rec := range records {
		if rec.Text != "" {
			t.Errorf("Expected text to be unselected, got %q", rec.Text)
		}
		if rec.Vector != "[1,0]" {
			t.Errorf("Expected vector [1,0], got %q", rec.Vector)
		}
	}
}

func TestListRecordsOffsetWithoutLimit(t *testing.T) {
	var db = setupTestDB(t)
	insertTestRecords(t, db, "a", "b", "c")

	var records, err = db.ListRecords(context.Background(), &caselaw.ListOptions{Offset: 2})
	if err != nil {
		t.Fatalf("Failed to list records: %v", err)
	}
	if len(records) != 1 || records[0].Text != "c" {
		t.Errorf("Expected only record c, got %+v", records)
	}
}

func TestListRecordsRejectsUnknownColumn(t *testing.T) {
	var db = setupTestDB(t)

	var _, err = db.ListRecords(context.Background(), &caselaw.ListOptions{Columns: []string{"id", "metin"}})
	if err == nil {
		t.Error("Expected error for unknown column, got nil")
	}
}

func TestDeleteRecords(t *testing.T) {
	var db = setupTestDB(t)
	var inserted = insertTestRecords(t, db, "a", "b", "c", "d")

	var err = db.DeleteRecords(context.Background(), []int64{inserted[1].ID, inserted[3].ID})
	if err != nil {
		t.Fatalf("Failed to delete records: %v", err)
	}

	var records, err2 = db.ListAllRecords(context.Background(), nil)
	if err2 != nil {
		t.Fatalf("Failed to list records: %v", err2)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Text != "a" || records[1].Text != "c" {
		t.Errorf("Unexpected survivors: %q, %q", records[0].Text, records[1].Text)
	}

	// Deleting nothing is a no-op
	if err := db.DeleteRecords(context.Background(), nil); err != nil {
		t.Errorf("Expected no error deleting no ids, got %v", err)
	}
}

func TestDeleteAllAndCountRecords(t *testing.T) {
	var db = setupTestDB(t)
	insertTestRecords(t, db, "a", "b")

	var count, err = db.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	if err := db.DeleteAllRecords(context.Background()); err != nil {
		t.Fatalf("Failed to delete all records: %v", err)
	}

	count, err = db.CountRecords(context.Background())
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected count 0, got %d", count)
	}
}

func TestCancelledContext(t *testing.T) {
	var db = setupTestDB(t)
	var ctx, cancel = context.WithCancel(context.Background())
	cancel()

	if _, err := db.CountRecords(ctx); err == nil {
		t.Error("Expected error for cancelled context, got nil")
	}
}
