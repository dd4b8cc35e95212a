package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/usbdeck/src/music"
)

func newTestHistory(t *testing.T) *SqliteHistory {
	t.Helper()
	history, err := NewSqliteHistory(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	t.Cleanup(func() { history.Close() })
	return history
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	history := newTestHistory(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	records := []music.CopyRecord{
		{ID: "a", Name: "first", USBRoot: "/media/usb", Status: "succeeded", Copied: 3, Total: 3, StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{ID: "b", Name: "second", USBRoot: "/media/usb", Status: "failed", Copied: 1, Total: 4, Error: "disk full", StartedAt: base, FinishedAt: base.Add(2 * time.Minute)},
		{ID: "c", USBRoot: "/media/other", Status: "cancelled", Copied: 0, Total: 2, StartedAt: base, FinishedAt: base.Add(3 * time.Minute)},
	}
	for _, r := range records {
		if err := history.Record(ctx, r); err != nil {
			t.Fatalf("failed to record %s: %v", r.ID, err)
		}
	}

	all, err := history.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}
	if all[1].Error != "disk full" || all[1].Copied != 1 || all[1].Total != 4 {
		t.Errorf("unexpected record %+v", all[1])
	}
	if !all[2].FinishedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("expected finished_at to round-trip, got %v", all[2].FinishedAt)
	}

	limited, err := history.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d rows", len(limited))
	}
}

func TestRecordReplacesExistingRow(t *testing.T) {
	ctx := context.Background()
	history := newTestHistory(t)
	now := time.Now()

	if err := history.Record(ctx, music.CopyRecord{ID: "x", USBRoot: "/u", Status: "running", StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := history.Record(ctx, music.CopyRecord{ID: "x", USBRoot: "/u", Status: "succeeded", Copied: 5, Total: 5, StartedAt: now, FinishedAt: now}); err != nil {
		t.Fatal(err)
	}

	counts, err := history.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["succeeded"] != 1 || counts["running"] != 0 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestRecordValidation(t *testing.T) {
	history := newTestHistory(t)
	if err := history.Record(context.Background(), music.CopyRecord{Status: "succeeded"}); err == nil {
		t.Error("expected error for record without id")
	}
}
