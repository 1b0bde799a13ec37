//go:build testutil
// +build testutil

package event_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/leelingzhen/telegram-attendance-bot/internal/attendance"
	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/event"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/testutil/testdb"
)

func seedMember(t *testing.T, ctx context.Context, conn *sql.DB, id int64, name string, gender models.Gender, tier int) {
	t.Helper()
	_, err := conn.ExecContext(ctx, `
		INSERT INTO users (id, name, handle, gender) VALUES ($1, $2, $3, $4)
	`, id, name, name, string(gender))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetTier(ctx, conn, id, tier); err != nil {
		t.Fatal(err)
	}
}

func TestCommitRejectsOccupiedIdentity(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	start := time.Date(2025, 1, 20, 19, 0, 0, 0, time.UTC)
	first := event.New(conn, start)
	if conflict, err := first.HasConflict(ctx); err != nil || conflict {
		t.Fatalf("fresh identity conflicted: %v %v", conflict, err)
	}
	if err := first.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// A second creation at the same start must be stopped by the guard.
	second := event.New(conn, start)
	conflict, err := second.HasConflict(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !conflict {
		t.Fatal("occupied identity reported free")
	}

	// Saving an existing event without moving it is not a conflict.
	loaded, err := event.Load(ctx, conn, first.Event.ID, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	loaded.SetLocation("Evans Road Field")
	if conflict, err := loaded.HasConflict(ctx); err != nil || conflict {
		t.Fatalf("self conflict: %v %v", conflict, err)
	}
	if err := loaded.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	// A rename onto another stored event's identity is a conflict, and
	// rejecting it must leave both events untouched.
	otherStart := start.AddDate(0, 0, 2)
	other := event.New(conn, otherStart)
	if err := other.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	loaded.RescheduleTo(otherStart)
	conflict, err = loaded.HasConflict(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !conflict {
		t.Fatal("rename onto occupied identity reported free")
	}
	still, err := db.GetEvent(ctx, conn, eventid.Encode(start))
	if err != nil || still == nil {
		t.Fatalf("original event disturbed by rejected rename: %v %v", still, err)
	}
	if still.Location != "Evans Road Field" {
		t.Fatalf("original event fields disturbed: %+v", still)
	}
}

// The full reschedule story: indications are collected under one
// identity, the event moves to the next day, and every indication
// follows it.
func TestRescheduleMigratesIndications(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	seedMember(t, ctx, conn, 1, "Alan", models.Male, models.TierMember)
	seedMember(t, ctx, conn, 2, "Bea", models.Female, models.TierMember)
	seedMember(t, ctx, conn, 3, "Carl", models.Male, models.TierMember)

	start := time.Date(2025, 1, 20, 19, 0, 0, 0, time.UTC)
	rec := event.New(conn, start)
	rec.SetLocation("Queenstown Stadium")
	rec.SetAnnouncement("Bring both jerseys", []models.StyleSpan{{Kind: "bold", Offset: 0, Length: 5}})
	if err := rec.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	oldID := rec.Event.ID
	if oldID != 202501201900 {
		t.Fatalf("identity %d", oldID)
	}

	// Everyone starts unindicated.
	pre, err := attendance.NewAggregator(conn).Curate(ctx, oldID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(pre.Unindicated) != 3 {
		t.Fatalf("unindicated before any RSVP: %v", pre.Unindicated)
	}

	alan, err := attendance.LoadRecord(ctx, conn, oldID, 1)
	if err != nil {
		t.Fatal(err)
	}
	alan.SetStatus(true)
	if err := alan.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertAttendance(ctx, conn, models.Attendance{
		EventID: oldID, UserID: 2, Status: models.StatusAbsent, Reason: "exams",
	}); err != nil {
		t.Fatal(err)
	}

	rec.RescheduleTo(start.AddDate(0, 0, 1))
	if conflict, err := rec.HasConflict(ctx); err != nil || conflict {
		t.Fatalf("conflict on free target: %v %v", conflict, err)
	}
	if err := rec.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	newID := rec.Event.ID
	if newID != 202501211900 {
		t.Fatalf("identity after reschedule %d", newID)
	}

	// Indications, spans and the announcement all follow the identity;
	// the old identity answers nothing.
	if n, _ := db.CountAttendance(ctx, conn, newID); n != 2 {
		t.Fatalf("attendance after reschedule: %d", n)
	}
	if n, _ := db.CountAttendance(ctx, conn, oldID); n != 0 {
		t.Fatalf("attendance left under old identity: %d", n)
	}
	if gone, _ := db.GetEvent(ctx, conn, oldID); gone != nil {
		t.Fatalf("event still stored under old identity: %+v", gone)
	}
	moved, err := db.GetEvent(ctx, conn, newID)
	if err != nil || moved == nil {
		t.Fatalf("moved event: %v %v", moved, err)
	}
	if moved.Announcement != "Bring both jerseys" || moved.Location != "Queenstown Stadium" {
		t.Fatalf("moved event fields: %+v", moved)
	}
	spans, err := db.GetSpans(ctx, conn, newID)
	if err != nil || len(spans) != 1 {
		t.Fatalf("moved spans: %v %v", spans, err)
	}

	// The roster reads identically under the new identity, and the
	// silent member is still chased.
	b, err := attendance.NewAggregator(conn).Curate(ctx, newID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.AttendingMale) != 1 || b.AttendingMale[0] != "Alan" {
		t.Fatalf("attending males %v", b.AttendingMale)
	}
	if len(b.Absent) != 1 || b.Absent[0] != "Bea(exams)" {
		t.Fatalf("absent %v", b.Absent)
	}
	if len(b.Unindicated) != 1 || b.Unindicated[0] != "Carl" {
		t.Fatalf("unindicated %v", b.Unindicated)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	seedMember(t, ctx, conn, 1, "Alan", models.Male, models.TierMember)

	rec := event.New(conn, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	if err := rec.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	id := rec.Event.ID
	if err := db.UpsertAttendance(ctx, conn, models.Attendance{EventID: id, UserID: 1, Status: models.StatusAttending}); err != nil {
		t.Fatal(err)
	}

	if err := rec.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if rec.Exists() {
		t.Fatal("record still claims to exist")
	}
	if ev, _ := db.GetEvent(ctx, conn, id); ev != nil {
		t.Fatalf("event survived: %+v", ev)
	}
	if n, _ := db.CountAttendance(ctx, conn, id); n != 0 {
		t.Fatalf("attendance survived: %d", n)
	}
}
