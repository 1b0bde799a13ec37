//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/eventid"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
	"github.com/leelingzhen/telegram-attendance-bot/internal/testutil/testdb"
)

func mustUser(t *testing.T, ctx context.Context, conn *sql.DB, id int64, name, handle string, gender models.Gender, tier int, notification bool) {
	t.Helper()
	_, err := conn.ExecContext(ctx, `
		INSERT INTO users (id, name, handle, gender, notification)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, handle, string(gender), notification)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetTier(ctx, conn, id, tier); err != nil {
		t.Fatal(err)
	}
}

func mustEvent(t *testing.T, ctx context.Context, conn *sql.DB, id eventid.ID, access int) models.Event {
	t.Helper()
	start, err := id.Time(time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	ev := models.Event{
		ID:            id,
		EventType:     "Field Training",
		StartAt:       start,
		EndAt:         start.Add(2 * time.Hour),
		Location:      "Queenstown Stadium",
		AccessControl: access,
	}
	if err := db.InsertEvent(ctx, conn, ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestRenameEventCascades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	mustUser(t, ctx, conn, 11, "Alice", "alice", models.Female, models.TierMember, true)
	mustUser(t, ctx, conn, 12, "Ben", "ben", models.Male, models.TierMember, true)

	oldID := eventid.ID(202501201900)
	ev := mustEvent(t, ctx, conn, oldID, models.TierGuestMin)

	for _, uid := range []int64{11, 12} {
		err := db.UpsertAttendance(ctx, conn, models.Attendance{
			EventID: oldID, UserID: uid, Status: models.StatusAttending,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := db.UpdateAnnouncement(ctx, conn, oldID, "bring boots", []models.StyleSpan{{Kind: "bold", Offset: 0, Length: 5}}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertLiveMessage(ctx, conn, models.LiveMessage{EventID: oldID, ChatID: 99, MessageID: 5}); err != nil {
		t.Fatal(err)
	}

	newID := eventid.ID(202501211900)
	newStart, _ := newID.Time(time.UTC)
	ev.ID = newID
	ev.StartAt = newStart
	ev.EndAt = newStart.Add(2 * time.Hour)
	if err := db.RenameEvent(ctx, conn, oldID, ev); err != nil {
		t.Fatal(err)
	}

	// Every dependent row must follow the identity; none may remain
	// behind under the old one.
	if n, err := db.CountAttendance(ctx, conn, newID); err != nil || n != 2 {
		t.Fatalf("attendance under new id: n=%d err=%v", n, err)
	}
	if n, err := db.CountAttendance(ctx, conn, oldID); err != nil || n != 0 {
		t.Fatalf("attendance left under old id: n=%d err=%v", n, err)
	}
	spans, err := db.GetSpans(ctx, conn, newID)
	if err != nil || len(spans) != 1 {
		t.Fatalf("spans under new id: %v err=%v", spans, err)
	}
	lives, err := db.ListLiveMessages(ctx, conn, newID)
	if err != nil || len(lives) != 1 {
		t.Fatalf("live messages under new id: %v err=%v", lives, err)
	}
	if got, err := db.GetEvent(ctx, conn, oldID); err != nil || got != nil {
		t.Fatalf("old event still present: %v err=%v", got, err)
	}
}

func TestDeleteEventCascades(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	mustUser(t, ctx, conn, 21, "Cara", "cara", models.Female, models.TierMember, true)
	id := eventid.ID(202503010930)
	mustEvent(t, ctx, conn, id, models.TierGuestMin)

	if err := db.UpsertAttendance(ctx, conn, models.Attendance{EventID: id, UserID: 21, Status: models.StatusAttending}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertLiveMessage(ctx, conn, models.LiveMessage{EventID: id, ChatID: 7, MessageID: 3}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteEvent(ctx, conn, id); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.CountAttendance(ctx, conn, id); n != 0 {
		t.Fatalf("attendance survived delete: %d", n)
	}
	if lives, _ := db.ListLiveMessages(ctx, conn, id); len(lives) != 0 {
		t.Fatalf("live messages survived delete: %v", lives)
	}
	if ev, _ := db.GetEvent(ctx, conn, id); ev != nil {
		t.Fatalf("event survived delete: %v", ev)
	}
}

func TestUpsertAttendanceOverwrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	mustUser(t, ctx, conn, 31, "Dan", "dan", models.Male, models.TierMember, true)
	id := eventid.ID(202504051800)
	mustEvent(t, ctx, conn, id, models.TierGuestMin)

	if err := db.UpsertAttendance(ctx, conn, models.Attendance{EventID: id, UserID: 31, Status: models.StatusAbsent, Reason: "injured"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertAttendance(ctx, conn, models.Attendance{EventID: id, UserID: 31, Status: models.StatusAttending}); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetAttendance(ctx, conn, id, 31)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != models.StatusAttending || got.Reason != "" {
		t.Fatalf("got %+v", got)
	}
	if n, _ := db.CountAttendance(ctx, conn, id); n != 1 {
		t.Fatalf("duplicate rows after upsert: %d", n)
	}
}

func TestListFutureEventsGatesByTier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	open := eventid.ID(202506011000)
	membersOnly := eventid.ID(202506021000)
	past := eventid.ID(202401011000)
	mustEvent(t, ctx, conn, open, models.TierGuestMin)
	mustEvent(t, ctx, conn, membersOnly, models.TierMember)
	mustEvent(t, ctx, conn, past, models.TierGuestMin)

	after := eventid.ID(202501011200)

	guestView, err := db.ListFutureEvents(ctx, conn, after, models.TierGuestMin)
	if err != nil {
		t.Fatal(err)
	}
	if len(guestView) != 1 || guestView[0].ID != open {
		t.Fatalf("guest view %v", guestView)
	}

	memberView, err := db.ListFutureEvents(ctx, conn, after, models.TierMember)
	if err != nil {
		t.Fatal(err)
	}
	if len(memberView) != 2 || memberView[0].ID != open || memberView[1].ID != membersOnly {
		t.Fatalf("member view %v", memberView)
	}
}

func TestBucketQueriesPartitionEligibleUsers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	id := eventid.ID(202507101900)
	mustEvent(t, ctx, conn, id, models.TierGuestMin)

	// Across statuses and tiers: attending member, absent member,
	// silent member, attending guest, silent guest, opted-out member,
	// silent team manager.
	mustUser(t, ctx, conn, 41, "Alan", "alan", models.Male, models.TierMember, true)
	mustUser(t, ctx, conn, 42, "Bea", "bea", models.Female, models.TierMember, true)
	mustUser(t, ctx, conn, 43, "Carl", "carl", models.Male, models.TierCore, true)
	mustUser(t, ctx, conn, 44, "Gwen", "gwen", models.Female, models.TierGuestMin, true)
	mustUser(t, ctx, conn, 45, "Gary", "gary", models.Male, models.TierGuestMax, true)
	mustUser(t, ctx, conn, 46, "Mute", "mute", models.Male, models.TierMember, false)
	mustUser(t, ctx, conn, 47, "Tammy", "tammy", models.Female, models.TierTeamManager, true)

	for _, a := range []models.Attendance{
		{EventID: id, UserID: 41, Status: models.StatusAttending},
		{EventID: id, UserID: 42, Status: models.StatusAbsent, Reason: "overseas"},
		{EventID: id, UserID: 44, Status: models.StatusAttending},
	} {
		if err := db.UpsertAttendance(ctx, conn, a); err != nil {
			t.Fatal(err)
		}
	}

	attendingMale, err := db.MemberAttendance(ctx, conn, id, models.StatusAttending, models.Male)
	if err != nil {
		t.Fatal(err)
	}
	if len(attendingMale) != 1 || attendingMale[0].UserID != 41 {
		t.Fatalf("attending males %v", attendingMale)
	}

	absentFemale, err := db.MemberAttendance(ctx, conn, id, models.StatusAbsent, models.Female)
	if err != nil {
		t.Fatal(err)
	}
	if len(absentFemale) != 1 || absentFemale[0].Reason != "overseas" {
		t.Fatalf("absent females %v", absentFemale)
	}

	guests, err := db.GuestAttendance(ctx, conn, id, models.StatusAttending, models.Female)
	if err != nil {
		t.Fatal(err)
	}
	if len(guests) != 1 || guests[0].UserID != 44 {
		t.Fatalf("attending guests %v", guests)
	}

	// Unindicated: only silent, notified members. The silent guest,
	// the opted-out member, the team manager and everyone with a
	// stored row must be absent from it.
	silent, err := db.UnindicatedMembers(ctx, conn, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(silent) != 1 || silent[0].UserID != 43 {
		t.Fatalf("unindicated %v", silent)
	}
}

func TestGetUserAndTier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	conn := h.DB

	if u, err := db.GetUser(ctx, conn, 404); err != nil || u != nil {
		t.Fatalf("unknown user: %v %v", u, err)
	}
	if tier, err := db.TierOf(ctx, conn, 404); err != nil || tier != 0 {
		t.Fatalf("unknown tier: %d %v", tier, err)
	}

	if err := db.CacheNewUser(ctx, conn, 51, "newbie"); err != nil {
		t.Fatal(err)
	}
	u, err := db.GetUser(ctx, conn, 51)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Tier != models.TierUnregistered || u.Handle != "newbie" {
		t.Fatalf("cached user %+v", u)
	}

	if err := db.RegisterUser(ctx, conn, 51, "Newbie Tan", models.Male); err != nil {
		t.Fatal(err)
	}
	u, err = db.GetUser(ctx, conn, 51)
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "Newbie Tan" || u.Tier != models.TierPending {
		t.Fatalf("registered user %+v", u)
	}

	// Registration must never demote an already approved user.
	if err := db.SetTier(ctx, conn, 51, models.TierMember); err != nil {
		t.Fatal(err)
	}
	if err := db.RegisterUser(ctx, conn, 51, "Newbie Tan", models.Male); err != nil {
		t.Fatal(err)
	}
	if tier, _ := db.TierOf(ctx, conn, 51); tier != models.TierMember {
		t.Fatalf("tier after re-register: %d", tier)
	}
}
