package handlers

import (
	"testing"
	"time"
)

// A stale edit keyboard can deliver any edit-screen button to a fresh
// menu session whose record is still nil; every one of those payloads
// must be caught before a dereference.
func TestRequiresRecord(t *testing.T) {
	needRecord := []string{
		evtEditType, evtEditWhen, evtEditEnd, evtEditWhere, evtEditAccess,
		evtEditAcct, evtEditAnn, evtBack, evtDelete, evtDeleteYes, evtSave,
		evtTypePrefix + "Scrim",
		evtAccessPrefix + "4",
	}
	for _, data := range needRecord {
		if !requiresRecord(data) {
			t.Errorf("requiresRecord(%q) = false, want true", data)
		}
	}

	menuLevel := []string{
		evtCancel, evtCreate, evtManage, evtPrev, evtNext,
		"202501201900", // event pick payload loads its own record
	}
	for _, data := range menuLevel {
		if requiresRecord(data) {
			t.Errorf("requiresRecord(%q) = true, want false", data)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Fatal(err)
	}

	got, err := parseDateTime("20/01/2026 1930", loc)
	if err != nil {
		t.Fatalf("parseDateTime: %v", err)
	}
	want := time.Date(2026, 1, 20, 19, 30, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for _, bad := range []string{"", "tomorrow", "2026-01-20 19:30", "20/01/2026", "32/01/2026 1930"} {
		if _, err := parseDateTime(bad, loc); err == nil {
			t.Errorf("parseDateTime(%q) accepted", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("2130")
	if err != nil {
		t.Fatalf("parseClock: %v", err)
	}
	if hour != 21 || minute != 30 {
		t.Fatalf("got %d:%d, want 21:30", hour, minute)
	}

	for _, bad := range []string{"", "930", "24:00", "2460", "2199", "abcd"} {
		if _, _, err := parseClock(bad); err == nil {
			t.Errorf("parseClock(%q) accepted", bad)
		}
	}
}
