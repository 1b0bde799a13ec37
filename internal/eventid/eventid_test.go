package eventid

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Fatal(err)
	}
	times := []time.Time{
		time.Date(2025, 1, 20, 19, 0, 0, 0, loc),
		time.Date(2024, 2, 29, 0, 0, 0, 0, loc),    // leap day
		time.Date(2025, 12, 31, 23, 59, 0, 0, loc), // year boundary
		time.Date(2025, 6, 1, 9, 5, 0, 0, loc),
	}
	for _, want := range times {
		id := Encode(want)
		got, err := id.Time(loc)
		if err != nil {
			t.Fatalf("Time(%d): %v", id, err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip %v -> %d -> %v", want, id, got)
		}
	}
}

func TestEncodeDropsSeconds(t *testing.T) {
	a := time.Date(2025, 1, 20, 19, 0, 0, 0, time.UTC)
	b := a.Add(59 * time.Second)
	if Encode(a) != Encode(b) {
		t.Fatalf("identities differ within the same minute: %d vs %d", Encode(a), Encode(b))
	}
}

func TestOrderingMatchesChronology(t *testing.T) {
	base := time.Date(2025, 1, 20, 19, 0, 0, 0, time.UTC)
	later := []time.Time{
		base.Add(time.Minute),
		base.Add(time.Hour),
		base.AddDate(0, 0, 1),
		base.AddDate(0, 1, 0),
		base.AddDate(1, 0, 0),
	}
	prev := Encode(base)
	for _, ts := range later {
		id := Encode(ts)
		if id <= prev {
			t.Fatalf("%v encoded to %d, not greater than %d", ts, id, prev)
		}
		prev = id
	}
}

func TestValidRejectsImpossibleDigits(t *testing.T) {
	bad := []ID{
		202513201900,  // month 13
		202501321900,  // day 32
		202501202500,  // hour 25
		202501201961,  // minute 61
		202502291900,  // Feb 29 in a non-leap year
		20250120190,   // too short
		2025012019001, // too long
		0,
		-202501201900,
	}
	for _, id := range bad {
		if id.Valid() {
			t.Errorf("%d reported valid", id)
		}
	}
	if !ID(202501201900).Valid() {
		t.Error("202501201900 reported invalid")
	}
	if !ID(202402290930).Valid() {
		t.Error("leap day identity reported invalid")
	}
}

func TestParse(t *testing.T) {
	id, err := Parse("202501201900")
	if err != nil {
		t.Fatal(err)
	}
	if id != 202501201900 {
		t.Fatalf("got %d", id)
	}
	if id.String() != "202501201900" {
		t.Fatalf("String() = %q", id.String())
	}

	for _, s := range []string{"", "abc", "202513201900", "1234"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded", s)
		}
	}
}
