package attendance

import (
	"reflect"
	"testing"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

func TestFormatRows(t *testing.T) {
	rows := []db.AttendanceRow{
		{Name: "Alice", Handle: "alice", Tier: models.TierMember, Status: models.StatusAttending, HasReason: true},
		{Name: "Ben", Handle: "benben", Tier: models.TierMember, Status: models.StatusAttending, Reason: "coming at 8", HasReason: true},
		{Name: "Gus", Handle: "gusgus", Tier: models.TierGuestMin, Status: models.StatusAttending, HasReason: true},
		{Name: "Tria", Handle: "", Tier: models.TierGuestMax, Status: models.StatusAttending, HasReason: true},
	}

	t.Run("without usernames", func(t *testing.T) {
		got := FormatRows(rows, false)
		want := []string{
			"Alice",
			"Ben(coming at 8)",
			"(guest) Gus - @gusgus",
			"(guest) Tria - privated",
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("with usernames", func(t *testing.T) {
		got := FormatRows(rows, true)
		want := []string{
			"Alice - @alice",
			"Ben(coming at 8) - @benben",
			"(guest) Gus - @gusgus",
			"(guest) Tria - privated",
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := FormatRows(nil, true); len(got) != 0 {
			t.Fatalf("got %v", got)
		}
	})
}

func TestBucketsTotalAttending(t *testing.T) {
	b := Buckets{
		AttendingMale:   []string{"a", "b"},
		AttendingFemale: []string{"c"},
		Absent:          []string{"d"},
		Unindicated:     []string{"e", "f"},
	}
	if b.TotalAttending() != 3 {
		t.Fatalf("got %d", b.TotalAttending())
	}
}
