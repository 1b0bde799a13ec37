package attendance

import (
	"testing"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

func TestShouldResendAnnouncement(t *testing.T) {
	const announcement = "bring your boots"

	cases := []struct {
		name string
		prev models.AttendanceStatus
		next models.AttendanceStatus
		tier int
		ann  string
		want bool
	}{
		{"guest first indication", models.StatusUnset, models.StatusAttending, models.TierGuestMin, announcement, true},
		{"trialist first indication no", models.StatusUnset, models.StatusAbsent, models.TierGuestMax, announcement, true},
		{"member first indication", models.StatusUnset, models.StatusAttending, models.TierMember, announcement, false},
		{"core first indication", models.StatusUnset, models.StatusAttending, models.TierCore, announcement, false},
		{"absent flips to attending", models.StatusAbsent, models.StatusAttending, models.TierMember, announcement, true},
		{"absent flips to attending guest", models.StatusAbsent, models.StatusAttending, models.TierGuestMin, announcement, true},
		{"attending stays attending", models.StatusAttending, models.StatusAttending, models.TierMember, announcement, false},
		{"attending flips to absent", models.StatusAttending, models.StatusAbsent, models.TierMember, announcement, false},
		{"absent stays absent", models.StatusAbsent, models.StatusAbsent, models.TierGuestMin, announcement, false},
		{"no announcement, no push", models.StatusAbsent, models.StatusAttending, models.TierGuestMin, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldResendAnnouncement(tc.prev, tc.next, tc.tier, tc.ann)
			if got != tc.want {
				t.Fatalf("prev=%d next=%d tier=%d: got %v, want %v", tc.prev, tc.next, tc.tier, got, tc.want)
			}
		})
	}
}

func TestRecordPretty(t *testing.T) {
	r := &Record{Status: models.StatusAttending, Reason: "coming late"}
	if got := r.Pretty(); got != "Yes (coming late)" {
		t.Fatalf("got %q", got)
	}
	r = &Record{Status: models.StatusUnset}
	if got := r.Pretty(); got != "Not Indicated" {
		t.Fatalf("got %q", got)
	}
	r = &Record{Status: models.StatusAbsent}
	if got := r.Pretty(); got != "No" {
		t.Fatalf("got %q", got)
	}
}
