package access

import (
	"reflect"
	"testing"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

func TestIsAuthorized(t *testing.T) {
	cases := []struct {
		name     string
		actor    int
		required int
		want     bool
	}{
		{"unregistered below floor", models.TierUnregistered, models.TierUnregistered, false},
		{"pending below floor", models.TierPending, models.TierPending, false},
		{"guest clears floor", models.TierGuestMin, models.TierGuestMin, true},
		{"guest cannot act as member", models.TierGuestMin, models.TierMember, false},
		{"member cannot act as core", models.TierMember, models.TierCore, false},
		{"core acts as core", models.TierCore, models.TierCore, true},
		{"team manager acts as admin", models.TierTeamManager, models.TierAdmin, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAuthorized(tc.actor, tc.required); got != tc.want {
				t.Fatalf("IsAuthorized(%d, %d) = %v", tc.actor, tc.required, got)
			}
		})
	}
}

func TestVisibleLevels(t *testing.T) {
	all := []models.AccessLevel{
		{Tier: models.TierUnregistered, Label: "Unregistered"},
		{Tier: models.TierPending, Label: "Pending Approval"},
		{Tier: models.TierGuestMin, Label: "Guest"},
		{Tier: models.TierGuestMax, Label: "Trialist"},
		{Tier: models.TierMember, Label: "Member"},
		{Tier: models.TierCore, Label: "Core"},
		{Tier: models.TierAdmin, Label: "Admin"},
		{Tier: models.TierTeamManager, Label: "Team Manager"},
	}

	t.Run("core sees everything below team manager", func(t *testing.T) {
		got := visibleLevels(models.TierCore, all)
		want := all[1:7]
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("team manager sees the top tier too", func(t *testing.T) {
		got := visibleLevels(models.TierTeamManager, all)
		want := all[1:]
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("tier zero is never assignable", func(t *testing.T) {
		for _, lv := range visibleLevels(models.TierTeamManager, all) {
			if lv.Tier == models.TierUnregistered {
				t.Fatal("unregistered tier offered for assignment")
			}
		}
	})
}
