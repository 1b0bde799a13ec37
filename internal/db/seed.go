package db

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// SeedAccessLevels inserts the static tier labels. Idempotent.
func SeedAccessLevels(ctx context.Context, database *sql.DB) error {
	levels := []models.AccessLevel{
		{Tier: models.TierUnregistered, Label: "Unregistered"},
		{Tier: models.TierPending, Label: "Pending Approval"},
		{Tier: models.TierGuestMin, Label: "Guest"},
		{Tier: models.TierGuestMax, Label: "Trialist"},
		{Tier: models.TierMember, Label: "Member"},
		{Tier: models.TierCore, Label: "Core"},
		{Tier: models.TierAdmin, Label: "Admin"},
		{Tier: models.TierTeamManager, Label: "Team Manager"},
	}
	for _, lvl := range levels {
		_, err := database.ExecContext(ctx, `
			INSERT INTO access_levels (tier, label)
			VALUES ($1, $2)
			ON CONFLICT (tier) DO NOTHING
		`, lvl.Tier, lvl.Label)
		if err != nil {
			return err
		}
	}
	return nil
}
