// Package access evaluates tier-gated permissions. Tiers are plain
// integers; the policy itself holds no state beyond the store handle.
package access

import (
	"context"
	"database/sql"

	"github.com/leelingzhen/telegram-attendance-bot/internal/db"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

type Policy struct {
	database *sql.DB
}

func New(database *sql.DB) *Policy {
	return &Policy{database: database}
}

// TierOf returns the user's tier; a missing access record is tier 0,
// never an error.
func (p *Policy) TierOf(ctx context.Context, userID int64) (int, error) {
	return db.TierOf(ctx, p.database, userID)
}

// IsAuthorized is the two-level gate: the actor must clear the bot-wide
// floor and the per-action floor.
func IsAuthorized(actorTier, requiredTier int) bool {
	if actorTier < models.BotAccessFloor {
		return false
	}
	return actorTier >= requiredTier
}

// LevelsVisibleTo returns the tiers the actor may assign to others, in
// tier order. Everyone below the top rank sees the tiers strictly below
// the reserved team-manager tier; only a team manager sees the top tier
// itself. Tier 0 is never assignable.
func (p *Policy) LevelsVisibleTo(ctx context.Context, actorTier int) ([]models.AccessLevel, error) {
	all, err := db.ListAccessLevels(ctx, p.database)
	if err != nil {
		return nil, err
	}
	return visibleLevels(actorTier, all), nil
}

func visibleLevels(actorTier int, all []models.AccessLevel) []models.AccessLevel {
	out := make([]models.AccessLevel, 0, len(all))
	for _, lvl := range all {
		if lvl.Tier == models.TierUnregistered {
			continue
		}
		if lvl.Tier >= models.TierTeamManager && actorTier < models.TierTeamManager {
			continue
		}
		out = append(out, lvl)
	}
	return out
}
