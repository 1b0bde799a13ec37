package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// TierOf returns the user's access tier, 0 when no record exists.
func TierOf(ctx context.Context, database *sql.DB, userID int64) (int, error) {
	var tier int
	err := database.QueryRowContext(ctx, `
		SELECT tier FROM access_control WHERE user_id = $1
	`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return tier, nil
}

// SetTier upserts the user's access record.
func SetTier(ctx context.Context, database *sql.DB, userID int64, tier int) error {
	_, err := database.ExecContext(ctx, `
		INSERT INTO access_control (user_id, tier) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier
	`, userID, tier)
	return err
}

// ListAccessLevels returns the tier label lookup ordered by tier.
func ListAccessLevels(ctx context.Context, database *sql.DB) ([]models.AccessLevel, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT tier, label FROM access_levels ORDER BY tier
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []models.AccessLevel
	for rows.Next() {
		var lvl models.AccessLevel
		if err := rows.Scan(&lvl.Tier, &lvl.Label); err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	return levels, rows.Err()
}

// TierLabel returns the display label for one tier, "" when unknown.
func TierLabel(ctx context.Context, database *sql.DB, tier int) (string, error) {
	var label string
	err := database.QueryRowContext(ctx, `
		SELECT label FROM access_levels WHERE tier = $1
	`, tier).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return label, nil
}
