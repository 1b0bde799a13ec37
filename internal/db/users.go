package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/leelingzhen/telegram-attendance-bot/internal/ctxutil"
	"github.com/leelingzhen/telegram-attendance-bot/internal/models"
)

// GetUser returns the user joined with their access tier, or (nil, nil)
// when no row exists — an unknown user is a valid state, not an error.
func GetUser(ctx context.Context, database *sql.DB, id int64) (*models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	row := database.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.handle, u.gender, u.notification, u.hidden,
		       COALESCE(a.tier, 0)
		FROM users u
		LEFT JOIN access_control a ON a.user_id = u.id
		WHERE u.id = $1
	`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Handle, &u.Gender, &u.Notification, &u.Hidden, &u.Tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CacheNewUser inserts a first-contact user with an empty profile and
// an unregistered access record, both in one transaction.
func CacheNewUser(ctx context.Context, database *sql.DB, id int64, handle string) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, handle) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, handle); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO access_control (user_id, tier) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, id, models.TierUnregistered); err != nil {
		return err
	}
	return tx.Commit()
}

// RegisterUser fills the profile gathered by the registration flow and
// raises the tier from unregistered to pending in the same transaction.
func RegisterUser(ctx context.Context, database *sql.DB, id int64, name string, gender models.Gender) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET name = $2, gender = $3 WHERE id = $1
	`, id, name, string(gender)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE access_control SET tier = $2 WHERE user_id = $1 AND tier < $2
	`, id, models.TierPending); err != nil {
		return err
	}
	return tx.Commit()
}

func UpdateName(ctx context.Context, database *sql.DB, id int64, name string) error {
	_, err := database.ExecContext(ctx, `UPDATE users SET name = $2 WHERE id = $1`, id, name)
	return err
}

func UpdateNotification(ctx context.Context, database *sql.DB, id int64, on bool) error {
	_, err := database.ExecContext(ctx, `UPDATE users SET notification = $2 WHERE id = $1`, id, on)
	return err
}

// SyncHandle refreshes the stored Telegram handle when the live one has
// drifted. Called opportunistically on every inbound update rather than
// by a scheduled job.
func SyncHandle(ctx context.Context, database *sql.DB, id int64, liveHandle string) error {
	_, err := database.ExecContext(ctx, `
		UPDATE users SET handle = $2 WHERE id = $1 AND handle <> $2
	`, id, liveHandle)
	return err
}

// ListRecipients returns broadcast recipients at or above minTier,
// excluding hidden users; notifiedOnly restricts to the opt-in flag.
// Order is stable so progress counters stay deterministic.
func ListRecipients(ctx context.Context, database *sql.DB, minTier int, notifiedOnly bool) ([]models.User, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.handle, u.gender, u.notification, u.hidden, a.tier
		FROM users u
		JOIN access_control a ON a.user_id = u.id
		WHERE a.tier >= $1
		  AND u.hidden = FALSE
		  AND (NOT $2 OR u.notification = TRUE)
		ORDER BY lower(u.name), u.id
	`, minTier, notifiedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

// ListUsersByTier returns all visible users holding exactly the given tier.
func ListUsersByTier(ctx context.Context, database *sql.DB, tier int) ([]models.User, error) {
	rows, err := database.QueryContext(ctx, `
		SELECT u.id, u.name, u.handle, u.gender, u.notification, u.hidden, a.tier
		FROM users u
		JOIN access_control a ON a.user_id = u.id
		WHERE a.tier = $1 AND u.hidden = FALSE
		ORDER BY lower(u.name), u.id
	`, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Handle, &u.Gender, &u.Notification, &u.Hidden, &u.Tier); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
