package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courtbook/internal/models"
)

// GetSetting returns the value of key and whether it is set.
func (db *DB) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, db.timestamp())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SeedSettings inserts settings that are not present yet and leaves existing
// values untouched.
func (db *DB) SeedSettings(ctx context.Context, settings []models.Setting) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		now := db.timestamp()
		for _, s := range settings {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
				s.Key, s.Value, now); err != nil {
				return fmt.Errorf("failed to seed setting %s: %w", s.Key, err)
			}
		}
		return nil
	})
}

func (db *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var out []models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
