package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"courtbook/internal/models"
)

// UpsertOwner creates the owner or refreshes its profile fields.
func (db *DB) UpsertOwner(ctx context.Context, o *models.Owner) error {
	if o.Role == "" {
		o.Role = models.RoleUser
	}
	now := db.timestamp()
	query := `INSERT INTO owners (
				id, full_name, email, phone, telegram_chat_id,
				calendar_synced, calendar_refresh_token, role, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                full_name = excluded.full_name,
                email = excluded.email,
                phone = excluded.phone,
                telegram_chat_id = excluded.telegram_chat_id,
                calendar_synced = excluded.calendar_synced,
                calendar_refresh_token = excluded.calendar_refresh_token,
                role = excluded.role,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		o.ID, o.FullName, o.Email, o.Phone, o.TelegramChatID,
		o.CalendarSynced, o.CalendarRefreshToken, string(o.Role), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert owner: %w", err)
	}
	o.UpdatedAt = now
	return nil
}

func (db *DB) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	var (
		o    models.Owner
		role string
	)
	err := db.QueryRowContext(ctx, `SELECT id, full_name, email, phone, telegram_chat_id,
			calendar_synced, calendar_refresh_token, role, created_at, updated_at
		FROM owners WHERE id = ?`, id).Scan(
		&o.ID, &o.FullName, &o.Email, &o.Phone, &o.TelegramChatID,
		&o.CalendarSynced, &o.CalendarRefreshToken, &role, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get owner: %w", err)
	}
	o.Role = models.Role(role)
	return &o, nil
}
