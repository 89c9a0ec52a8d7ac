package database

import (
	"context"
	"fmt"

	"courtbook/internal/models"
)

func (db *DB) RecordAudit(ctx context.Context, e *models.AuditEntry) error {
	e.CreatedAt = db.timestamp()
	out, err := db.ExecContext(ctx, `INSERT INTO audit_log
		(action, entity_type, entity_id, actor_id, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Action, e.EntityType, e.EntityID, e.ActorID, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	if id, err := out.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (db *DB) ListAudit(ctx context.Context, entityType, entityID string) ([]*models.AuditEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, action, entity_type, entity_id, actor_id, details, created_at
		FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY id ASC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.EntityType, &e.EntityID, &e.ActorID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
