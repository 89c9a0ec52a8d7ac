package database

import (
	"context"
	"fmt"
	"time"

	"courtbook/internal/models"
)

// RecordPayment appends a ledger entry. It reports false when an entry with
// the same external reference already exists.
func (db *DB) RecordPayment(ctx context.Context, p *models.Payment) (bool, error) {
	return insertPayment(ctx, db, p, db.timestamp())
}

func insertPayment(ctx context.Context, q queryer, p *models.Payment, now time.Time) (bool, error) {
	out, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO payments
		(reservation_id, amount, method, status, external_reference, gateway_payment_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ReservationID, p.Amount, string(p.Method), string(p.Status),
		p.ExternalReference, p.GatewayPaymentID, now)
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := out.LastInsertId(); err == nil {
		p.ID = id
	}
	p.CreatedAt = now
	return true, nil
}

func (db *DB) ListPayments(ctx context.Context, reservationID string) ([]*models.Payment, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, reservation_id, amount, method, status,
			external_reference, gateway_payment_id, created_at
		FROM payments WHERE reservation_id = ? ORDER BY id ASC`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		var (
			p              models.Payment
			method, status string
		)
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Amount, &method, &status,
			&p.ExternalReference, &p.GatewayPaymentID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Method = models.PaymentMethod(method)
		p.Status = models.PaymentOutcome(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}
