package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

const blockColumns = `id, date, start_minute, end_minute, is_full_day, reason, recurring, recurring_day, created_at`

// CreateBlock inserts a block unless it would cover an active reservation.
// Recurring blocks are checked against reservations dated from onwards.
// The check and the insert share one transaction.
func (db *DB) CreateBlock(ctx context.Context, b *models.Block, from time.Time) error {
	if err := b.Validate(); err != nil {
		return err
	}

	var date any
	if b.Date != nil && !b.Recurring {
		date = timeslot.FormatDate(*b.Date)
	}
	b.CreatedAt = db.timestamp()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		covered, err := reservationsUnder(ctx, tx, b, from)
		if err != nil {
			return err
		}
		for _, r := range covered {
			if b.Covers(r.Interval()) {
				return &BlockConflictError{Reservation: r}
			}
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO blocks (`+blockColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, date, int(b.StartTime), int(b.EndTime), b.IsFullDay, b.Reason, b.Recurring, int(b.RecurringDay), b.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create block: %w", err)
		}
		return nil
	})
}

// reservationsUnder returns the active reservations on the days the block
// would apply to.
func reservationsUnder(ctx context.Context, q queryer, b *models.Block, from time.Time) ([]*models.Reservation, error) {
	if !b.Recurring {
		return listReservations(ctx, q, *b.Date, models.ReservationPendingPayment, models.ReservationConfirmed)
	}

	rows, err := q.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE date >= ? AND status IN (?, ?) AND CAST(strftime('%w', date) AS INTEGER) = ?
		ORDER BY date ASC, start_minute ASC`,
		timeslot.FormatDate(from), string(models.ReservationPendingPayment), string(models.ReservationConfirmed), int(b.RecurringDay))
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations under block: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (db *DB) DeleteBlock(ctx context.Context, id string) error {
	out, err := db.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("block %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListBlocks returns every block, literal dates first in date order.
func (db *DB) ListBlocks(ctx context.Context) ([]*models.Block, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks
		ORDER BY recurring ASC, date ASC, recurring_day ASC, start_minute ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func blocksForDate(ctx context.Context, q queryer, date time.Time) ([]*models.Block, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+blockColumns+` FROM blocks
		WHERE (recurring = 0 AND date = ?) OR (recurring = 1 AND recurring_day = ?)
		ORDER BY is_full_day DESC, start_minute ASC`,
		timeslot.FormatDate(date), int(date.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	defer rows.Close()
	return scanBlocks(rows)
}

func scanBlocks(rows *sql.Rows) ([]*models.Block, error) {
	var out []*models.Block
	for rows.Next() {
		var (
			b                models.Block
			date             sql.NullString
			startMin, endMin int
			day              int
		)
		if err := rows.Scan(&b.ID, &date, &startMin, &endMin, &b.IsFullDay, &b.Reason, &b.Recurring, &day, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		if date.Valid {
			d, err := timeslot.ParseDate(date.String)
			if err != nil {
				return nil, fmt.Errorf("bad block date %q: %w", date.String, err)
			}
			b.Date = &d
		}
		b.StartTime = timeslot.TimeOfDay(startMin)
		b.EndTime = timeslot.TimeOfDay(endMin)
		b.RecurringDay = time.Weekday(day)
		out = append(out, &b)
	}
	return out, rows.Err()
}
