package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"github.com/google/uuid"
)

const waitlistColumns = `id, desired_date, desired_start, duration_minutes, owner_id, status,
	notified_at, expires_at, notification_token, created_at`

// JoinWaitlist inserts a waiting entry unless the owner already has an
// active (waiting or notified) entry for the same slot, in which case that
// entry is returned with created=false.
func (db *DB) JoinWaitlist(ctx context.Context, e *models.WaitlistEntry) (entry *models.WaitlistEntry, created bool, err error) {
	err = db.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries
			WHERE owner_id = ? AND desired_date = ? AND desired_start = ? AND status IN (?, ?)
			ORDER BY created_at ASC LIMIT 1`,
			e.OwnerID, timeslot.FormatDate(e.DesiredDate), int(e.DesiredStart),
			string(models.WaitlistWaiting), string(models.WaitlistNotified))
		existing, scanErr := scanWaitlistEntry(row)
		if scanErr == nil {
			entry = existing
			return nil
		}
		if !errors.Is(scanErr, sql.ErrNoRows) {
			return fmt.Errorf("failed to look up waitlist entry: %w", scanErr)
		}

		if e.CreatedAt.IsZero() {
			e.CreatedAt = db.timestamp()
		}
		e.Status = models.WaitlistWaiting
		out, err := tx.ExecContext(ctx, `INSERT INTO waitlist_entries
			(desired_date, desired_start, duration_minutes, owner_id, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			timeslot.FormatDate(e.DesiredDate), int(e.DesiredStart), e.DurationMinutes,
			e.OwnerID, string(e.Status), e.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert waitlist entry: %w", err)
		}
		id, err := out.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		e.ID = id
		entry = e
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, created, nil
}

func (db *DB) GetWaitlistEntry(ctx context.Context, id int64) (*models.WaitlistEntry, error) {
	return getWaitlistEntry(ctx, db, id)
}

func getWaitlistEntry(ctx context.Context, q queryer, id int64) (*models.WaitlistEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id)
	e, err := scanWaitlistEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("waitlist entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	return e, nil
}

type WaitlistFilter struct {
	Date    *time.Time
	OwnerID string
	Status  models.WaitlistStatus
}

// ListWaitlist returns entries in FIFO order.
func (db *DB) ListWaitlist(ctx context.Context, f WaitlistFilter) ([]*models.WaitlistEntry, error) {
	query := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE 1 = 1`
	var args []any
	if f.Date != nil {
		query += ` AND desired_date = ?`
		args = append(args, timeslot.FormatDate(*f.Date))
	}
	if f.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY desired_date ASC, desired_start ASC, created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}
	defer rows.Close()
	return scanWaitlistEntries(rows)
}

func (db *DB) DeleteWaitlistEntry(ctx context.Context, id int64) error {
	out, err := db.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waitlist entry: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("waitlist entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListOverdueNotified returns notified entries whose window closed before now.
func (db *DB) ListOverdueNotified(ctx context.Context, now time.Time, limit int) ([]*models.WaitlistEntry, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries
		WHERE status = ? AND expires_at < ?
		ORDER BY expires_at ASC, id ASC LIMIT ?`,
		string(models.WaitlistNotified), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue waitlist entries: %w", err)
	}
	defer rows.Close()
	return scanWaitlistEntries(rows)
}

type ExpiryResult struct {
	Expired   *models.WaitlistEntry
	Promotion *models.Promotion
}

// ExpireAndPromote moves an overdue notified entry to expired and promotes
// the next waiting entry for the same slot in the same transaction.
// It returns ErrConcurrentModification if the entry was no longer overdue.
func (db *DB) ExpireAndPromote(ctx context.Context, id int64, now time.Time, window time.Duration) (*ExpiryResult, error) {
	result := &ExpiryResult{}
	now = now.UTC()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		out, err := tx.ExecContext(ctx, `UPDATE waitlist_entries SET status = ?
			WHERE id = ? AND status = ? AND expires_at < ?`,
			string(models.WaitlistExpired), id, string(models.WaitlistNotified), now)
		if err != nil {
			return fmt.Errorf("failed to expire waitlist entry: %w", err)
		}
		n, err := out.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return ErrConcurrentModification
		}

		expired, err := getWaitlistEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		result.Expired = expired

		promo, err := promoteNextTx(ctx, tx, expired.DesiredDate, expired.DesiredStart, now, window, models.TriggerExpiry)
		if err != nil {
			return err
		}
		result.Promotion = promo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PromoteEntry notifies a specific waiting entry. Used by the administrative
// notify action.
func (db *DB) PromoteEntry(ctx context.Context, id int64, now time.Time, window time.Duration) (*models.Promotion, error) {
	var promo *models.Promotion
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		e, err := getWaitlistEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if !e.Status.CanTransitionTo(models.WaitlistNotified) {
			return &TransitionError{Entity: "waitlist entry", From: string(e.Status), To: string(models.WaitlistNotified)}
		}
		promo, err = notifyEntryTx(ctx, tx, id, now.UTC(), window, models.TriggerAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return promo, nil
}

// promoteNextTx moves the oldest waiting entry for the slot to notified.
// It returns nil when nobody is waiting.
func promoteNextTx(ctx context.Context, tx *sql.Tx, date time.Time, start timeslot.TimeOfDay,
	now time.Time, window time.Duration, trigger string,
) (*models.Promotion, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM waitlist_entries
		WHERE desired_date = ? AND desired_start = ? AND status = ?
		ORDER BY created_at ASC, id ASC LIMIT 1`,
		timeslot.FormatDate(date), int(start), string(models.WaitlistWaiting)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next waitlist entry: %w", err)
	}
	return notifyEntryTx(ctx, tx, id, now.UTC(), window, trigger)
}

func notifyEntryTx(ctx context.Context, tx *sql.Tx, id int64, now time.Time, window time.Duration, trigger string) (*models.Promotion, error) {
	expires := now.Add(window)
	out, err := tx.ExecContext(ctx, `UPDATE waitlist_entries
		SET status = ?, notified_at = ?, expires_at = ?, notification_token = ?
		WHERE id = ? AND status = ?`,
		string(models.WaitlistNotified), now, expires, uuid.NewString(), id, string(models.WaitlistWaiting))
	if err != nil {
		return nil, fmt.Errorf("failed to promote waitlist entry: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrConcurrentModification
	}

	e, err := getWaitlistEntry(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	return &models.Promotion{Entry: *e, Trigger: trigger}, nil
}

// convertWaitlistTx marks the owner's notified, unexpired entry for the slot
// as converted. It returns nil when there is none.
func convertWaitlistTx(ctx context.Context, tx *sql.Tx, ownerID string, date time.Time,
	start timeslot.TimeOfDay, now time.Time,
) (*models.WaitlistEntry, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM waitlist_entries
		WHERE owner_id = ? AND desired_date = ? AND desired_start = ? AND status = ? AND expires_at >= ?
		ORDER BY created_at ASC LIMIT 1`,
		ownerID, timeslot.FormatDate(date), int(start), string(models.WaitlistNotified), now).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find notified waitlist entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE waitlist_entries SET status = ? WHERE id = ? AND status = ?`,
		string(models.WaitlistConverted), id, string(models.WaitlistNotified)); err != nil {
		return nil, fmt.Errorf("failed to convert waitlist entry: %w", err)
	}
	return getWaitlistEntry(ctx, tx, id)
}

func scanWaitlistEntries(rows *sql.Rows) ([]*models.WaitlistEntry, error) {
	var out []*models.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanWaitlistEntry(row rowScanner) (*models.WaitlistEntry, error) {
	var (
		e                 models.WaitlistEntry
		date, status      string
		start             int
		notified, expires sql.NullTime
	)
	err := row.Scan(&e.ID, &date, &start, &e.DurationMinutes, &e.OwnerID, &status,
		&notified, &expires, &e.NotificationToken, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if e.DesiredDate, err = timeslot.ParseDate(date); err != nil {
		return nil, fmt.Errorf("bad waitlist date %q: %w", date, err)
	}
	e.DesiredStart = timeslot.TimeOfDay(start)
	e.Status = models.WaitlistStatus(status)
	e.NotifiedAt = timePtr(notified)
	e.ExpiresAt = timePtr(expires)
	return &e, nil
}
