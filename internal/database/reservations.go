package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/timeslot"
)

const reservationColumns = `id, date, start_minute, end_minute, duration_minutes, status, payment_method,
	total_price, owner_id, calendar_event_id, payment_preference_id, created_at, updated_at, version`

// AdmissionCheck decides, against a fresh snapshot taken inside the
// admission transaction, whether the reservation may be inserted.
type AdmissionCheck func(schedule *models.DaySchedule) error

// AdmissionResult is what CreateReservationAtomic committed.
type AdmissionResult struct {
	Reservation *models.Reservation
	// Converted is the waitlist entry of the same owner and slot that the
	// reservation converted, if any.
	Converted *models.WaitlistEntry
}

// CreateReservationAtomic reloads the day inside an immediate transaction,
// runs check against it and inserts the reservation only if check passes.
// A notified, unexpired waitlist entry of the owner for the same slot is
// marked converted in the same transaction.
func (db *DB) CreateReservationAtomic(ctx context.Context, res *models.Reservation, check AdmissionCheck) (*AdmissionResult, error) {
	result := &AdmissionResult{Reservation: res}
	now := db.timestamp()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		schedule, err := loadDaySchedule(ctx, tx, res.Date)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(schedule); err != nil {
				return err
			}
		}

		res.CreatedAt = now
		res.UpdatedAt = now
		res.Version = 1
		if err := insertReservation(ctx, tx, res); err != nil {
			return err
		}

		converted, err := convertWaitlistTx(ctx, tx, res.OwnerID, res.Date, res.StartTime, now)
		if err != nil {
			return err
		}
		result.Converted = converted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertReservation(ctx context.Context, q queryer, res *models.Reservation) error {
	query := `INSERT INTO reservations (` + reservationColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, query,
		res.ID,
		timeslot.FormatDate(res.Date),
		int(res.StartTime),
		int(res.EndTime),
		res.DurationMinutes,
		string(res.Status),
		string(res.PaymentMethod),
		res.TotalPrice,
		res.OwnerID,
		res.CalendarEventID,
		res.PaymentPreferenceID,
		res.CreatedAt,
		res.UpdatedAt,
		res.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (db *DB) GetReservation(ctx context.Context, id string) (*models.Reservation, error) {
	return getReservation(ctx, db, id)
}

func getReservation(ctx context.Context, q queryer, id string) (*models.Reservation, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

// DaySchedule returns the active reservations and applicable blocks of a day.
func (db *DB) DaySchedule(ctx context.Context, date time.Time) (*models.DaySchedule, error) {
	return loadDaySchedule(ctx, db, date)
}

func loadDaySchedule(ctx context.Context, q queryer, date time.Time) (*models.DaySchedule, error) {
	reservations, err := listReservations(ctx, q, date, models.ReservationPendingPayment, models.ReservationConfirmed)
	if err != nil {
		return nil, err
	}
	blocks, err := blocksForDate(ctx, q, date)
	if err != nil {
		return nil, err
	}
	return &models.DaySchedule{
		Date:         timeslot.DateOf(date),
		Reservations: reservations,
		Blocks:       blocks,
	}, nil
}

// ListReservationsByDate returns the reservations of a day ordered by start
// time, optionally restricted to the given statuses.
func (db *DB) ListReservationsByDate(ctx context.Context, date time.Time, statuses ...models.ReservationStatus) ([]*models.Reservation, error) {
	return listReservations(ctx, db, date, statuses...)
}

func listReservations(ctx context.Context, q queryer, date time.Time, statuses ...models.ReservationStatus) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE date = ?`
	args := []any{timeslot.FormatDate(date)}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY start_minute ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ListReservationsByOwner returns an owner's reservations, newest first.
func (db *DB) ListReservationsByOwner(ctx context.Context, ownerID string) ([]*models.Reservation, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE owner_id = ? ORDER BY date DESC, start_minute DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ReservationTransition is a status change applied with its side effects in
// one transaction.
type ReservationTransition struct {
	ReservationID string
	To            models.ReservationStatus
	// From, when set, restricts the statuses the change may start from.
	From []models.ReservationStatus
	// Payment, when set, is inserted into the ledger unless its external
	// reference is already present.
	Payment *models.Payment
	// PromoteWindow, when positive and To is cancelled, promotes the next
	// waiting entry for the freed slot with this notify window.
	PromoteWindow time.Duration
	Trigger       string
}

type TransitionResult struct {
	Reservation    *models.Reservation
	Previous       models.ReservationStatus
	Changed        bool
	LedgerInserted bool
	Promotion      *models.Promotion
}

// TransitionReservation moves a reservation to t.To using a compare-and-swap
// on the current status. Moving to the status it already has is a no-op with
// Changed=false; the ledger insert still runs so a payment is recorded once.
func (db *DB) TransitionReservation(ctx context.Context, t ReservationTransition) (*TransitionResult, error) {
	result := &TransitionResult{}
	now := db.timestamp()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := getReservation(ctx, tx, t.ReservationID)
		if err != nil {
			return err
		}
		result.Previous = res.Status
		result.Reservation = res

		if res.Status != t.To {
			if !res.Status.CanTransitionTo(t.To) || !t.allowsFrom(res.Status) {
				return &TransitionError{Entity: "reservation", From: string(res.Status), To: string(t.To)}
			}
			if err := casReservationStatus(ctx, tx, res, t.To, now); err != nil {
				return err
			}
			result.Changed = true
		}

		if t.Payment != nil {
			inserted, err := insertPayment(ctx, tx, t.Payment, now)
			if err != nil {
				return err
			}
			result.LedgerInserted = inserted
		}

		if result.Changed && t.To == models.ReservationCancelled && t.PromoteWindow > 0 {
			promo, err := promoteNextTx(ctx, tx, res.Date, res.StartTime, now, t.PromoteWindow, t.Trigger)
			if err != nil {
				return err
			}
			result.Promotion = promo
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t ReservationTransition) allowsFrom(s models.ReservationStatus) bool {
	if len(t.From) == 0 {
		return true
	}
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

func casReservationStatus(ctx context.Context, tx *sql.Tx, res *models.Reservation, to models.ReservationStatus, now time.Time) error {
	out, err := tx.ExecContext(ctx, `UPDATE reservations
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = ? AND version = ?`,
		string(to), now, res.ID, string(res.Status), res.Version)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrConcurrentModification
	}
	res.Status = to
	res.UpdatedAt = now
	res.Version++
	return nil
}

func (db *DB) SetPaymentPreference(ctx context.Context, id, preferenceID string) error {
	return db.updateReservationField(ctx, id, "payment_preference_id", preferenceID)
}

func (db *DB) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	return db.updateReservationField(ctx, id, "calendar_event_id", eventID)
}

func (db *DB) updateReservationField(ctx context.Context, id, column, value string) error {
	// column is always one of the fixed names above
	out, err := db.ExecContext(ctx,
		`UPDATE reservations SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, db.timestamp(), id)
	if err != nil {
		return fmt.Errorf("failed to update reservation %s: %w", column, err)
	}
	n, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reservation %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanReservations(rows *sql.Rows) ([]*models.Reservation, error) {
	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		res              models.Reservation
		date, status     string
		method           string
		startMin, endMin int
	)
	err := row.Scan(
		&res.ID, &date, &startMin, &endMin, &res.DurationMinutes, &status, &method,
		&res.TotalPrice, &res.OwnerID, &res.CalendarEventID, &res.PaymentPreferenceID,
		&res.CreatedAt, &res.UpdatedAt, &res.Version,
	)
	if err != nil {
		return nil, err
	}
	if res.Date, err = timeslot.ParseDate(date); err != nil {
		return nil, fmt.Errorf("bad reservation date %q: %w", date, err)
	}
	res.StartTime = timeslot.TimeOfDay(startMin)
	res.EndTime = timeslot.TimeOfDay(endMin)
	res.Status = models.ReservationStatus(status)
	res.PaymentMethod = models.PaymentMethod(method)
	return &res, nil
}
