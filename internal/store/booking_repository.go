package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/model"
)

const bookingColumns = `id, slot_id, employer_id, job_id, candidate_id, recruitment_partner_id,
	candidate_name, candidate_email, candidate_phone, status, notes, meeting_link, slot_released,
	completed_at, created_at, updated_at`

// reserveSeatQ is the only statement that increments current_bookings. The
// capacity condition is evaluated at write time under the row lock.
const reserveSeatQ = `UPDATE slots SET current_bookings = current_bookings + 1
	WHERE id = $1 AND is_available AND current_bookings < max_candidates`

const insertBookingQ = `INSERT INTO bookings
	(id, slot_id, employer_id, job_id, candidate_id, recruitment_partner_id,
	 candidate_name, candidate_email, candidate_phone, status, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`

type BookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func scanBooking(row scanner) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.SlotID, &b.EmployerID, &b.JobID, &b.CandidateID, &b.RecruitmentPartnerID,
		&b.CandidateName, &b.CandidateEmail, &b.CandidatePhone, &b.Status, &b.Notes, &b.MeetingLink,
		&b.SlotReleased, &b.CompletedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func insertBooking(ctx context.Context, db execer, b *model.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt
	_, err := db.Exec(ctx, insertBookingQ,
		b.ID, b.SlotID, b.EmployerID, b.JobID, b.CandidateID, b.RecruitmentPartnerID,
		b.CandidateName, b.CandidateEmail, b.CandidatePhone, b.Status, b.Notes, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func reserveSeat(ctx context.Context, db execer, slotID string) error {
	tag, err := db.Exec(ctx, reserveSeatQ, slotID)
	if err != nil {
		return fmt.Errorf("reserve seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrCapacityExceeded
	}
	return nil
}

// CreateWithReservation takes one seat on b.SlotID and inserts the booking
// atomically. Zero rows on the conditional update yields ErrCapacityExceeded
// and nothing is written.
func (r *BookingRepository) CreateWithReservation(ctx context.Context, b *model.Booking) error {
	if !b.HasSlot() {
		return apperr.Clone(apperr.ErrValidation, "booking has no slot")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := reserveSeat(ctx, tx, *b.SlotID); err != nil {
		return err
	}
	if err := insertBooking(ctx, tx, b); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Create inserts a booking without touching slot capacity.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	return insertBooking(ctx, r.db, b)
}

// AttachSlot reserves a seat and binds a slot-less scheduled booking to it.
func (r *BookingRepository) AttachSlot(ctx context.Context, bookingID, slotID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := reserveSeat(ctx, tx, slotID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE bookings SET slot_id = $2, updated_at = now()
		 WHERE id = $1 AND slot_id IS NULL AND status = 'scheduled'`,
		bookingID, slotID,
	)
	if err != nil {
		return fmt.Errorf("attach slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Clone(apperr.ErrConflict, "booking already has a slot or is closed")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *BookingRepository) Get(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	return b, nil
}

// Transition moves a scheduled booking to a terminal status. A booking that
// exists but is no longer scheduled yields ErrInvalidTransition.
func (r *BookingRepository) Transition(ctx context.Context, id string, status model.BookingStatus, notes *string, completedAt *time.Time) (*model.Booking, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE bookings
		 SET status = $2, notes = COALESCE($3, notes), completed_at = $4, updated_at = now()
		 WHERE id = $1 AND status = 'scheduled'
		 RETURNING `+bookingColumns,
		id, status, notes, completedAt,
	)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Clone(apperr.ErrInvalidTransition,
		fmt.Sprintf("booking is %s and cannot move to %s", current.Status, status))
}

func (r *BookingRepository) SetMeetingLink(ctx context.Context, id, link string) error {
	tag, err := r.db.Exec(ctx, `UPDATE bookings SET meeting_link = $2, updated_at = now() WHERE id = $1`, id, link)
	if err != nil {
		return fmt.Errorf("set meeting link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Clone(apperr.ErrNotFound, "booking not found")
	}
	return nil
}

// ReleaseSlot gives the seat of a cancelled or no-show booking back to its
// slot, once. It reports false when there was nothing to release.
func (r *BookingRepository) ReleaseSlot(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var slotID string
	err = tx.QueryRow(ctx,
		`UPDATE bookings SET slot_released = TRUE, updated_at = now()
		 WHERE id = $1 AND status IN ('cancelled', 'no_show') AND slot_id IS NOT NULL AND NOT slot_released
		 RETURNING slot_id`,
		id,
	).Scan(&slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark slot released: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE slots SET current_bookings = current_bookings - 1 WHERE id = $1 AND current_bookings > 0`,
		slotID,
	); err != nil {
		return false, fmt.Errorf("release seat: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

func (r *BookingRepository) ListBySlots(ctx context.Context, slotIDs []string) ([]model.Booking, error) {
	if len(slotIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE slot_id = ANY($1) ORDER BY created_at`,
		slotIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}
