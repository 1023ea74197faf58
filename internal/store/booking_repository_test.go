package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/model"
)

var bookingRowColumns = []string{"id", "slot_id", "employer_id", "job_id", "candidate_id", "recruitment_partner_id",
	"candidate_name", "candidate_email", "candidate_phone", "status", "notes", "meeting_link", "slot_released",
	"completed_at", "created_at", "updated_at"}

func strPtr(s string) *string { return &s }

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:             "b1",
		SlotID:         strPtr("s1"),
		EmployerID:     "emp-1",
		JobID:          "job-1",
		CandidateName:  "Ada",
		CandidateEmail: "ada@example.com",
		Status:         model.BookingStatusScheduled,
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestBookingRepositoryCreateWithReservation(t *testing.T) {
	mock := newMockDB(t)
	repo := NewBookingRepository(mock)
	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE slots SET current_bookings = current_bookings + 1`)).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WithArgs(b.ID, b.SlotID, b.EmployerID, b.JobID, b.CandidateID, b.RecruitmentPartnerID,
			b.CandidateName, b.CandidateEmail, b.CandidatePhone, b.Status, b.Notes, b.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithReservation(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateWithReservationSlotFull(t *testing.T) {
	mock := newMockDB(t)
	repo := NewBookingRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE slots SET current_bookings = current_bookings + 1`)).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.CreateWithReservation(context.Background(), sampleBooking())
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryTransitionFromTerminal(t *testing.T) {
	mock := newMockDB(t)
	repo := NewBookingRepository(mock)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND status = 'scheduled'`)).
		WithArgs("b1", model.BookingStatusCompleted, (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = $1`)).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).AddRow(
			"b1", strPtr("s1"), "emp-1", "job-1", (*string)(nil), (*string)(nil),
			"Ada", "ada@example.com", "", model.BookingStatusCancelled, "", "", false,
			(*time.Time)(nil), created, created,
		))

	now := time.Now()
	_, err := repo.Transition(context.Background(), "b1", model.BookingStatusCompleted, nil, &now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReleaseSlot(t *testing.T) {
	mock := newMockDB(t)
	repo := NewBookingRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE bookings SET slot_released = TRUE`)).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"slot_id"}).AddRow("s1"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE slots SET current_bookings = current_bookings - 1`)).
		WithArgs("s1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	released, err := repo.ReleaseSlot(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReleaseSlotNothingToRelease(t *testing.T) {
	mock := newMockDB(t)
	repo := NewBookingRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE bookings SET slot_released = TRUE`)).
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"slot_id"}))
	mock.ExpectRollback()

	released, err := repo.ReleaseSlot(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}
