package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/model"
)

type bookingStore interface {
	CreateWithReservation(ctx context.Context, b *model.Booking) error
	Create(ctx context.Context, b *model.Booking) error
	AttachSlot(ctx context.Context, bookingID, slotID string) error
	Get(ctx context.Context, id string) (*model.Booking, error)
	Transition(ctx context.Context, id string, status model.BookingStatus, notes *string, completedAt *time.Time) (*model.Booking, error)
	ReleaseSlot(ctx context.Context, id string) (bool, error)
}

type slotReader interface {
	Get(ctx context.Context, id string) (*model.Slot, error)
}

type directory interface {
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
}

type inviter interface {
	Issue(ctx context.Context, bookingID, candidateEmail string) (*model.Invitation, error)
	Resolve(ctx context.Context, token string) (*model.InvitationContext, error)
}

// Followups receives out-of-band work once a booking change is durable.
// Implementations must not block and must not fail the caller.
type Followups interface {
	BookingConfirmed(ctx context.Context, bookingID string)
	DirectInvitation(ctx context.Context, bookingID string)
	StatusChanged(ctx context.Context, bookingID string, status model.BookingStatus)
}

type noFollowups struct{}

func (noFollowups) BookingConfirmed(context.Context, string)                    {}
func (noFollowups) DirectInvitation(context.Context, string)                    {}
func (noFollowups) StatusChanged(context.Context, string, model.BookingStatus) {}

type CreateBookingInput struct {
	SlotID               string                 `json:"slot_id" validate:"required"`
	JobID                string                 `json:"job_id" validate:"required"`
	Candidate            model.CandidateContact `json:"candidate"`
	CandidateID          *string                `json:"candidate_id" validate:"omitempty,min=1"`
	RecruitmentPartnerID *string                `json:"recruitment_partner_id" validate:"omitempty,min=1"`
}

type DirectInvitationInput struct {
	CandidateID          string  `json:"candidate_id" validate:"required"`
	JobID                string  `json:"job_id" validate:"required"`
	RecruitmentPartnerID *string `json:"recruitment_partner_id" validate:"omitempty,min=1"`
}

// Result is a durable booking plus its invitation. Invitation is nil when
// issuance failed; the follow-up worker retries it.
type Result struct {
	Booking    *model.Booking    `json:"booking"`
	Invitation *model.Invitation `json:"invitation,omitempty"`
}

type Engine struct {
	bookings  bookingStore
	slots     slotReader
	directory directory
	inviter   inviter
	followups Followups
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(
	bookings bookingStore,
	slots slotReader,
	dir directory,
	inv inviter,
	followups Followups,
	validate *validator.Validate,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Engine {
	if followups == nil {
		followups = noFollowups{}
	}
	if validate == nil {
		validate = apperr.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bookings:  bookings,
		slots:     slots,
		directory: dir,
		inviter:   inv,
		followups: followups,
		validate:  validate,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateBooking claims one seat on a slot for a candidate. The capacity
// check is repeated by the store inside the insert transaction, so a race
// lost between the read and the write still yields ErrCapacityExceeded.
func (e *Engine) CreateBooking(ctx context.Context, in CreateBookingInput) (*Result, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, apperr.FromValidation(err, "")
	}

	slot, err := e.slots.Get(ctx, in.SlotID)
	if err != nil {
		return nil, err
	}
	if !slot.HasCapacity() {
		e.metrics.CapacityRejected()
		return nil, apperr.ErrCapacityExceeded
	}

	job, err := e.directory.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}
	if job.EmployerID != slot.EmployerID {
		return nil, apperr.Invalid("job %s does not belong to the slot's employer", job.ID)
	}

	b := e.newBooking(job, &slot.ID)
	b.CandidateID = in.CandidateID
	b.RecruitmentPartnerID = in.RecruitmentPartnerID
	b.CandidateName = in.Candidate.Name
	b.CandidateEmail = in.Candidate.Email
	b.CandidatePhone = in.Candidate.Phone

	if err := e.bookings.CreateWithReservation(ctx, b); err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			e.metrics.CapacityRejected()
			e.logger.Info("slot filled before booking could be written", zap.String("slot_id", slot.ID))
		}
		return nil, err
	}
	e.metrics.BookingCreated("slot")
	e.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("slot_id", slot.ID),
		zap.String("employer_id", b.EmployerID),
	)

	res := &Result{Booking: b, Invitation: e.issue(ctx, b)}
	e.followups.BookingConfirmed(ctx, b.ID)
	return res, nil
}

// CreateDirectInvitation opens a slot-less booking for a known candidate.
// The candidate picks the slot later through SelectSlot.
func (e *Engine) CreateDirectInvitation(ctx context.Context, in DirectInvitationInput) (*Result, error) {
	if err := e.validate.Struct(in); err != nil {
		return nil, apperr.FromValidation(err, "")
	}

	candidate, err := e.directory.GetCandidate(ctx, in.CandidateID)
	if err != nil {
		return nil, err
	}
	job, err := e.directory.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, err
	}

	b := e.newBooking(job, nil)
	b.CandidateID = &candidate.ID
	b.RecruitmentPartnerID = in.RecruitmentPartnerID
	b.CandidateName = candidate.Name
	b.CandidateEmail = candidate.Email
	b.CandidatePhone = candidate.Phone

	if err := e.bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	e.metrics.BookingCreated("direct")
	e.logger.Info("direct invitation booking created",
		zap.String("booking_id", b.ID),
		zap.String("candidate_id", candidate.ID),
		zap.String("job_id", job.ID),
	)

	res := &Result{Booking: b, Invitation: e.issue(ctx, b)}
	e.followups.DirectInvitation(ctx, b.ID)
	return res, nil
}

func (e *Engine) newBooking(job *model.Job, slotID *string) *model.Booking {
	now := e.now().UTC()
	return &model.Booking{
		ID:         uuid.NewString(),
		SlotID:     slotID,
		EmployerID: job.EmployerID,
		JobID:      job.ID,
		Status:     model.BookingStatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (e *Engine) issue(ctx context.Context, b *model.Booking) *model.Invitation {
	inv, err := e.inviter.Issue(ctx, b.ID, b.CandidateEmail)
	if err != nil {
		e.logger.Warn("invitation issue failed, left to follow-up", zap.String("booking_id", b.ID), zap.Error(err))
		return nil
	}
	return inv
}

// UpdateStatus moves a scheduled booking to a terminal status. Any other
// starting state is ErrInvalidTransition.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status model.BookingStatus, notes *string) (*model.Booking, error) {
	if id == "" {
		return nil, apperr.Invalid("booking id is required")
	}
	switch {
	case status == model.BookingStatusScheduled:
		return nil, apperr.Clone(apperr.ErrInvalidTransition, "a booking cannot move back to scheduled")
	case !status.IsTerminal():
		return nil, apperr.Invalid("unknown status %q", status)
	}

	var completedAt *time.Time
	if status == model.BookingStatusCompleted {
		t := e.now().UTC()
		completedAt = &t
	}

	b, err := e.bookings.Transition(ctx, id, status, notes, completedAt)
	if err != nil {
		return nil, err
	}
	e.metrics.StatusTransition(string(status))
	e.logger.Info("booking status changed", zap.String("booking_id", id), zap.String("status", string(status)))

	e.followups.StatusChanged(ctx, id, status)
	return b, nil
}

// ReleaseSlot gives a cancelled or no-show booking's seat back to its slot.
// It reports false when the seat had already been released.
func (e *Engine) ReleaseSlot(ctx context.Context, id string) (bool, error) {
	b, err := e.bookings.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !b.Status.ReleasesCapacity() {
		return false, apperr.Clone(apperr.ErrInvalidTransition,
			fmt.Sprintf("a %s booking keeps its slot", b.Status))
	}
	if !b.HasSlot() {
		return false, apperr.Clone(apperr.ErrConflict, "booking holds no slot")
	}

	released, err := e.bookings.ReleaseSlot(ctx, id)
	if err != nil {
		return false, err
	}
	e.logger.Info("slot release", zap.String("booking_id", id), zap.String("slot_id", *b.SlotID), zap.Bool("released", released))
	return released, nil
}

// SelectSlot binds the slot a candidate picked through their invitation.
func (e *Engine) SelectSlot(ctx context.Context, token, slotID string) (*model.Booking, error) {
	if slotID == "" {
		return nil, apperr.Invalid("slot id is required")
	}
	ic, err := e.inviter.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	b := ic.Booking
	if b.Status != model.BookingStatusScheduled {
		return nil, apperr.Clone(apperr.ErrInvalidTransition, fmt.Sprintf("booking is %s", b.Status))
	}
	if b.HasSlot() {
		return nil, apperr.Clone(apperr.ErrConflict, "a slot has already been selected")
	}

	slot, err := e.slots.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.EmployerID != b.EmployerID {
		return nil, apperr.Invalid("slot %s belongs to another employer", slotID)
	}
	if !slot.HasCapacity() {
		e.metrics.CapacityRejected()
		return nil, apperr.ErrCapacityExceeded
	}

	if err := e.bookings.AttachSlot(ctx, b.ID, slotID); err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			e.metrics.CapacityRejected()
		}
		return nil, err
	}
	updated, err := e.bookings.Get(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("slot selected", zap.String("booking_id", b.ID), zap.String("slot_id", slotID))

	e.followups.BookingConfirmed(ctx, b.ID)
	return updated, nil
}
