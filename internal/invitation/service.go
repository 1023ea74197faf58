package invitation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/metrics"
	"interview-scheduler/internal/model"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	tokenBytes    = 32
	issueAttempts = 3
	schedulePath  = "/interview/schedule/"
)

type invitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	FindByToken(ctx context.Context, token string) (*model.Invitation, error)
	FindByBooking(ctx context.Context, bookingID string) (*model.Invitation, error)
	MarkOpened(ctx context.Context, id string) (bool, error)
}

type bookingReader interface {
	Get(ctx context.Context, id string) (*model.Booking, error)
}

type slotReader interface {
	Get(ctx context.Context, id string) (*model.Slot, error)
}

type directory interface {
	GetEmployer(ctx context.Context, id string) (*model.Employer, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// Service issues and resolves single-booking invitation tokens.
type Service struct {
	store       invitationStore
	bookings    bookingReader
	slots       slotReader
	directory   directory
	ttl         time.Duration
	frontendURL string
	metrics     *metrics.Metrics
	logger      *zap.Logger

	now    func() time.Time
	random io.Reader
}

func NewService(
	store invitationStore,
	bookings bookingReader,
	slots slotReader,
	dir directory,
	ttl time.Duration,
	frontendURL string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		bookings:    bookings,
		slots:       slots,
		directory:   dir,
		ttl:         ttl,
		frontendURL: frontendURL,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
		random:      rand.Reader,
	}
}

// Link is the candidate-facing scheduling URL for token.
func (s *Service) Link(token string) string {
	return s.frontendURL + schedulePath + token
}

// Issue creates the booking's invitation. It is idempotent by booking: an
// existing invitation is returned as is.
func (s *Service) Issue(ctx context.Context, bookingID, candidateEmail string) (*model.Invitation, error) {
	if bookingID == "" {
		return nil, apperr.Invalid("booking id is required")
	}
	if _, err := mail.ParseAddress(candidateEmail); err != nil {
		return nil, apperr.Invalid("invalid candidate email %q", candidateEmail)
	}

	for attempt := 1; attempt <= issueAttempts; attempt++ {
		existing, err := s.store.FindByBooking(ctx, bookingID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("find invitation: %w", err)
		}

		token, err := s.newToken()
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		inv := &model.Invitation{
			ID:             uuid.NewString(),
			BookingID:      bookingID,
			Token:          token,
			CandidateEmail: candidateEmail,
			Status:         model.InvitationStatusSent,
			ExpiresAt:      now.Add(s.ttl),
			CreatedAt:      now,
		}

		err = s.store.Create(ctx, inv)
		if err == nil {
			s.logger.Info("invitation issued",
				zap.String("booking_id", bookingID),
				zap.String("invitation_id", inv.ID),
				zap.Time("expires_at", inv.ExpiresAt),
			)
			return inv, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("create invitation: %w", err)
		}
		s.logger.Warn("invitation insert conflicted, retrying", zap.String("booking_id", bookingID), zap.Int("attempt", attempt))
	}
	return nil, apperr.Clone(apperr.ErrConflict, "could not issue a unique invitation token")
}

func (s *Service) newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Resolve looks the token up and returns the scheduling context. Tokens past
// their expiry are rejected whatever their stored status. The first resolve
// moves the invitation from sent to opened.
func (s *Service) Resolve(ctx context.Context, token string) (*model.InvitationContext, error) {
	inv, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	if inv.Status == model.InvitationStatusSent {
		if _, err := s.store.MarkOpened(ctx, inv.ID); err != nil {
			return nil, fmt.Errorf("open invitation: %w", err)
		}
		inv.Status = model.InvitationStatusOpened
	}

	booking, err := s.bookings.Get(ctx, inv.BookingID)
	if err != nil {
		return nil, fmt.Errorf("load invitation booking: %w", err)
	}
	job, err := s.directory.GetJob(ctx, booking.JobID)
	if err != nil {
		return nil, fmt.Errorf("load invitation job: %w", err)
	}
	employer, err := s.directory.GetEmployer(ctx, booking.EmployerID)
	if err != nil {
		return nil, fmt.Errorf("load invitation employer: %w", err)
	}

	out := &model.InvitationContext{Invitation: *inv, Booking: *booking, Job: *job, Employer: *employer}
	if booking.HasSlot() {
		slot, err := s.slots.Get(ctx, *booking.SlotID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("load invitation slot: %w", err)
		}
		out.Slot = slot
	}

	s.metrics.InvitationResolved("ok")
	return out, nil
}

func (s *Service) lookup(ctx context.Context, token string) (*model.Invitation, error) {
	if token == "" {
		s.metrics.InvitationResolved("invalid")
		return nil, apperr.ErrInvalidToken
	}
	inv, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, apperr.ErrNotFound) {
		s.metrics.InvitationResolved("invalid")
		return nil, apperr.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if inv.ExpiredAt(s.now()) {
		s.metrics.InvitationResolved("expired")
		s.logger.Info("expired invitation used", zap.String("invitation_id", inv.ID), zap.Time("expires_at", inv.ExpiresAt))
		return nil, apperr.ErrInvalidToken
	}
	return inv, nil
}
