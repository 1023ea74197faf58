package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"interview-scheduler/internal/booking"
	"interview-scheduler/internal/model"
	"interview-scheduler/internal/slots"
)

type slotService interface {
	SetAvailability(ctx context.Context, employerID string, inputs []slots.SlotInput) ([]model.Slot, error)
	ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailableDay, error)
	EmployerCalendar(ctx context.Context, employerID string, rng model.DateRange) ([]model.CalendarDay, error)
}

type bookingService interface {
	CreateBooking(ctx context.Context, in booking.CreateBookingInput) (*booking.Result, error)
	CreateDirectInvitation(ctx context.Context, in booking.DirectInvitationInput) (*booking.Result, error)
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus, notes *string) (*model.Booking, error)
	ReleaseSlot(ctx context.Context, id string) (bool, error)
	SelectSlot(ctx context.Context, token, slotID string) (*model.Booking, error)
}

type invitationService interface {
	Resolve(ctx context.Context, token string) (*model.InvitationContext, error)
	Link(token string) string
}

type pinger interface {
	Ping(ctx context.Context) error
}

// App holds the HTTP handlers and the services behind them.
type App struct {
	Slots       slotService
	Bookings    bookingService
	Invitations invitationService

	// OAuth is nil when Google Calendar is not configured.
	OAuth       oauthExchanger
	Credentials credentialWriter
	StateSecret []byte

	DB     pinger
	Logger *zap.Logger

	now func() time.Time
}

func (a *App) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}
