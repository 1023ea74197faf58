package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/model"
)

const defaultTimezone = "UTC"

type slotStore interface {
	ReplaceRange(ctx context.Context, employerID, from, to string, slots []model.Slot) error
	ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.Slot, error)
	ListRange(ctx context.Context, employerID string, rng model.DateRange) ([]model.Slot, error)
}

type bookingLister interface {
	ListBySlots(ctx context.Context, slotIDs []string) ([]model.Booking, error)
}

// SlotInput is one entry of an availability submission.
type SlotInput struct {
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime       string `json:"end_time" validate:"required,datetime=15:04"`
	Timezone      string `json:"timezone" validate:"omitempty,timezone"`
	IsAvailable   *bool  `json:"is_available"`
	MaxCandidates int    `json:"max_candidates" validate:"omitempty,min=1,max=500"`
}

// Manager owns slot records and answers capacity queries.
type Manager struct {
	slots     slotStore
	bookings  bookingLister
	validator *validator.Validate
	logger    *zap.Logger
}

func NewManager(slots slotStore, bookings bookingLister, validate *validator.Validate, logger *zap.Logger) *Manager {
	if validate == nil {
		validate = apperr.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{slots: slots, bookings: bookings, validator: validate, logger: logger}
}

// SetAvailability replaces every slot of the employer between the earliest and
// latest date in inputs with inputs. Existing slots in that window are deleted,
// never merged, so callers submit the full desired window.
func (m *Manager) SetAvailability(ctx context.Context, employerID string, inputs []SlotInput) ([]model.Slot, error) {
	if employerID == "" {
		return nil, apperr.Invalid("employer id is required")
	}
	if len(inputs) == 0 {
		return nil, apperr.Invalid("slots must be a non-empty list")
	}

	out := make([]model.Slot, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	from, to := inputs[0].Date, inputs[0].Date

	for i, in := range inputs {
		if err := m.validator.Struct(in); err != nil {
			return nil, apperr.FromValidation(err, fmt.Sprintf("slots[%d]", i))
		}
		start, _ := time.Parse(model.ClockLayout, in.StartTime)
		end, _ := time.Parse(model.ClockLayout, in.EndTime)
		if !end.After(start) {
			return nil, apperr.Invalid("slots[%d]: end_time must be after start_time", i)
		}
		key := in.Date + " " + in.StartTime
		if _, dup := seen[key]; dup {
			return nil, apperr.Invalid("slots[%d]: duplicate slot at %s", i, key)
		}
		seen[key] = struct{}{}

		// YYYY-MM-DD orders lexically.
		if in.Date < from {
			from = in.Date
		}
		if in.Date > to {
			to = in.Date
		}

		out = append(out, newSlot(employerID, in))
	}

	if err := m.slots.ReplaceRange(ctx, employerID, from, to, out); err != nil {
		return nil, fmt.Errorf("replace availability: %w", err)
	}

	m.logger.Info("availability replaced",
		zap.String("employer_id", employerID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("slots", len(out)),
	)
	return out, nil
}

func newSlot(employerID string, in SlotInput) model.Slot {
	s := model.Slot{
		ID:            uuid.NewString(),
		EmployerID:    employerID,
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		Timezone:      in.Timezone,
		IsAvailable:   true,
		MaxCandidates: in.MaxCandidates,
	}
	if s.Timezone == "" {
		s.Timezone = defaultTimezone
	}
	if in.IsAvailable != nil {
		s.IsAvailable = *in.IsAvailable
	}
	if s.MaxCandidates == 0 {
		s.MaxCandidates = 1
	}
	return s
}

// ListAvailable returns slots with spare capacity grouped by date, exposing
// only the remaining capacity.
func (m *Manager) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailableDay, error) {
	if err := validateRange(filter.Range); err != nil {
		return nil, err
	}

	rows, err := m.slots.ListAvailable(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}

	var days []model.AvailableDay
	for i := range rows {
		s := &rows[i]
		if !s.HasCapacity() {
			continue
		}
		if len(days) == 0 || days[len(days)-1].Date != s.Date {
			days = append(days, model.AvailableDay{Date: s.Date})
		}
		day := &days[len(days)-1]
		day.Slots = append(day.Slots, model.AvailableSlot{
			ID:         s.ID,
			EmployerID: s.EmployerID,
			Date:       s.Date,
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Timezone:   s.Timezone,
			Remaining:  s.Remaining(),
		})
	}
	return days, nil
}

// EmployerCalendar joins the employer's slots in rng with their bookings for a day view.
func (m *Manager) EmployerCalendar(ctx context.Context, employerID string, rng model.DateRange) ([]model.CalendarDay, error) {
	if employerID == "" {
		return nil, apperr.Invalid("employer id is required")
	}
	if err := validateRange(rng); err != nil {
		return nil, err
	}

	rows, err := m.slots.ListRange(ctx, employerID, rng)
	if err != nil {
		return nil, fmt.Errorf("list employer slots: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, s := range rows {
		ids = append(ids, s.ID)
	}

	bookings, err := m.bookings.ListBySlots(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list slot bookings: %w", err)
	}
	bySlot := make(map[string][]model.Booking, len(rows))
	for _, b := range bookings {
		if b.HasSlot() {
			bySlot[*b.SlotID] = append(bySlot[*b.SlotID], b)
		}
	}

	var days []model.CalendarDay
	for _, s := range rows {
		if len(days) == 0 || days[len(days)-1].Date != s.Date {
			days = append(days, model.CalendarDay{Date: s.Date})
		}
		day := &days[len(days)-1]
		attached := bySlot[s.ID]
		if attached == nil {
			attached = []model.Booking{}
		}
		day.Slots = append(day.Slots, model.CalendarSlot{Slot: s, Remaining: s.Remaining(), Bookings: attached})
	}
	return days, nil
}

func validateRange(rng model.DateRange) error {
	for _, d := range []string{rng.From, rng.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return apperr.Invalid("invalid date %q, want YYYY-MM-DD", d)
		}
	}
	if rng.From != "" && rng.To != "" && rng.From > rng.To {
		return apperr.Invalid("from must not be after to")
	}
	return nil
}
