package model

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Slot is a fixed interview window an employer offers, with a capacity.
// CurrentBookings only changes through the store's conditional update.
type Slot struct {
	ID              string    `json:"id"`
	EmployerID      string    `json:"employer_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Timezone        string    `json:"timezone"`
	IsAvailable     bool      `json:"is_available"`
	MaxCandidates   int       `json:"max_candidates"`
	CurrentBookings int       `json:"current_bookings"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

func (s *Slot) Remaining() int {
	if r := s.MaxCandidates - s.CurrentBookings; r > 0 {
		return r
	}
	return 0
}

func (s *Slot) HasCapacity() bool {
	return s.IsAvailable && s.CurrentBookings < s.MaxCandidates
}

// Location falls back to UTC for an empty or unknown zone.
func (s *Slot) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *Slot) StartsAt() (time.Time, error) {
	return s.at(s.StartTime)
}

func (s *Slot) EndsAt() (time.Time, error) {
	return s.at(s.EndTime)
}

func (s *Slot) at(clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+clock, s.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("slot %s: parse %q %q: %w", s.ID, s.Date, clock, err)
	}
	return t, nil
}

// AvailableSlot is the public view of a slot: remaining capacity, never raw counts.
type AvailableSlot struct {
	ID         string `json:"id"`
	EmployerID string `json:"employer_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Timezone   string `json:"timezone"`
	Remaining  int    `json:"remaining"`
}

type AvailableDay struct {
	Date  string          `json:"date"`
	Slots []AvailableSlot `json:"slots"`
}

// DateRange is an inclusive range of YYYY-MM-DD dates; empty bounds are open.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type SlotFilter struct {
	EmployerID string
	Range      DateRange
}

// CalendarSlot is a slot joined with its bookings for the employer day view.
type CalendarSlot struct {
	Slot
	Remaining int       `json:"remaining"`
	Bookings  []Booking `json:"bookings"`
}

type CalendarDay struct {
	Date  string         `json:"date"`
	Slots []CalendarSlot `json:"slots"`
}
