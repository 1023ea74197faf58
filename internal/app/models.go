package app

import "interview-scheduler/internal/model"

type statusRequest struct {
	Status model.BookingStatus `json:"status"`
	Notes  *string             `json:"notes"`
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id"`
}

type bookingResponse struct {
	Booking        *model.Booking    `json:"booking"`
	Invitation     *model.Invitation `json:"invitation,omitempty"`
	InvitationLink string            `json:"invitation_link,omitempty"`
}

type scheduleResponse struct {
	*model.InvitationContext
	AvailableSlots []model.AvailableDay `json:"available_slots,omitempty"`
}
