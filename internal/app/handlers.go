package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"interview-scheduler/internal/apperr"
	"interview-scheduler/internal/booking"
	"interview-scheduler/internal/model"
)

// Register mounts every route. auth guards the employer routes; invitation
// routes are gated by their token only.
func (a *App) Register(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", a.HealthHandler)
	router.GET("/oauth2callback", a.OAuthCallbackHandler)

	public := router.Group("/api")
	{
		public.GET("/slots", a.ListSlotsHandler)
		public.GET("/interview/schedule/:token", a.ResolveInvitationHandler)
		public.POST("/interview/schedule/:token/slot", a.SelectSlotHandler)
	}

	api := router.Group("/api", auth)
	{
		employers := api.Group("/employers")
		{
			employers.PUT("/:id/availability", a.SetAvailabilityHandler)
			employers.GET("/:id/calendar", a.EmployerCalendarHandler)
		}
		api.POST("/bookings", a.CreateBookingHandler)
		api.PATCH("/bookings/:id/status", a.UpdateStatusHandler)
		api.POST("/bookings/:id/release", a.ReleaseSlotHandler)
		api.POST("/invitations", a.CreateInvitationHandler)
		api.GET("/calendar/auth", a.CalendarAuthHandler)
	}
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var in booking.CreateBookingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		a.respondError(c, badBody(err))
		return
	}

	res, err := a.Bookings.CreateBooking(c.Request.Context(), in)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.bookingResponse(res))
}

// POST /api/invitations
func (a *App) CreateInvitationHandler(c *gin.Context) {
	var in booking.DirectInvitationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		a.respondError(c, badBody(err))
		return
	}

	res, err := a.Bookings.CreateDirectInvitation(c.Request.Context(), in)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.bookingResponse(res))
}

func (a *App) bookingResponse(res *booking.Result) bookingResponse {
	out := bookingResponse{Booking: res.Booking, Invitation: res.Invitation}
	if res.Invitation != nil {
		out.InvitationLink = a.Invitations.Link(res.Invitation.Token)
	}
	return out
}

// PATCH /api/bookings/:id/status
func (a *App) UpdateStatusHandler(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, badBody(err))
		return
	}
	if req.Status == "" {
		a.respondError(c, apperr.Invalid("status is required"))
		return
	}

	b, err := a.Bookings.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/bookings/:id/release
func (a *App) ReleaseSlotHandler(c *gin.Context) {
	released, err := a.Bookings.ReleaseSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": c.Param("id"), "released": released})
}

// GET /api/interview/schedule/:token
func (a *App) ResolveInvitationHandler(c *gin.Context) {
	ctx := c.Request.Context()
	ic, err := a.Invitations.Resolve(ctx, c.Param("token"))
	if err != nil {
		a.respondError(c, err)
		return
	}

	out := scheduleResponse{InvitationContext: ic}
	if !ic.Booking.HasSlot() && ic.Booking.Status == model.BookingStatusScheduled {
		days, err := a.Slots.ListAvailable(ctx, model.SlotFilter{EmployerID: ic.Booking.EmployerID})
		if err != nil {
			a.logger().Warn("could not list slots for invitation", zap.String("booking_id", ic.Booking.ID), zap.Error(err))
		}
		out.AvailableSlots = days
	}
	c.JSON(http.StatusOK, out)
}

// POST /api/interview/schedule/:token/slot
func (a *App) SelectSlotHandler(c *gin.Context) {
	var req selectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.respondError(c, badBody(err))
		return
	}

	b, err := a.Bookings.SelectSlot(c.Request.Context(), c.Param("token"), req.SlotID)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
