package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-scheduler/internal/model"
	"interview-scheduler/internal/slots"
)

// PUT /api/employers/:id/availability
// The body is the full list of slots for the covered dates; existing slots
// in that range are replaced.
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	var payload []slots.SlotInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.respondError(c, badBody(err))
		return
	}

	saved, err := a.Slots.SetAvailability(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": saved, "count": len(saved)})
}

// GET /api/employers/:id/calendar?from=&to=
func (a *App) EmployerCalendarHandler(c *gin.Context) {
	days, err := a.Slots.EmployerCalendar(c.Request.Context(), c.Param("id"), dateRange(c))
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

// GET /api/slots?employer_id=&from=&to=
func (a *App) ListSlotsHandler(c *gin.Context) {
	days, err := a.Slots.ListAvailable(c.Request.Context(), model.SlotFilter{
		EmployerID: c.Query("employer_id"),
		Range:      dateRange(c),
	})
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}

func dateRange(c *gin.Context) model.DateRange {
	return model.DateRange{From: c.Query("from"), To: c.Query("to")}
}
