package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxtrack/internal/calendar"
	"taxtrack/internal/repositories"
	"taxtrack/internal/services"
)

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// statusFor maps the service error taxonomy onto HTTP codes. Unknown errors
// stay 500 so callers never see raw internals dressed up as client faults.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrTaskNotFound),
		errors.Is(err, repositories.ErrDocumentNotFound),
		errors.Is(err, services.ErrObligationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrOutOfSequence),
		errors.Is(err, services.ErrNotASigner),
		errors.Is(err, services.ErrDocumentState),
		errors.Is(err, services.ErrNotRectifiable):
		return http.StatusConflict
	case errors.Is(err, services.ErrSignatureRace):
		return http.StatusConflict
	case errors.Is(err, calendar.ErrInvalidFrequency),
		errors.Is(err, services.ErrCommentRequired),
		errors.Is(err, services.ErrFileRequired),
		errors.Is(err, services.ErrInvalidDayDeadline),
		errors.Is(err, services.ErrInvalidMonthDeadline),
		errors.Is(err, services.ErrNoCompetencies):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
