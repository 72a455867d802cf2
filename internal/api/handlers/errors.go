package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"greendrake/localboard/internal/services"
	"greendrake/localboard/internal/utils"
)

// conflictMessages are shown verbatim for known conflicts.
var conflictMessages = []struct {
	err error
	msg string
}{
	{services.ErrPollClosed, "Poll is closed"},
	{services.ErrPollLocked, "Poll can no longer be changed once voting has started"},
	{services.ErrAlreadyFlagged, "You have already reported this listing"},
	{services.ErrInvalidTransition, "Listing cannot be changed in its current state"},
}

// respondError maps service errors onto HTTP statuses. Anything unknown is
// a 500 with fallback as the message and the cause attached for logging.
func respondError(c *gin.Context, err error, fallback string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not allowed to do that"})
	case errors.Is(err, services.ErrConflict):
		msg := "Conflict"
		for _, m := range conflictMessages {
			if errors.Is(err, m.err) {
				msg = m.msg
				break
			}
		}
		c.JSON(http.StatusConflict, gin.H{"error": msg})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// bindJSON decodes the body, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

// pathID parses a SixID path parameter, answering 400 on failure.
func pathID(c *gin.Context, name string) (utils.SixID, bool) {
	id, err := utils.ParseSixID(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return utils.SixID{}, false
	}
	return id, true
}
