package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/JunoAX/familytasks-go/internal/apperror"
	"github.com/JunoAX/familytasks-go/internal/middleware"
	"github.com/JunoAX/familytasks-go/internal/validation"
	"github.com/gin-gonic/gin"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = "1"

// respondError writes err as {"error": message} with the status of its kind.
// Cycle rejections also carry the offending path.
func respondError(c *gin.Context, err error) {
	var cycle *apperror.CycleError
	if errors.As(err, &cycle) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": cycle.Error(), "cycle": cycle.Path})
		return
	}

	kind := apperror.KindOf(err)
	msg := err.Error()
	var ae *apperror.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}

	switch kind {
	case apperror.KindInternal:
		middleware.Logger(c).ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		if ae == nil {
			msg = "internal error"
		}
	case apperror.KindUnavailable:
		middleware.Logger(c).WarnContext(c.Request.Context(), "store unavailable", "error", err)
		c.Header("Retry-After", retryAfterSeconds)
	}
	c.JSON(kind.Status(), gin.H{"error": msg})
}

// respondBindError reports a malformed or invalid request body or query.
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": validation.Describe(err)})
}

// parseID reads a positive integer path parameter, writing a 400 when it is not one.
func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format"})
		return 0, false
	}
	return id, true
}
