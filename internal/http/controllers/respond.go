package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/http/middleware"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

// parseID reads the :id path parameter
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID must be a valid number"})
		return 0, false
	}
	return uint(id), true
}

// statusFor maps an error onto the status used by the CRUD endpoints
func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	if f, ok := faults.As(err); ok {
		switch f.Kind {
		case faults.Validation, faults.Command, faults.Configuration:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status from statusFor. Validation faults
// carry their per-field messages.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	writeErrorStatus(c, log, statusFor(err), err)
}

func writeErrorStatus(c *gin.Context, log *logger.Logger, status int, err error) {
	if status == http.StatusInternalServerError {
		log.WithRequestID(middleware.GetRequestID(c)).ErrorWithError(err, c.Request.Method+" "+c.FullPath())
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if errors.Is(err, store.ErrNotFound) {
		body["error"] = "Device not found"
	}
	if f, ok := faults.As(err); ok && f.Kind == faults.Validation {
		body["fields"] = f.FieldMap()
	}
	c.JSON(status, body)
}
