package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gpio_control_server/internal/lockout"
	"gpio_control_server/pkg/logger"
)

// LockoutController hands out and returns device lockouts
type LockoutController struct {
	lockouts *lockout.Manager
	log      *logger.Logger
}

// NewLockoutController creates a new lockout controller
func NewLockoutController(mgr *lockout.Manager, log *logger.Logger) *LockoutController {
	return &LockoutController{lockouts: mgr, log: log.WithComponent("lockouts")}
}

// AcquireRequest is the body of a lockout request; a zero duration uses the server default
type AcquireRequest struct {
	DeviceType      string  `json:"device_type" binding:"required"`
	DeviceID        uint    `json:"device_id" binding:"required"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func deviceParams(c *gin.Context) (string, uint, bool) {
	id, err := strconv.ParseUint(c.Param("device_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Device ID must be a valid number"})
		return "", 0, false
	}
	return c.Param("device_type"), uint(id), true
}

// Acquire locks a device out
func (lc *LockoutController) Acquire(c *gin.Context) {
	var req AcquireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	d, err := lockout.Seconds(req.DurationSeconds)
	if err != nil {
		writeError(c, lc.log, err)
		return
	}
	l, err := lc.lockouts.Acquire(c.Request.Context(), req.DeviceType, req.DeviceID, d)
	if err != nil {
		writeError(c, lc.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": l})
}

// Release returns a device and frees its hardware
func (lc *LockoutController) Release(c *gin.Context) {
	kind, id, ok := deviceParams(c)
	if !ok {
		return
	}
	n, err := lc.lockouts.Release(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, lc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "released": n})
}

// GetLockout reports the active lockout of a device
func (lc *LockoutController) GetLockout(c *gin.Context) {
	kind, id, ok := deviceParams(c)
	if !ok {
		return
	}
	l, err := lc.lockouts.Active(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, lc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "locked": l != nil, "data": l})
}
