package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/pins"
	"gpio_control_server/pkg/logger"
)

// PinController exposes the header pin map
type PinController struct {
	devices *devices.Service
	backend *hardware.Backend
	log     *logger.Logger
}

// NewPinController creates a new pin controller
func NewPinController(svc *devices.Service, backend *hardware.Backend, log *logger.Logger) *PinController {
	return &PinController{devices: svc, backend: backend, log: log.WithComponent("pins")}
}

// GetPins lists the selectable pins, the configured claims and the pins currently driven
func (pc *PinController) GetPins(c *gin.Context) {
	claims, err := pc.devices.PinMap(c.Request.Context())
	if err != nil {
		writeError(c, pc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"available": pins.Available(),
		"claims":    claims,
		"live":      pc.backend.Live(),
	})
}
