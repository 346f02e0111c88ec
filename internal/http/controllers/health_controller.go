package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gpio_control_server/config"
	"gpio_control_server/internal/hardware"
)

// HealthController reports liveness
type HealthController struct {
	backend *hardware.Backend
	ping    func() error
}

// NewHealthController creates a health controller; ping may be nil when there is no database
func NewHealthController(backend *hardware.Backend, ping func() error) *HealthController {
	return &HealthController{backend: backend, ping: ping}
}

func (hc *HealthController) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	database := "n/a"
	if hc.ping != nil {
		database = "ok"
		if err := hc.ping(); err != nil {
			database = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": database,
		"gpio":     hc.backend.Name(),
		"timezone": config.GetTimezoneString(),
		"time":     config.GetCurrentTime().Format("2006-01-02T15:04:05Z07:00"),
	})
}
