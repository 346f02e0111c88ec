package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/switches"
	"gpio_control_server/pkg/logger"
)

// maxWait caps how long a wait request may hold the connection
const maxWait = 5 * time.Minute

// SwitchController handles push switch configuration and readings
type SwitchController struct {
	devices  *devices.Service
	switches *switches.Manager
	log      *logger.Logger
}

// NewSwitchController creates a new switch controller
func NewSwitchController(svc *devices.Service, mgr *switches.Manager, log *logger.Logger) *SwitchController {
	return &SwitchController{devices: svc, switches: mgr, log: log.WithComponent("switches")}
}

// EdgeRequest is the body of wait and watch requests
type EdgeRequest struct {
	Edge           string  `json:"edge"`
	BounceMS       int     `json:"bounce_ms"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

func (r EdgeRequest) bounce() time.Duration {
	if r.BounceMS <= 0 {
		return 0
	}
	return time.Duration(r.BounceMS) * time.Millisecond
}

func (sc *SwitchController) GetSwitches(c *gin.Context) {
	list, err := sc.devices.ListPushSwitches(c.Request.Context())
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list, "count": len(list)})
}

func (sc *SwitchController) GetSwitch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	sw, err := sc.devices.GetPushSwitch(c.Request.Context(), id)
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sw})
}

func (sc *SwitchController) CreateSwitch(c *gin.Context) {
	var in models.PushSwitch
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := sc.devices.CreatePushSwitch(c.Request.Context(), &in); err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": in})
}

func (sc *SwitchController) UpdateSwitch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in models.PushSwitch
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	sw, err := sc.devices.UpdatePushSwitch(c.Request.Context(), id, &in)
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sw})
}

func (sc *SwitchController) DeleteSwitch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := sc.devices.DeletePushSwitch(c.Request.Context(), id); err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Push switch deleted"})
}

// switchError maps runtime errors; an unknown switch is a 404 here
func (sc *SwitchController) switchError(c *gin.Context, err error) {
	if errors.Is(err, switches.ErrUnknownDevice) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	writeError(c, sc.log, err)
}

// GetState reads the switch
func (sc *SwitchController) GetState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	st, err := sc.switches.State(c.Request.Context(), id)
	if err != nil {
		sc.switchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": st})
}

// Wait blocks until the requested edge or the timeout
func (sc *SwitchController) Wait(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req EdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	edge, err := switches.ParseEdge(req.Edge)
	if err != nil {
		sc.switchError(c, err)
		return
	}
	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 || timeout > maxWait {
		timeout = maxWait
	}

	seen, err := sc.switches.Wait(c.Request.Context(), id, edge, req.bounce(), timeout)
	if err != nil {
		sc.switchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "edge_detected": seen})
}

// Watch starts background edge detection; edges are pushed over websocket and MQTT
func (sc *SwitchController) Watch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req EdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	edge, err := switches.ParseEdge(req.Edge)
	if err != nil {
		sc.switchError(c, err)
		return
	}
	if err := sc.switches.Watch(c.Request.Context(), id, edge, req.bounce()); err != nil {
		sc.switchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Edge detection started"})
}

// Unwatch stops background edge detection
func (sc *SwitchController) Unwatch(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	seen, err := sc.switches.Unwatch(c.Request.Context(), id)
	if err != nil {
		sc.switchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "edge_detected": seen})
}
