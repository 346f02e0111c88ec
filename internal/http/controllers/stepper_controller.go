package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/motion"
	"gpio_control_server/pkg/logger"
)

// StepperController handles stepper motor configuration and commands
type StepperController struct {
	devices *devices.Service
	motion  *motion.Manager
	log     *logger.Logger
}

// NewStepperController creates a new stepper controller
func NewStepperController(svc *devices.Service, mgr *motion.Manager, log *logger.Logger) *StepperController {
	return &StepperController{devices: svc, motion: mgr, log: log.WithComponent("steppers")}
}

// MoveRequest is the body of a movement command
type MoveRequest struct {
	MovementType   string          `json:"movement_type"`
	MovementAmount json.RawMessage `json:"movement_amount"`
}

// ParameterRequest is the body of a parameter change
type ParameterRequest struct {
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

// GetSteppers returns every stepper motor and the movement types they accept
func (sc *StepperController) GetSteppers(c *gin.Context) {
	motors, err := sc.devices.ListStepperMotors(c.Request.Context())
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           motors,
		"count":          len(motors),
		"movement_types": motion.MovementTypes,
		"parameters":     motion.ParameterNames(),
	})
}

// GetStepper returns a single stepper motor
func (sc *StepperController) GetStepper(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	m, err := sc.devices.GetStepperMotor(c.Request.Context(), id)
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

// CreateStepper validates and stores a new stepper motor
func (sc *StepperController) CreateStepper(c *gin.Context) {
	var in models.StepperMotor
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := sc.devices.CreateStepperMotor(c.Request.Context(), &in); err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": in})
}

// UpdateStepper replaces the configuration of a stepper motor
func (sc *StepperController) UpdateStepper(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var in models.StepperMotor
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	m, err := sc.devices.UpdateStepperMotor(c.Request.Context(), id, &in)
	if err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": m})
}

// DeleteStepper removes a stepper motor and releases its driver
func (sc *StepperController) DeleteStepper(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := sc.devices.DeleteStepperMotor(c.Request.Context(), id); err != nil {
		writeError(c, sc.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Stepper motor deleted"})
}

// Move runs a movement command. Faults raised by the motor itself are
// reported as 501, bad targets as 400.
func (sc *StepperController) Move(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	line, err := sc.motion.Move(c.Request.Context(), id, req.MovementType, req.MovementAmount)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"log": line})
	case errors.Is(err, motion.ErrUnknownDevice), errors.Is(err, motion.ErrUnknownMovement):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case faults.Is(err, faults.Command), faults.Is(err, faults.Configuration), faults.Is(err, faults.Validation):
		writeErrorStatus(c, sc.log, http.StatusNotImplemented, err)
	default:
		writeErrorStatus(c, sc.log, http.StatusInternalServerError, err)
	}
}

// SetParameter changes one motion attribute. Every rejection is a 400.
func (sc *StepperController) SetParameter(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Property == "" || len(req.Value) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You did not provide a property or value key."})
		return
	}

	shown, err := sc.motion.SetMotionParameter(c.Request.Context(), id, req.Property, req.Value)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"log": "Attribute set successfully, new value " + shown})
	case errors.Is(err, motion.ErrUnknownDevice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "This stepper motor does not exist."})
	case errors.Is(err, motion.ErrProtectedParameter), errors.Is(err, motion.ErrUnknownParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		if _, isFault := faults.As(err); !isFault {
			writeErrorStatus(c, sc.log, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not set this attribute, error " + strings.TrimSuffix(err.Error(), ".") + "."})
	}
}
