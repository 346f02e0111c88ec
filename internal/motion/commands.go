package motion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/kinematics"
)

const (
	MovementSteps       = "move_steps"
	MovementRotations   = "move_rotations"
	MovementMillimeters = "move_mm"
)

// MovementTypes lists the movement commands a stepper accepts
var MovementTypes = []string{MovementMillimeters, MovementSteps, MovementRotations}

var (
	ErrUnknownMovement    = errors.New("The specified movement type does not exist.")
	ErrProtectedParameter = errors.New("You cannot set protected attributes with this API.")
	ErrUnknownParameter   = errors.New("Could not set this attribute, does not exist.")
)

// Move parses amount for movementType and runs it
func (c *Controller) Move(ctx context.Context, movementType string, amount json.RawMessage) (string, error) {
	switch movementType {
	case MovementSteps:
		n, shown, ok := parseInt(amount)
		if !ok {
			return "", faults.Commandf("motion.move_steps", "%s is not a valid number of steps.", shown)
		}
		return c.MoveSteps(ctx, n)
	case MovementRotations:
		f, shown, ok := parseFloat(amount)
		if !ok {
			return "", faults.Commandf("motion.move_rotations", "%s is not a valid number of rotations.", shown)
		}
		return c.MoveRotations(ctx, f)
	case MovementMillimeters:
		f, shown, ok := parseFloat(amount)
		if !ok {
			return "", faults.Commandf("motion.move_mm", "%s is not a valid millimeter measurement.", shown)
		}
		return c.MoveMillimeters(ctx, f)
	}
	return "", ErrUnknownMovement
}

type setter func(m *kinematics.Motion, microstepping bool, raw json.RawMessage) (any, error)

func delaySetter(set func(*kinematics.Motion, float64) error) setter {
	return func(m *kinematics.Motion, _ bool, raw json.RawMessage) (any, error) {
		f, _, ok := parseFloat(raw)
		if !ok {
			return nil, faults.Commandf("motion.delay", "Step delay must be a numeric value in seconds.")
		}
		if err := set(m, f); err != nil {
			return nil, err
		}
		return f, nil
	}
}

func setResolution(m *kinematics.Motion, microstepping bool, raw json.RawMessage) (any, error) {
	s, ok := parseString(raw)
	if !ok {
		s = strings.TrimSpace(string(raw))
	}
	if err := m.SetResolution(s, microstepping); err != nil {
		return nil, err
	}
	return string(m.Resolution), nil
}

// parameters is the full set of attributes an operator may change
var parameters = map[string]setter{
	"direction_of_rotation": func(m *kinematics.Motion, _ bool, raw json.RawMessage) (any, error) {
		s, _ := parseString(raw)
		if err := m.SetDirection(s); err != nil {
			return nil, err
		}
		return string(m.Direction), nil
	},
	"step_resolution": setResolution,
	"steptype":        setResolution,
	"step_delay":      delaySetter((*kinematics.Motion).SetStepDelay),
	"init_delay":      delaySetter((*kinematics.Motion).SetInitDelay),
	"verbose": func(m *kinematics.Motion, _ bool, raw json.RawMessage) (any, error) {
		b, ok := parseBool(raw)
		if !ok {
			return nil, faults.Commandf("motion.verbose", "Verbose must be true or false.")
		}
		m.Verbose = b
		return b, nil
	},
}

// ParameterNames lists the settable attributes
func ParameterNames() []string {
	return []string{"direction_of_rotation", "step_resolution", "step_delay", "init_delay", "verbose"}
}

// SetMotionParameter changes one motion attribute and returns the new value as
// shown to the operator. The motion state is left untouched on error.
func (c *Controller) SetMotionParameter(name string, value json.RawMessage) (string, error) {
	if strings.HasPrefix(name, "_") {
		return "", ErrProtectedParameter
	}
	set, ok := parameters[name]
	if !ok {
		return "", ErrUnknownParameter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.motor.Motion
	v, err := set(&next, c.motor.HasMicrostepPins(), value)
	if err != nil {
		return "", err
	}
	c.motor.Motion = next
	return formatValue(v), nil
}

// restoreMotion puts back a motion state whose persistence failed
func (c *Controller) restoreMotion(m kinematics.Motion) {
	c.mu.Lock()
	c.motor.Motion = m
	c.mu.Unlock()
}
