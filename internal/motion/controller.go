package motion

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
)

// State is the binding state of a controller
type State int

const (
	Unbound State = iota
	Bound
)

func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Controller drives one stepper motor. The hardware driver is bound lazily on
// the first movement and released by Close.
type Controller struct {
	motor   models.StepperMotor
	backend *hardware.Backend
	sink    Sink

	mu     sync.Mutex
	driver hardware.StepperDriver
}

// NewController takes a snapshot of motor; later edits need a new controller
func NewController(motor models.StepperMotor, backend *hardware.Backend, sink Sink) *Controller {
	motor.Motion.Normalize()
	return &Controller{motor: motor, backend: backend, sink: sink}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return Unbound
	}
	return Bound
}

// Motion returns the current motion state
func (c *Controller) Motion() kinematics.Motion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.motor.Motion
}

func (c *Controller) bind() error {
	if c.driver != nil {
		return nil
	}
	d, err := c.backend.Stepper(c.motor.DriverType, c.motor.Name, c.motor.DriverPins())
	if err != nil {
		return err
	}
	c.driver = d
	return nil
}

// step issues count pulses with the current motion state; callers hold c.mu
func (c *Controller) step(ctx context.Context, count int) error {
	if err := c.bind(); err != nil {
		return err
	}
	m := c.motor.Motion
	if err := c.driver.Step(ctx, m.Direction.Clockwise(), m.Resolution, count, m.StepDelay, m.Verbose, m.InitDelay); err != nil {
		return fmt.Errorf("step %s: %w", c.motor.Name, err)
	}
	return nil
}

func (c *Controller) emit(movementType string, steps int, line string) {
	if c.sink == nil {
		return
	}
	c.sink.Movement(Event{
		DeviceID:     c.motor.ID,
		Device:       c.motor.Name,
		MovementType: movementType,
		Steps:        steps,
		Line:         line,
		Timestamp:    time.Now(),
	})
}

// MoveSteps issues count pulses at the current resolution
func (c *Controller) MoveSteps(ctx context.Context, count int) (string, error) {
	if _, err := kinematics.RoundSteps("motion.steps", float64(count)); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.step(ctx, count); err != nil {
		return "", err
	}
	m := c.motor.Motion
	line := fmt.Sprintf("Moving stepper %s %d x %s steps in the %s direction.",
		c.motor.Name, count, m.Resolution, m.Direction)
	c.emit(MovementSteps, count, line)
	return line, nil
}

// MoveRotations turns the shaft by a number of revolutions
func (c *Controller) MoveRotations(ctx context.Context, rotations float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.motor.Motion
	steps, err := c.motor.Profile().StepsForRotations(m.Resolution, rotations)
	if err != nil {
		return "", err
	}
	if err := c.step(ctx, steps); err != nil {
		return "", err
	}
	line := fmt.Sprintf("Moving stepper %s %s x rotations (%d steps) in the %s direction.",
		c.motor.Name, strconv.FormatFloat(rotations, 'f', -1, 64), steps, m.Direction)
	c.emit(MovementRotations, steps, line)
	return line, nil
}

// MoveMillimeters moves a linear distance through the mm/rev calibration
func (c *Controller) MoveMillimeters(ctx context.Context, mm float64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.motor.Motion
	steps, err := c.motor.Profile().StepsForMillimeters(m.Resolution, mm)
	if err != nil {
		return "", err
	}
	if err := c.step(ctx, steps); err != nil {
		return "", err
	}
	line := fmt.Sprintf("Moving stepper %s %smm (%d steps) in the %s direction.",
		c.motor.Name, strconv.FormatFloat(mm, 'f', -1, 64), steps, m.Direction)
	c.emit(MovementMillimeters, steps, line)
	return line, nil
}

// Close releases the driver and its pins; the controller may bind again later
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver == nil {
		return nil
	}
	err := c.driver.Cleanup()
	c.driver = nil
	return err
}
