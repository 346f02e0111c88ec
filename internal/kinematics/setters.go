package kinematics

import (
	"fmt"

	"gpio_control_server/internal/faults"
)

// SetDirection accepts only the two literal direction tokens
func (m *Motion) SetDirection(token string) error {
	switch Direction(token) {
	case Clockwise, AntiClockwise:
		m.Direction = Direction(token)
		return nil
	}
	return faults.Commandf("kinematics.direction",
		"That is not a valid option, please choose 'clockwise' or 'anti-clockwise'.")
}

// SetResolution changes the microstep mode. Anything finer than Full needs
// all three mode-select pins wired.
func (m *Motion) SetResolution(token string, microstepping bool) error {
	r := Resolution(token)
	if _, ok := r.Multiplier(); !ok {
		return faults.Commandf("kinematics.resolution",
			"That is not a valid step type. Options are %v", fmt.Sprint(Resolutions))
	}
	if r != Full && !microstepping {
		return faults.NewValidation("kinematics.resolution", faults.FieldError{
			Field:   "step_resolution",
			Message: "MSX pins are not configured for this motor, therefore only full steps are allowed.",
		})
	}
	m.Resolution = r
	return nil
}

func checkDelay(op string, seconds float64) error {
	if seconds < 0 {
		return faults.Commandf(op, "Delay must not be negative.")
	}
	return nil
}

// SetStepDelay sets the pause between pulses, in seconds
func (m *Motion) SetStepDelay(seconds float64) error {
	if err := checkDelay("kinematics.step_delay", seconds); err != nil {
		return err
	}
	m.StepDelay = seconds
	return nil
}

// SetInitDelay sets the settle time before the first pulse, in seconds
func (m *Motion) SetInitDelay(seconds float64) error {
	if err := checkDelay("kinematics.init_delay", seconds); err != nil {
		return err
	}
	m.InitDelay = seconds
	return nil
}
