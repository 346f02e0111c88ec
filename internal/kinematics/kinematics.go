package kinematics

import (
	"math"
	"strconv"

	"gpio_control_server/internal/faults"
)

// Direction is the rotation sense of a stepper
type Direction string

const (
	Clockwise     Direction = "clockwise"
	AntiClockwise Direction = "anti-clockwise"
)

// Clockwise reports the boolean form drivers expect
func (d Direction) Clockwise() bool { return d != AntiClockwise }

// Resolution is the microstepping mode of the driver
type Resolution string

const (
	Full      Resolution = "Full"
	Half      Resolution = "Half"
	Quarter   Resolution = "1/4"
	Eighth    Resolution = "1/8"
	Sixteenth Resolution = "1/16"
)

// Resolutions lists every mode in increasing fineness
var Resolutions = []Resolution{Full, Half, Quarter, Eighth, Sixteenth}

var multipliers = map[Resolution]int{
	Full:      1,
	Half:      2,
	Quarter:   4,
	Eighth:    8,
	Sixteenth: 16,
}

// Multiplier returns the number of pulses per full step
func (r Resolution) Multiplier() (int, bool) {
	m, ok := multipliers[r]
	return m, ok
}

const (
	DefaultStepsPerRevolution = 200
	DefaultStepDelay          = 0.01
	DefaultInitDelay          = 0.001
)

// Motion is the mutable motion state of one stepper
type Motion struct {
	Direction  Direction  `json:"direction_of_rotation" gorm:"type:varchar(16);not null;default:'clockwise'"`
	Resolution Resolution `json:"step_resolution" gorm:"type:varchar(8);not null;default:'Full'"`
	StepDelay  float64    `json:"step_delay" gorm:"not null;default:0.01"`
	InitDelay  float64    `json:"init_delay" gorm:"not null;default:0.001"`
	Verbose    bool       `json:"verbose" gorm:"not null;default:false"`
}

// DefaultMotion is the state a freshly configured stepper starts in
func DefaultMotion() Motion {
	return Motion{
		Direction:  Clockwise,
		Resolution: Full,
		StepDelay:  DefaultStepDelay,
		InitDelay:  DefaultInitDelay,
	}
}

// Normalize fills zero values left by old rows or partial JSON
func (m *Motion) Normalize() {
	if m.Direction == "" {
		m.Direction = Clockwise
	}
	if m.Resolution == "" {
		m.Resolution = Full
	}
}

// Profile is the per-device calibration the conversions depend on
type Profile struct {
	StepsPerRevolution int
	MMPerRevolution    *float64
}

// PulsesPerRevolution is the pulse count of one revolution at resolution r
func (p Profile) PulsesPerRevolution(r Resolution) int {
	m, ok := r.Multiplier()
	if !ok {
		m = 1
	}
	return p.StepsPerRevolution * m
}

// MaxSteps bounds a single movement in either direction
const MaxSteps = math.MaxInt32

// RoundSteps rounds half away from zero and rejects counts beyond MaxSteps
func RoundSteps(op string, steps float64) (int, error) {
	r := math.Round(steps)
	if math.IsNaN(r) || math.Abs(r) > MaxSteps {
		return 0, faults.Commandf(op, "A movement of %s steps is out of range.", strconv.FormatFloat(r, 'g', -1, 64))
	}
	return int(r), nil
}

// StepsForRotations converts revolutions to pulses; fractional steps are never issued
func (p Profile) StepsForRotations(r Resolution, rotations float64) (int, error) {
	return RoundSteps("kinematics.rotations", rotations*float64(p.PulsesPerRevolution(r)))
}

// StepsForMillimeters converts a linear distance through the mm/rev calibration
func (p Profile) StepsForMillimeters(r Resolution, mm float64) (int, error) {
	if p.MMPerRevolution == nil || *p.MMPerRevolution == 0 {
		return 0, faults.Configurationf("kinematics.mm", "You have not designated a mm/rev for this motor.")
	}
	return RoundSteps("kinematics.mm", mm / *p.MMPerRevolution * float64(p.PulsesPerRevolution(r)))
}
