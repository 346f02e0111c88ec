package models

import (
	"strings"
	"time"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/pins"

	"gorm.io/gorm"
)

// KindStepperMotor is the device type tag of stepper motors
const KindStepperMotor = "stepper_motor"

// StepperMotor is a stepper driven through a step/direction driver chip
type StepperMotor struct {
	ID                 uint                `json:"id" gorm:"primarykey"`
	Name               string              `json:"name" gorm:"size:200;not null"`
	Description        *string             `json:"description" gorm:"type:text"`
	DriverType         hardware.DriverType `json:"driver_type" gorm:"type:varchar(32);not null"`
	DirectionPin       *pins.PinID         `json:"direction_pin" gorm:"type:integer"`
	StepPin            *pins.PinID         `json:"step_pin" gorm:"type:integer"`
	MS1Pin             *pins.PinID         `json:"ms1_pin" gorm:"column:ms1_pin;type:integer"`
	MS2Pin             *pins.PinID         `json:"ms2_pin" gorm:"column:ms2_pin;type:integer"`
	MS3Pin             *pins.PinID         `json:"ms3_pin" gorm:"column:ms3_pin;type:integer"`
	StepsPerRevolution int                 `json:"steps_per_revolution" gorm:"not null;default:200"`
	MMPerRevolution    *float64            `json:"mm_per_revolution"`
	Motion             kinematics.Motion   `json:"motion" gorm:"embedded;embeddedPrefix:motion_"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// TableName specifies the table name for StepperMotor model
func (StepperMotor) TableName() string {
	return "stepper_motors"
}

func (m *StepperMotor) Kind() string      { return KindStepperMotor }
func (m *StepperMotor) Identity() uint    { return m.ID }
func (m *StepperMotor) OwnerName() string { return m.Name }

// PinSlots lists the pin-bearing fields in declaration order
func (m *StepperMotor) PinSlots() []pins.Slot {
	return []pins.Slot{
		{Name: "direction_pin", Pin: m.DirectionPin},
		{Name: "step_pin", Pin: m.StepPin},
		{Name: "ms1_pin", Pin: m.MS1Pin},
		{Name: "ms2_pin", Pin: m.MS2Pin},
		{Name: "ms3_pin", Pin: m.MS3Pin},
	}
}

// HasMicrostepPins reports whether all three mode-select pins are wired
func (m *StepperMotor) HasMicrostepPins() bool {
	return m.MS1Pin != nil && m.MS2Pin != nil && m.MS3Pin != nil
}

// Profile is the calibration used by the kinematics conversions
func (m *StepperMotor) Profile() kinematics.Profile {
	return kinematics.Profile{
		StepsPerRevolution: m.StepsPerRevolution,
		MMPerRevolution:    m.MMPerRevolution,
	}
}

// DriverPins builds the driver pin assignment, using the sentinel triple
// when microstepping is not wired
func (m *StepperMotor) DriverPins() hardware.StepperPins {
	p := hardware.StepperPins{Direction: pins.NoPin, Step: pins.NoPin, Mode: hardware.NoMicrostepping}
	if m.DirectionPin != nil {
		p.Direction = *m.DirectionPin
	}
	if m.StepPin != nil {
		p.Step = *m.StepPin
	}
	if m.HasMicrostepPins() {
		p.Mode = [3]pins.PinID{*m.MS1Pin, *m.MS2Pin, *m.MS3Pin}
	}
	return p
}

// ApplyDefaults fills values a new record starts with
func (m *StepperMotor) ApplyDefaults() {
	if m.StepsPerRevolution == 0 {
		m.StepsPerRevolution = kinematics.DefaultStepsPerRevolution
	}
	if m.Motion == (kinematics.Motion{}) {
		m.Motion = kinematics.DefaultMotion()
	}
	m.Motion.Normalize()
}

// Clean checks the field rules that do not depend on other devices
func (m *StepperMotor) Clean() error {
	var c faults.Collector
	if strings.TrimSpace(m.Name) == "" {
		c.Add("name", "This field cannot be blank.")
	}
	if !m.DriverType.Valid() {
		c.Add("driver_type", "Value '%s' is not a valid choice.", m.DriverType)
	}
	if m.StepsPerRevolution <= 0 {
		c.Add("steps_per_revolution", "Ensure this value is greater than 0.")
	}
	if m.MMPerRevolution != nil && *m.MMPerRevolution <= 0 {
		c.Add("mm_per_revolution", "Ensure this value is greater than 0.")
	}

	if m.DriverType == hardware.A4988 {
		if m.DirectionPin == nil {
			c.Add("direction_pin", "This field is required for this driver type.")
		}
		if m.StepPin == nil {
			c.Add("step_pin", "This field is required for this driver type.")
		}
		anyMode := m.MS1Pin != nil || m.MS2Pin != nil || m.MS3Pin != nil
		if anyMode && !m.HasMicrostepPins() {
			for _, f := range []string{"ms1_pin", "ms2_pin", "ms3_pin"} {
				c.Add(f, "All three of these must be set or none.")
			}
		}
	}

	if m.Motion.Resolution != "" && m.Motion.Resolution != kinematics.Full && !m.HasMicrostepPins() {
		c.Add("step_resolution", "MSX pins are not configured for this motor, therefore only full steps are allowed.")
	}
	return c.Err("stepper_motor.clean")
}

// BeforeSave hook sets defaults on new rows and rejects rows that break the field rules
func (m *StepperMotor) BeforeSave(tx *gorm.DB) error {
	if m.ID == 0 {
		m.ApplyDefaults()
	}
	return m.Clean()
}
