package models

import (
	"strings"
	"time"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/pins"

	"gorm.io/gorm"
)

// KindPushSwitch is the device type tag of push switches
const KindPushSwitch = "push_switch"

// SwitchType represents the push switch contact enum
type SwitchType string

const (
	PushToMake  SwitchType = "PTM"
	PushToBreak SwitchType = "PTB"
)

// Label is the human name of the contact type
func (t SwitchType) Label() string {
	switch t {
	case PushToMake:
		return "Push To Make"
	case PushToBreak:
		return "Push To Break"
	}
	return string(t)
}

// PushSwitch is a momentary switch wired to one input pin
type PushSwitch struct {
	ID          uint        `json:"id" gorm:"primarykey"`
	Name        string      `json:"name" gorm:"size:200;not null"`
	Description *string     `json:"description" gorm:"type:text"`
	SwitchType  SwitchType  `json:"switch_type" gorm:"type:varchar(8);not null"`
	InputPin    *pins.PinID `json:"input_pin" gorm:"type:integer"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableName specifies the table name for PushSwitch model
func (PushSwitch) TableName() string {
	return "push_switches"
}

func (s *PushSwitch) Kind() string      { return KindPushSwitch }
func (s *PushSwitch) Identity() uint    { return s.ID }
func (s *PushSwitch) OwnerName() string { return s.Name }

func (s *PushSwitch) PinSlots() []pins.Slot {
	return []pins.Slot{{Name: "input_pin", Pin: s.InputPin}}
}

func (s *PushSwitch) Clean() error {
	var c faults.Collector
	if strings.TrimSpace(s.Name) == "" {
		c.Add("name", "This field cannot be blank.")
	}
	if s.SwitchType != PushToMake && s.SwitchType != PushToBreak {
		c.Add("switch_type", "Value '%s' is not a valid choice.", s.SwitchType)
	}
	if s.InputPin == nil {
		c.Add("input_pin", "This field is required.")
	}
	return c.Err("push_switch.clean")
}

// BeforeSave hook rejects rows that break the field rules
func (s *PushSwitch) BeforeSave(tx *gorm.DB) error {
	return s.Clean()
}
