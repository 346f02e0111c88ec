package pins

import (
	"database/sql/driver"
	"fmt"
	"sort"
)

// PinID is a physical header pin number (BOARD numbering)
type PinID int

// NoPin is the sentinel used by drivers when a pin is not wired
const NoPin PinID = -1

// headerToBCM maps the usable 40-pin header positions to their BCM line numbers.
// Power, ground and the ID EEPROM pins are excluded.
var headerToBCM = map[PinID]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19, 36: 16, 37: 26,
	38: 20, 40: 21,
}

// Available returns the whitelist of usable pins in ascending order
func Available() []PinID {
	out := make([]PinID, 0, len(headerToBCM))
	for p := range headerToBCM {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Valid reports whether p is on the whitelist
func (p PinID) Valid() bool {
	_, ok := headerToBCM[p]
	return ok
}

// BCM returns the Broadcom line number behind the header pin
func (p PinID) BCM() (int, bool) {
	n, ok := headerToBCM[p]
	return n, ok
}

// GPIOName is the periph registry name of the pin, e.g. "GPIO4" for header pin 7
func (p PinID) GPIOName() string {
	if n, ok := headerToBCM[p]; ok {
		return fmt.Sprintf("GPIO%d", n)
	}
	return ""
}

func (p PinID) String() string {
	return fmt.Sprintf("P1_%d", int(p))
}

// Value lets gorm store a PinID as a plain integer column
func (p PinID) Value() (driver.Value, error) {
	return int64(p), nil
}

// Scan implements sql.Scanner
func (p *PinID) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = PinID(v)
	case int32:
		*p = PinID(v)
	case int:
		*p = PinID(v)
	case nil:
		*p = 0
	default:
		return fmt.Errorf("pins: cannot scan %T into PinID", src)
	}
	return nil
}

// Ptr is a helper for optional pin fields
func Ptr(p int) *PinID {
	id := PinID(p)
	return &id
}

// Slot is one pin-bearing field of a device. Pin is nil when the slot is unset.
type Slot struct {
	Name string
	Pin  *PinID
}

// Set reports whether the slot holds a pin
func (s Slot) Set() bool { return s.Pin != nil }

// Bearer is implemented by every device variant that claims header pins
type Bearer interface {
	// Kind is the variant tag, e.g. "stepper_motor"
	Kind() string
	// Identity is the persisted id, zero for unsaved devices
	Identity() uint
	OwnerName() string
	PinSlots() []Slot
}
