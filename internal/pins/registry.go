package pins

import (
	"errors"
	"sort"

	"gpio_control_server/internal/faults"
)

var (
	ErrUnknownPin = errors.New("unknown_pin")
	ErrPinInUse   = errors.New("pin_in_use")
)

// Claim records who holds a pin
type Claim struct {
	Pin   PinID  `json:"pin"`
	Kind  string `json:"device_type"`
	ID    uint   `json:"device_id"`
	Owner string `json:"owner"`
	Slot  string `json:"slot"`
}

// Registry is a snapshot of pin ownership. It is built fresh for every
// validation run and never shared between goroutines.
type Registry struct {
	used map[PinID]Claim
}

// NewRegistry claims every set slot of the given devices. A pin claimed
// twice keeps its first holder.
func NewRegistry(devices []Bearer) *Registry {
	r := &Registry{used: make(map[PinID]Claim)}
	for _, d := range devices {
		for _, s := range d.PinSlots() {
			if !s.Set() {
				continue
			}
			_ = r.Claim(Claim{Pin: *s.Pin, Kind: d.Kind(), ID: d.Identity(), Owner: d.OwnerName(), Slot: s.Name})
		}
	}
	return r
}

// Claim takes a pin for a device slot
func (r *Registry) Claim(c Claim) error {
	if !c.Pin.Valid() {
		return ErrUnknownPin
	}
	if _, inUse := r.used[c.Pin]; inUse {
		return ErrPinInUse
	}
	r.used[c.Pin] = c
	return nil
}

// Holder returns the claim on pin, if any
func (r *Registry) Holder(pin PinID) (Claim, bool) {
	c, ok := r.used[pin]
	return c, ok
}

// Release frees every pin held by the given device
func (r *Registry) Release(kind string, id uint) {
	for pin, c := range r.used {
		if c.Kind == kind && c.ID == id {
			delete(r.used, pin)
		}
	}
}

// ReleasePin frees a single pin
func (r *Registry) ReleasePin(pin PinID) {
	delete(r.used, pin)
}

// Claims lists the current claims ordered by pin
func (r *Registry) Claims() []Claim {
	out := make([]Claim, 0, len(r.used))
	for _, c := range r.used {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pin < out[j].Pin })
	return out
}

func sameDevice(a, b Bearer) bool {
	return a.Identity() != 0 && a.Kind() == b.Kind() && a.Identity() == b.Identity()
}

// Validate checks candidate against itself and against every other device.
// All field problems are collected into one validation fault.
func Validate(candidate Bearer, existing []Bearer) error {
	var c faults.Collector
	slots := candidate.PinSlots()

	for _, s := range slots {
		if s.Set() && !s.Pin.Valid() {
			c.Add(s.Name, "Select a valid choice. %d is not one of the available choices.", int(*s.Pin))
		}
	}

	for i, s := range slots {
		if !s.Set() {
			continue
		}
		for j, other := range slots {
			if i == j || !other.Set() {
				continue
			}
			if *s.Pin == *other.Pin {
				c.Add(s.Name, "This GPIO pin is used in this device for %s, GPIO pins must be unique.", other.Name)
				break
			}
		}
	}

	others := make([]Bearer, 0, len(existing))
	for _, d := range existing {
		if sameDevice(candidate, d) {
			continue
		}
		others = append(others, d)
	}
	reg := NewRegistry(others)
	for _, s := range slots {
		if !s.Set() {
			continue
		}
		if holder, taken := reg.Holder(*s.Pin); taken {
			c.Add(s.Name, "This GPIO pin is already in use on %s, please select another.", holder.Owner)
		}
	}

	return c.Err("pins.validate")
}
