package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/pins"
)

// DriverType names a stepper driver chip family
type DriverType string

const (
	A4988 DriverType = "A4988"
)

// DriverTypes is every driver type a device may declare
var DriverTypes = []DriverType{A4988}

// Valid reports whether t is a known driver type
func (t DriverType) Valid() bool {
	for _, d := range DriverTypes {
		if d == t {
			return true
		}
	}
	return false
}

// StepperPins is the pin assignment handed to a driver. Mode holds the three
// microstep-select pins, or NoPin in every position when microstepping is not wired.
type StepperPins struct {
	Direction pins.PinID
	Step      pins.PinID
	Mode      [3]pins.PinID
}

// NoMicrostepping is the sentinel mode triple
var NoMicrostepping = [3]pins.PinID{pins.NoPin, pins.NoPin, pins.NoPin}

// Microstepping reports whether the mode pins are wired
func (p StepperPins) Microstepping() bool {
	return p.Mode != NoMicrostepping
}

// StepperDriver generates step/direction pulses for one motor
type StepperDriver interface {
	Step(ctx context.Context, clockwise bool, res kinematics.Resolution, count int, stepDelay float64, verbose bool, initDelay float64) error
	Cleanup() error
}

// StepperFactory builds a driver bound to a pin assignment
type StepperFactory func(p StepperPins) (StepperDriver, error)

// Edge selects which input transitions are reported
type Edge string

const (
	RisingEdge  Edge = "rising"
	FallingEdge Edge = "falling"
	BothEdges   Edge = "both"
)

// Valid reports whether e is a known edge token
func (e Edge) Valid() bool {
	return e == RisingEdge || e == FallingEdge || e == BothEdges
}

// InputPin is a digital input with edge detection
type InputPin interface {
	Configure(edge Edge, debounce time.Duration) error
	Read() bool
	WaitForEdge(timeout time.Duration) bool
	Release() error
}

// InputFactory opens an input pin
type InputFactory func(pin pins.PinID) (InputPin, error)

// Backend is the hardware collaborator. It resolves driver types to
// factories and tracks which header pins are currently driven.
type Backend struct {
	name      string
	factories map[DriverType]StepperFactory
	inputs    InputFactory

	mu   sync.Mutex
	live *pins.Registry
}

// NewBackend checks that every declared driver type has a factory
func NewBackend(name string, factories map[DriverType]StepperFactory, inputs InputFactory) (*Backend, error) {
	for _, t := range DriverTypes {
		if f, ok := factories[t]; !ok || f == nil {
			return nil, faults.Implementationf("hardware.backend", "Driver class not set for driver %s.", t)
		}
	}
	if inputs == nil {
		return nil, faults.Implementationf("hardware.backend", "Input pin factory not set for backend %s.", name)
	}
	return &Backend{
		name:      name,
		factories: factories,
		inputs:    inputs,
		live:      pins.NewRegistry(nil),
	}, nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) claim(owner, kind string, named map[string]pins.PinID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var taken []pins.PinID
	for slot, p := range named {
		if p == pins.NoPin {
			continue
		}
		if err := b.live.Claim(pins.Claim{Pin: p, Kind: kind, Owner: owner, Slot: slot}); err != nil {
			for _, t := range taken {
				b.live.ReleasePin(t)
			}
			return fmt.Errorf("claim %s for %s: %w", p, owner, err)
		}
		taken = append(taken, p)
	}
	return nil
}

func (b *Backend) release(ps ...pins.PinID) {
	b.mu.Lock()
	for _, p := range ps {
		b.live.ReleasePin(p)
	}
	b.mu.Unlock()
}

// Stepper binds a driver of type t to the given pins on behalf of owner
func (b *Backend) Stepper(t DriverType, owner string, p StepperPins) (StepperDriver, error) {
	if t == "" {
		return nil, faults.Configurationf("hardware.stepper", "This class does not have a driver set yet. Save the model first.")
	}
	factory, ok := b.factories[t]
	if !ok {
		return nil, faults.Implementationf("hardware.stepper", "Driver class not set for driver %s.", t)
	}
	named := map[string]pins.PinID{
		"direction": p.Direction,
		"step":      p.Step,
		"ms1":       p.Mode[0],
		"ms2":       p.Mode[1],
		"ms3":       p.Mode[2],
	}
	if err := b.claim(owner, string(t), named); err != nil {
		return nil, err
	}
	d, err := factory(p)
	if err != nil {
		b.release(p.Direction, p.Step, p.Mode[0], p.Mode[1], p.Mode[2])
		return nil, err
	}
	return &claimedStepper{StepperDriver: d, backend: b, pins: []pins.PinID{p.Direction, p.Step, p.Mode[0], p.Mode[1], p.Mode[2]}}, nil
}

// Input opens an input pin on behalf of owner
func (b *Backend) Input(owner string, pin pins.PinID) (InputPin, error) {
	if err := b.claim(owner, "input", map[string]pins.PinID{"input": pin}); err != nil {
		return nil, err
	}
	in, err := b.inputs(pin)
	if err != nil {
		b.release(pin)
		return nil, err
	}
	return &claimedInput{InputPin: in, backend: b, pin: pin}, nil
}

// Live lists the pins currently held by bound drivers and inputs
func (b *Backend) Live() []pins.Claim {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live.Claims()
}

type claimedStepper struct {
	StepperDriver
	backend *Backend
	pins    []pins.PinID
	once    sync.Once
}

func (c *claimedStepper) Cleanup() error {
	var err error
	c.once.Do(func() {
		err = c.StepperDriver.Cleanup()
		c.backend.release(c.pins...)
	})
	return err
}

type claimedInput struct {
	InputPin
	backend *Backend
	pin     pins.PinID
	once    sync.Once
}

func (c *claimedInput) Release() error {
	var err error
	c.once.Do(func() {
		err = c.InputPin.Release()
		c.backend.release(c.pin)
	})
	return err
}
