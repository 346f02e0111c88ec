package hardware

import (
	"context"
	"fmt"
	"time"

	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/pins"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpioutil"
	"periph.io/x/host/v3"
)

// a4988Modes is the MS1/MS2/MS3 level table of the A4988
var a4988Modes = map[kinematics.Resolution][3]gpio.Level{
	kinematics.Full:      {gpio.Low, gpio.Low, gpio.Low},
	kinematics.Half:      {gpio.High, gpio.Low, gpio.Low},
	kinematics.Quarter:   {gpio.Low, gpio.High, gpio.Low},
	kinematics.Eighth:    {gpio.High, gpio.High, gpio.Low},
	kinematics.Sixteenth: {gpio.High, gpio.High, gpio.High},
}

// NewPeriphBackend initialises the host drivers and returns a backend that
// drives real header pins.
func NewPeriphBackend() (*Backend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return NewBackend("periph",
		map[DriverType]StepperFactory{A4988: newPeriphA4988},
		newPeriphInput,
	)
}

func lookup(p pins.PinID) (gpio.PinIO, error) {
	name := p.GPIOName()
	if name == "" {
		return nil, fmt.Errorf("%w: %s", pins.ErrUnknownPin, p)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %s not found for %s", name, p)
	}
	return pin, nil
}

type periphA4988 struct {
	dir  gpio.PinIO
	step gpio.PinIO
	mode []gpio.PinIO
}

func newPeriphA4988(p StepperPins) (StepperDriver, error) {
	d := &periphA4988{}
	var err error
	if d.dir, err = lookup(p.Direction); err != nil {
		return nil, err
	}
	if d.step, err = lookup(p.Step); err != nil {
		return nil, err
	}
	if p.Microstepping() {
		for _, m := range p.Mode {
			pin, err := lookup(m)
			if err != nil {
				return nil, err
			}
			d.mode = append(d.mode, pin)
		}
	}
	return d, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Step pulses the step pin count times. A negative count runs the other way.
func (d *periphA4988) Step(ctx context.Context, clockwise bool, res kinematics.Resolution, count int, stepDelay float64, verbose bool, initDelay float64) error {
	if count < 0 {
		count = -count
		clockwise = !clockwise
	}
	if len(d.mode) == 3 {
		levels, ok := a4988Modes[res]
		if !ok {
			return fmt.Errorf("a4988: unsupported resolution %q", res)
		}
		for i, pin := range d.mode {
			if err := pin.Out(levels[i]); err != nil {
				return fmt.Errorf("a4988: set mode pin %s: %w", pin, err)
			}
		}
	}
	time.Sleep(seconds(initDelay))

	if err := d.dir.Out(gpio.Level(clockwise)); err != nil {
		return fmt.Errorf("a4988: set direction: %w", err)
	}
	delay := seconds(stepDelay)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("a4988: stopped after %d of %d steps: %w", i, count, err)
		}
		if err := d.step.Out(gpio.High); err != nil {
			return fmt.Errorf("a4988: step high: %w", err)
		}
		time.Sleep(delay)
		if err := d.step.Out(gpio.Low); err != nil {
			return fmt.Errorf("a4988: step low: %w", err)
		}
		time.Sleep(delay)
	}
	return nil
}

func (d *periphA4988) Cleanup() error {
	var first error
	for _, pin := range append([]gpio.PinIO{d.dir, d.step}, d.mode...) {
		if err := pin.Out(gpio.Low); err != nil && first == nil {
			first = err
		}
		if err := pin.Halt(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type periphInput struct {
	raw gpio.PinIO
	pin gpio.PinIO
}

func newPeriphInput(p pins.PinID) (InputPin, error) {
	pin, err := lookup(p)
	if err != nil {
		return nil, err
	}
	return &periphInput{raw: pin, pin: pin}, nil
}

func periphEdge(e Edge) gpio.Edge {
	switch e {
	case RisingEdge:
		return gpio.RisingEdge
	case FallingEdge:
		return gpio.FallingEdge
	case BothEdges:
		return gpio.BothEdges
	}
	return gpio.NoEdge
}

func (i *periphInput) Configure(edge Edge, debounce time.Duration) error {
	pe := periphEdge(edge)
	if err := i.raw.In(gpio.PullDown, pe); err != nil {
		return fmt.Errorf("configure input %s: %w", i.raw, err)
	}
	i.pin = i.raw
	if debounce > 0 && pe != gpio.NoEdge {
		deb, err := gpioutil.Debounce(i.raw, 0, debounce, pe)
		if err != nil {
			return fmt.Errorf("debounce input %s: %w", i.raw, err)
		}
		i.pin = deb
	}
	return nil
}

func (i *periphInput) Read() bool { return i.pin.Read() == gpio.High }

func (i *periphInput) WaitForEdge(timeout time.Duration) bool {
	return i.pin.WaitForEdge(timeout)
}

func (i *periphInput) Release() error { return i.raw.Halt() }
