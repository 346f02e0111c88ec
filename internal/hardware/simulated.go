package hardware

import (
	"context"
	"sync"
	"time"

	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/pins"
)

// Move is one recorded call to a simulated driver
type Move struct {
	Clockwise  bool
	Resolution kinematics.Resolution
	Count      int
	StepDelay  float64
	Verbose    bool
	InitDelay  float64
}

// SimStepper records moves instead of pulsing pins
type SimStepper struct {
	Pins StepperPins

	mu      sync.Mutex
	moves   []Move
	cleaned bool
}

func (s *SimStepper) Step(ctx context.Context, clockwise bool, res kinematics.Resolution, count int, stepDelay float64, verbose bool, initDelay float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, Move{clockwise, res, count, stepDelay, verbose, initDelay})
	return nil
}

func (s *SimStepper) Cleanup() error {
	s.mu.Lock()
	s.cleaned = true
	s.mu.Unlock()
	return nil
}

// Moves returns a copy of the recorded moves
func (s *SimStepper) Moves() []Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Move(nil), s.moves...)
}

func (s *SimStepper) CleanedUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleaned
}

// SimInput is an input pin whose level is set by the caller
type SimInput struct {
	mu       sync.Mutex
	level    bool
	edge     Edge
	edges    chan struct{}
	released bool
}

func newSimInput() *SimInput {
	return &SimInput{edges: make(chan struct{}, 16)}
}

func (s *SimInput) Configure(edge Edge, debounce time.Duration) error {
	s.mu.Lock()
	s.edge = edge
	s.mu.Unlock()
	return nil
}

func (s *SimInput) Read() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

func (s *SimInput) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-s.edges
		return true
	}
	select {
	case <-s.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *SimInput) Release() error {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
	return nil
}

// Set drives the simulated level and reports an edge if the configured edge matches
func (s *SimInput) Set(high bool) {
	s.mu.Lock()
	changed := s.level != high
	s.level = high
	edge := s.edge
	s.mu.Unlock()
	if !changed {
		return
	}
	if edge == BothEdges || (edge == RisingEdge && high) || (edge == FallingEdge && !high) {
		select {
		case s.edges <- struct{}{}:
		default:
		}
	}
}

func (s *SimInput) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Simulator hands out simulated drivers and keeps them reachable for inspection
type Simulator struct {
	mu       sync.Mutex
	steppers map[pins.PinID]*SimStepper
	inputs   map[pins.PinID]*SimInput
}

// NewSimulatedBackend returns a backend without any real GPIO access
func NewSimulatedBackend() (*Backend, *Simulator, error) {
	sim := &Simulator{
		steppers: make(map[pins.PinID]*SimStepper),
		inputs:   make(map[pins.PinID]*SimInput),
	}
	b, err := NewBackend("simulated",
		map[DriverType]StepperFactory{A4988: sim.stepper},
		sim.input,
	)
	if err != nil {
		return nil, nil, err
	}
	return b, sim, nil
}

func (s *Simulator) stepper(p StepperPins) (StepperDriver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &SimStepper{Pins: p}
	s.steppers[p.Step] = d
	return d, nil
}

func (s *Simulator) input(p pins.PinID) (InputPin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inputs[p]
	if !ok || in.Released() {
		in = newSimInput()
		s.inputs[p] = in
	}
	return in, nil
}

// Stepper returns the most recent driver bound to the given step pin
func (s *Simulator) Stepper(step pins.PinID) *SimStepper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steppers[step]
}

// Input returns the simulated input on pin, creating it if needed
func (s *Simulator) Input(p pins.PinID) *SimInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.inputs[p]
	if !ok {
		in = newSimInput()
		s.inputs[p] = in
	}
	return in
}
