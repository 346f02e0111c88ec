package hardware

import (
	"context"
	"errors"
	"testing"
	"time"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/pins"
)

func TestNewBackendRequiresEveryDriverType(t *testing.T) {
	_, err := NewBackend("broken", map[DriverType]StepperFactory{}, func(pins.PinID) (InputPin, error) { return nil, nil })
	if !faults.Is(err, faults.Implementation) {
		t.Fatalf("expected implementation fault, got %v", err)
	}
}

func TestStepperWithoutDriverType(t *testing.T) {
	b, _, err := NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Stepper("", "Stepper A", StepperPins{Direction: 5, Step: 7, Mode: NoMicrostepping})
	if !faults.Is(err, faults.Configuration) {
		t.Fatalf("expected configuration fault, got %v", err)
	}
}

func TestBackendTracksLivePins(t *testing.T) {
	b, sim, err := NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	d, err := b.Stepper(A4988, "Stepper A", StepperPins{Direction: 5, Step: 7, Mode: NoMicrostepping})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(b.Live()); got != 2 {
		t.Fatalf("expected 2 live pins, got %d", got)
	}

	if _, err := b.Input("Limit", 7); !errors.Is(err, pins.ErrPinInUse) {
		t.Errorf("expected ErrPinInUse, got %v", err)
	}

	if err := d.Step(context.Background(), true, "Full", 10, 0.01, false, 0.001); err != nil {
		t.Fatal(err)
	}
	if moves := sim.Stepper(7).Moves(); len(moves) != 1 || moves[0].Count != 10 {
		t.Errorf("unexpected moves %+v", moves)
	}

	if err := d.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if !sim.Stepper(7).CleanedUp() {
		t.Error("driver cleanup not called")
	}
	if got := len(b.Live()); got != 0 {
		t.Errorf("expected no live pins after cleanup, got %d", got)
	}
}

func TestSimInputEdges(t *testing.T) {
	b, sim, err := NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	in, err := b.Input("Limit", 11)
	if err != nil {
		t.Fatal(err)
	}
	if err := in.Configure(RisingEdge, 0); err != nil {
		t.Fatal(err)
	}

	raw := sim.Input(11)
	raw.Set(true)
	if !in.WaitForEdge(time.Second) {
		t.Error("expected rising edge")
	}
	if !in.Read() {
		t.Error("expected high level")
	}
	raw.Set(false)
	if in.WaitForEdge(10 * time.Millisecond) {
		t.Error("falling edge should not be reported")
	}
	if err := in.Release(); err != nil {
		t.Fatal(err)
	}
	if !raw.Released() {
		t.Error("expected input released")
	}
}
