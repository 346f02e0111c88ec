package lockout

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Lockout(ev Event) { r.events = append(r.events, ev) }

func setup(t *testing.T) (*Manager, *fakeClock, *models.StepperMotor) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := devices.NewService(st, devices.MustDefaultCatalog(), logger.Nop())
	m := &models.StepperMotor{Name: "A", DriverType: hardware.A4988, DirectionPin: pins.Ptr(5), StepPin: pins.Ptr(7)}
	if err := svc.CreateStepperMotor(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	mgr := NewManager(st, 0, logger.Nop())
	mgr.SetClock(clock.Now)
	return mgr, clock, m
}

func TestAcquireRefusesWhileActive(t *testing.T) {
	mgr, clock, m := setup(t)
	ctx := context.Background()

	l, err := mgr.Acquire(ctx, models.KindStepperMotor, m.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.LockoutEnd.Sub(l.LockoutStart); got != DefaultDuration {
		t.Errorf("expected default window, got %s", got)
	}

	clock.Advance(999 * time.Second)
	_, err = mgr.Acquire(ctx, models.KindStepperMotor, m.ID, time.Minute)
	f, ok := faults.As(err)
	if !ok || f.Kind != faults.Command {
		t.Fatalf("expected command fault, got %v", err)
	}
	if !strings.Contains(f.Error(), "2024-03-01T12:16:40Z") {
		t.Errorf("message should name the end time: %q", f.Error())
	}

	clock.Advance(2 * time.Second)
	if _, err := mgr.Acquire(ctx, models.KindStepperMotor, m.ID, time.Minute); err != nil {
		t.Fatalf("expired lockout must not block: %v", err)
	}
}

func TestSecondsBounds(t *testing.T) {
	tests := []struct {
		seconds float64
		want    time.Duration
		ok      bool
	}{
		{0, 0, true},
		{1.5, 1500 * time.Millisecond, true},
		{86400, 24 * time.Hour, true},
		{-1, 0, false},
		{1e11, 0, false},
		{1e300, 0, false},
	}
	for _, tt := range tests {
		got, err := Seconds(tt.seconds)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("%g: expected %s, got %s %v", tt.seconds, tt.want, got, err)
		}
		if !tt.ok && !faults.Is(err, faults.Command) {
			t.Errorf("%g: expected command fault, got %s %v", tt.seconds, got, err)
		}
	}
}

func TestAcquireRejectsNegativeDuration(t *testing.T) {
	mgr, _, m := setup(t)
	if _, err := mgr.Acquire(context.Background(), models.KindStepperMotor, m.ID, -time.Second); !faults.Is(err, faults.Command) {
		t.Fatalf("expected command fault, got %v", err)
	}
	if l, _ := mgr.Active(context.Background(), models.KindStepperMotor, m.ID); l != nil {
		t.Errorf("a rejected request must not lock the device, got %+v", l)
	}
}

func TestAcquireUnsavedDevice(t *testing.T) {
	mgr, _, _ := setup(t)
	_, err := mgr.Acquire(context.Background(), models.KindPushSwitch, 9, 0)
	if !faults.Is(err, faults.Command) {
		t.Fatalf("expected command fault, got %v", err)
	}
	if _, err := mgr.Acquire(context.Background(), "robot_arm", 1, 0); !faults.Is(err, faults.Command) {
		t.Fatalf("expected command fault for unknown type, got %v", err)
	}
}

func TestReleaseRunsHookAndFreesDevice(t *testing.T) {
	mgr, _, m := setup(t)
	ctx := context.Background()
	sink := &recordingSink{}
	mgr.SetSink(sink)

	var released []uint
	mgr.OnRelease(models.KindStepperMotor, func(id uint) error {
		released = append(released, id)
		return nil
	})

	if _, err := mgr.Acquire(ctx, models.KindStepperMotor, m.ID, time.Hour); err != nil {
		t.Fatal(err)
	}
	active, err := mgr.Active(ctx, models.KindStepperMotor, m.ID)
	if err != nil || active == nil {
		t.Fatalf("expected an active lockout, got %v %v", active, err)
	}

	n, err := mgr.Release(ctx, models.KindStepperMotor, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(released) != 1 || released[0] != m.ID {
		t.Errorf("removed %d, released %v", n, released)
	}
	if active, _ := mgr.Active(ctx, models.KindStepperMotor, m.ID); active != nil {
		t.Error("lockout should be gone")
	}
	if _, err := mgr.Acquire(ctx, models.KindStepperMotor, m.ID, time.Hour); err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}

	if len(sink.events) != 3 || sink.events[1].Action != "released" {
		t.Errorf("unexpected events %+v", sink.events)
	}
}
