package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"gpio_control_server/config"
	"gpio_control_server/internal/db"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/pkg/logger"
)

func newMotor(name string, dir, step int) *models.StepperMotor {
	return &models.StepperMotor{
		Name:         name,
		DriverType:   hardware.A4988,
		DirectionPin: pins.Ptr(dir),
		StepPin:      pins.Ptr(step),
	}
}

// exercise runs the same contract against any Store implementation
func exercise(t *testing.T, s Store) {
	ctx := context.Background()

	m := newMotor("Stepper A", 5, 7)
	if err := s.SaveStepperMotor(ctx, m); err != nil {
		t.Fatalf("save motor: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.GetStepperMotor(ctx, m.ID)
	if err != nil {
		t.Fatalf("get motor: %v", err)
	}
	if got.StepsPerRevolution != 200 || got.Motion.Resolution != kinematics.Full {
		t.Errorf("defaults not applied: %+v", got)
	}

	bad := newMotor("", 5, 7)
	if err := s.SaveStepperMotor(ctx, bad); !faults.Is(err, faults.Validation) {
		t.Errorf("expected validation fault from save hook, got %v", err)
	}

	motion := got.Motion
	motion.Direction = kinematics.AntiClockwise
	if err := s.UpdateStepperMotion(ctx, m.ID, motion); err != nil {
		t.Fatalf("update motion: %v", err)
	}
	got, _ = s.GetStepperMotor(ctx, m.ID)
	if got.Motion.Direction != kinematics.AntiClockwise {
		t.Errorf("motion not persisted: %+v", got.Motion)
	}

	sw := &models.PushSwitch{Name: "Limit", SwitchType: models.PushToMake, InputPin: pins.Ptr(11)}
	if err := s.SavePushSwitch(ctx, sw); err != nil {
		t.Fatalf("save switch: %v", err)
	}
	switches, err := s.ListPushSwitches(ctx)
	if err != nil || len(switches) != 1 {
		t.Fatalf("list switches: %v %d", err, len(switches))
	}

	now := time.Now().UTC()
	l := &models.Lockout{DeviceType: models.KindStepperMotor, DeviceID: m.ID, LockoutStart: now, LockoutEnd: now.Add(time.Minute)}
	if err := s.CreateLockout(ctx, l); err != nil {
		t.Fatalf("create lockout: %v", err)
	}
	active, err := s.ActiveLockouts(ctx, models.KindStepperMotor, m.ID, now)
	if err != nil || len(active) != 1 {
		t.Fatalf("active lockouts: %v %d", err, len(active))
	}
	if expired, _ := s.ActiveLockouts(ctx, models.KindStepperMotor, m.ID, now.Add(2*time.Minute)); len(expired) != 0 {
		t.Error("lockout should have expired")
	}
	if n, err := s.DeleteActiveLockouts(ctx, models.KindStepperMotor, m.ID, now); err != nil || n != 1 {
		t.Errorf("delete lockouts: %v %d", err, n)
	}

	if err := s.DeleteStepperMotor(ctx, m.ID); err != nil {
		t.Fatalf("delete motor: %v", err)
	}
	if _, err := s.GetStepperMotor(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePushSwitch(ctx, sw.ID); err != nil {
		t.Fatalf("delete switch: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestMemoryStoreTransactionRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transaction(ctx, func(tx Tx) error {
		if err := tx.SaveStepperMotor(ctx, newMotor("Stepper A", 5, 7)); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	motors, _ := s.ListStepperMotors(ctx)
	if len(motors) != 0 {
		t.Errorf("expected rollback, found %d motors", len(motors))
	}
}

func TestMemoryStoreRollbackKeepsOutsideWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sw := &models.PushSwitch{Name: "Door", SwitchType: models.PushToMake, InputPin: pins.Ptr(13)}
	if err := s.SavePushSwitch(ctx, sw); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	boom := errors.New("boom")
	go func() {
		txDone <- s.Transaction(ctx, func(tx Tx) error {
			if err := tx.SaveStepperMotor(ctx, newMotor("Stepper A", 5, 7)); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	deleted := make(chan error, 1)
	go func() { deleted <- s.DeletePushSwitch(ctx, sw.ID) }()
	select {
	case err := <-deleted:
		t.Fatalf("delete ran inside an open transaction: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	if err := <-txDone; err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := <-deleted; err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetPushSwitch(ctx, sw.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("the rollback brought back a deleted switch: %v", err)
	}
	if motors, _ := s.ListStepperMotors(ctx); len(motors) != 0 {
		t.Errorf("expected the failed transaction's motor to be gone, found %d", len(motors))
	}
}

func TestGormStore(t *testing.T) {
	cfg := config.GetDatabaseConfig()
	if err := db.Initialize(cfg, logger.Nop()); err != nil {
		t.Skipf("Database not available for testing: %v", err)
	}
	defer db.Close()

	// run inside a transaction that is always rolled back
	rollback := errors.New("rollback")
	s := NewGormStore(db.GetDB())
	if err := s.Transaction(context.Background(), func(tx Tx) error {
		exercise(t, tx.(Store))
		return rollback
	}); err != rollback {
		t.Fatalf("transaction: %v", err)
	}
}
