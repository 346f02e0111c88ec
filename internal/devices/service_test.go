package devices

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

func newService() *Service {
	return NewService(store.NewMemoryStore(), MustDefaultCatalog(), logger.Nop())
}

func motor(name string, dir, step int) *models.StepperMotor {
	return &models.StepperMotor{
		Name:         name,
		DriverType:   hardware.A4988,
		DirectionPin: pins.Ptr(dir),
		StepPin:      pins.Ptr(step),
	}
}

func TestNewCatalogRejectsMalformedIDs(t *testing.T) {
	load := func(context.Context, store.Tx) ([]pins.Bearer, error) { return nil, nil }
	for _, id := range []string{"stepper_motor", "a.b.c", ".b", ""} {
		_, err := NewCatalog(Variant{ID: id, Load: load})
		f, ok := faults.As(err)
		if !ok || f.Kind != faults.Implementation {
			t.Errorf("%q: expected implementation fault, got %v", id, err)
			continue
		}
		if !strings.Contains(f.Error(), "you defined "+id+".") {
			t.Errorf("%q: unexpected message %q", id, f.Error())
		}
	}
	if _, err := NewCatalog(Variant{ID: "a.b", Load: load}, Variant{ID: "a.b", Load: load}); err == nil {
		t.Error("duplicate variants should fail")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("the built-in variants must register cleanly: %v", err)
	}
	want := []string{"motor_controller.stepper_motor", "switch_controller.push_switch"}
	if got := c.IDs(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCreateRejectsCrossDeviceConflicts(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if err := svc.CreateStepperMotor(ctx, motor("Stepper A", 5, 7)); err != nil {
		t.Fatal(err)
	}
	sw := &models.PushSwitch{Name: "Limit", SwitchType: models.PushToMake, InputPin: pins.Ptr(7)}
	err := svc.CreatePushSwitch(ctx, sw)
	f, ok := faults.As(err)
	if !ok || f.Kind != faults.Validation {
		t.Fatalf("expected validation fault, got %v", err)
	}
	if got := f.FieldMap()["input_pin"]; len(got) != 1 || !strings.Contains(got[0], "Stepper A") {
		t.Errorf("unexpected input_pin errors %v", got)
	}

	switches, _ := svc.ListPushSwitches(ctx)
	if len(switches) != 0 {
		t.Error("rejected switch must not be persisted")
	}
}

func TestCreateCollectsFieldRulesAndConflicts(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if err := svc.CreateStepperMotor(ctx, motor("Stepper A", 5, 7)); err != nil {
		t.Fatal(err)
	}

	m := motor("Stepper B", 5, 8)
	m.MS1Pin = pins.Ptr(11)
	f, ok := faults.As(svc.CreateStepperMotor(ctx, m))
	if !ok {
		t.Fatal("expected a fault")
	}
	for _, field := range []string{"direction_pin", "ms1_pin", "ms2_pin", "ms3_pin"} {
		if !f.Has(field) {
			t.Errorf("expected error on %s, got %v", field, f.FieldMap())
		}
	}
}

func TestUpdateExcludesOwnRecord(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	m := motor("Stepper A", 5, 7)
	if err := svc.CreateStepperMotor(ctx, m); err != nil {
		t.Fatal(err)
	}

	var notified []uint
	svc.OnChange(func(kind string, id uint) { notified = append(notified, id) })

	in := motor("Stepper A renamed", 5, 7)
	updated, err := svc.UpdateStepperMotor(ctx, m.ID, in)
	if err != nil {
		t.Fatalf("updating with the same pins must pass: %v", err)
	}
	if updated.Name != "Stepper A renamed" {
		t.Errorf("unexpected name %q", updated.Name)
	}
	if len(notified) != 1 || notified[0] != m.ID {
		t.Errorf("expected change notification, got %v", notified)
	}
}

func TestUpdateKeepsOmittedCalibration(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	m := motor("Stepper A", 5, 7)
	m.StepsPerRevolution = 400
	if err := svc.CreateStepperMotor(ctx, m); err != nil {
		t.Fatal(err)
	}

	in := &models.StepperMotor{Name: "Stepper A renamed", DirectionPin: pins.Ptr(5), StepPin: pins.Ptr(7)}
	updated, err := svc.UpdateStepperMotor(ctx, m.ID, in)
	if err != nil {
		t.Fatalf("a rename must not need the calibration again: %v", err)
	}
	if updated.StepsPerRevolution != 400 || updated.DriverType != hardware.A4988 {
		t.Errorf("omitted fields changed: %d %q", updated.StepsPerRevolution, updated.DriverType)
	}

	in = &models.StepperMotor{Name: "Stepper A", DirectionPin: pins.Ptr(5), StepPin: pins.Ptr(7), StepsPerRevolution: -1}
	if _, err := svc.UpdateStepperMotor(ctx, m.ID, in); !faults.Is(err, faults.Validation) {
		t.Errorf("an explicit invalid value must still be rejected, got %v", err)
	}

	sw := &models.PushSwitch{Name: "Door", SwitchType: models.PushToBreak, InputPin: pins.Ptr(13)}
	if err := svc.CreatePushSwitch(ctx, sw); err != nil {
		t.Fatal(err)
	}
	updatedSwitch, err := svc.UpdatePushSwitch(ctx, sw.ID, &models.PushSwitch{Name: "Front door", InputPin: pins.Ptr(13)})
	if err != nil {
		t.Fatal(err)
	}
	if updatedSwitch.SwitchType != models.PushToBreak {
		t.Errorf("expected the stored switch type, got %q", updatedSwitch.SwitchType)
	}
}

func TestUpdateDropsToFullStepsWithoutModePins(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	m := motor("Stepper A", 5, 7)
	m.MS1Pin, m.MS2Pin, m.MS3Pin = pins.Ptr(11), pins.Ptr(12), pins.Ptr(13)
	if err := svc.CreateStepperMotor(ctx, m); err != nil {
		t.Fatal(err)
	}
	motion := m.Motion
	if err := motion.SetResolution("1/8", true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SaveMotion(ctx, m.ID, motion); err != nil {
		t.Fatal(err)
	}

	updated, err := svc.UpdateStepperMotor(ctx, m.ID, motor("Stepper A", 5, 7))
	if err != nil {
		t.Fatal(err)
	}
	if updated.Motion.Resolution != kinematics.Full {
		t.Errorf("expected Full, got %s", updated.Motion.Resolution)
	}
}

func TestConcurrentCreatesNeverShareAPin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.CreateStepperMotor(ctx, motor("Stepper", 5, 7))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !faults.Is(err, faults.Validation) {
			t.Errorf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one create to succeed, got %d", succeeded)
	}
}

func TestDeleteAndExists(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	m := motor("Stepper A", 5, 7)
	if err := svc.CreateStepperMotor(ctx, m); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.Exists(ctx, models.KindStepperMotor, m.ID); !ok {
		t.Error("expected motor to exist")
	}
	if err := svc.DeleteStepperMotor(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := svc.Exists(ctx, models.KindStepperMotor, m.ID); ok {
		t.Error("expected motor to be gone")
	}
	if err := svc.DeleteStepperMotor(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Exists(ctx, "robot_arm", 1); !faults.Is(err, faults.Command) {
		t.Errorf("expected command fault, got %v", err)
	}
}

func TestPinMapAndAudit(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	if err := svc.CreateStepperMotor(ctx, motor("Stepper A", 5, 7)); err != nil {
		t.Fatal(err)
	}
	if err := svc.CreatePushSwitch(ctx, &models.PushSwitch{Name: "Limit", SwitchType: models.PushToBreak, InputPin: pins.Ptr(11)}); err != nil {
		t.Fatal(err)
	}

	claims, err := svc.PinMap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 3 || claims[0].Pin != 5 || claims[2].Owner != "Limit" {
		t.Errorf("unexpected claims %+v", claims)
	}

	results, err := svc.Audit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s %d: %v", r.Kind, r.ID, r.Err)
		}
	}
}
