package pins

import (
	"strings"
	"testing"

	"gpio_control_server/internal/faults"
)

type fakeDevice struct {
	kind  string
	id    uint
	name  string
	slots []Slot
}

func (f fakeDevice) Kind() string      { return f.kind }
func (f fakeDevice) Identity() uint    { return f.id }
func (f fakeDevice) OwnerName() string { return f.name }
func (f fakeDevice) PinSlots() []Slot  { return f.slots }

func motor(id uint, name string, dir, step *PinID) fakeDevice {
	return fakeDevice{
		kind: "stepper_motor",
		id:   id,
		name: name,
		slots: []Slot{
			{Name: "direction_pin", Pin: dir},
			{Name: "step_pin", Pin: step},
			{Name: "ms1_pin"},
			{Name: "ms2_pin"},
			{Name: "ms3_pin"},
		},
	}
}

func TestAvailableWhitelist(t *testing.T) {
	avail := Available()
	if len(avail) != 26 {
		t.Fatalf("expected 26 usable pins, got %d", len(avail))
	}
	if avail[0] != 3 || avail[len(avail)-1] != 40 {
		t.Errorf("unexpected bounds %v..%v", avail[0], avail[len(avail)-1])
	}
	for _, p := range []PinID{1, 2, 4, 6, 9, 27, 28, 39, 41} {
		if p.Valid() {
			t.Errorf("pin %d should not be usable", p)
		}
	}
	if PinID(7).GPIOName() != "GPIO4" {
		t.Errorf("expected GPIO4, got %s", PinID(7).GPIOName())
	}
}

func TestValidateIntraDeviceNamesBothSlots(t *testing.T) {
	candidate := motor(0, "Stepper A", Ptr(5), Ptr(5))
	err := Validate(candidate, nil)
	f, ok := faults.As(err)
	if !ok || f.Kind != faults.Validation {
		t.Fatalf("expected validation fault, got %v", err)
	}
	fields := f.FieldMap()
	if !strings.Contains(fields["direction_pin"][0], "step_pin") {
		t.Errorf("direction_pin message should name step_pin: %q", fields["direction_pin"][0])
	}
	if !strings.Contains(fields["step_pin"][0], "direction_pin") {
		t.Errorf("step_pin message should name direction_pin: %q", fields["step_pin"][0])
	}
	if !strings.Contains(fields["step_pin"][0], "GPIO pins must be unique") {
		t.Errorf("unexpected message %q", fields["step_pin"][0])
	}
}

func TestValidateUnsetSlotsNeverConflict(t *testing.T) {
	candidate := motor(0, "Stepper A", Ptr(5), nil)
	existing := []Bearer{motor(1, "Stepper B", nil, Ptr(7))}
	if err := Validate(candidate, existing); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateCrossDeviceNamesHolder(t *testing.T) {
	existing := []Bearer{
		motor(1, "Stepper A", Ptr(5), Ptr(7)),
		fakeDevice{kind: "push_switch", id: 1, name: "Limit", slots: []Slot{{Name: "input_pin", Pin: Ptr(11)}}},
	}
	candidate := motor(0, "Stepper B", Ptr(11), Ptr(7))

	f, ok := faults.As(Validate(candidate, existing))
	if !ok {
		t.Fatal("expected a fault")
	}
	fields := f.FieldMap()
	if got := fields["direction_pin"]; len(got) != 1 || got[0] != "This GPIO pin is already in use on Limit, please select another." {
		t.Errorf("unexpected direction_pin errors %v", got)
	}
	if got := fields["step_pin"]; len(got) != 1 || !strings.Contains(got[0], "Stepper A") {
		t.Errorf("unexpected step_pin errors %v", got)
	}
}

func TestValidateExcludesOwnRecordOnly(t *testing.T) {
	self := motor(1, "Stepper A", Ptr(5), Ptr(7))
	existing := []Bearer{
		self,
		// same id but another variant is a different device
		fakeDevice{kind: "push_switch", id: 1, name: "Limit", slots: []Slot{{Name: "input_pin", Pin: Ptr(7)}}},
	}

	f, ok := faults.As(Validate(self, existing))
	if !ok {
		t.Fatal("expected conflict with the switch")
	}
	if f.Has("direction_pin") {
		t.Error("own record must not conflict with itself")
	}
	if !f.Has("step_pin") {
		t.Error("expected step_pin conflict")
	}
}

func TestValidateRejectsPinsOffTheWhitelist(t *testing.T) {
	f, ok := faults.As(Validate(motor(0, "Stepper A", Ptr(1), Ptr(7)), nil))
	if !ok || !f.Has("direction_pin") {
		t.Fatalf("expected direction_pin error, got %v", f)
	}
}

func TestRegistryClaimRelease(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Claim(Claim{Pin: 2}); err != ErrUnknownPin {
		t.Errorf("expected ErrUnknownPin, got %v", err)
	}
	if err := r.Claim(Claim{Pin: 7, Kind: "stepper_motor", ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := r.Claim(Claim{Pin: 7, Kind: "push_switch", ID: 2}); err != ErrPinInUse {
		t.Errorf("expected ErrPinInUse, got %v", err)
	}
	r.Release("stepper_motor", 1)
	if _, held := r.Holder(7); held {
		t.Error("pin should be free after release")
	}
}
