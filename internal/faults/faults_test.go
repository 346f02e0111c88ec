package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewValidationEmptyIsNil(t *testing.T) {
	if err := NewValidation("op"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCollectorGathersAllFields(t *testing.T) {
	var c Collector
	c.Add("step_pin", "first")
	c.Add("ms1_pin", "second %d", 2)
	if err := c.Merge(NewValidation("inner", FieldError{Field: "name", Message: "third"})); err != nil {
		t.Fatalf("merge returned %v", err)
	}

	err := c.Err("save")
	f, ok := As(err)
	if !ok {
		t.Fatalf("expected a fault, got %T", err)
	}
	if f.Kind != Validation {
		t.Errorf("expected validation kind, got %s", f.Kind)
	}
	if len(f.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %d", len(f.Fields))
	}
	if got := f.FieldMap()["ms1_pin"][0]; got != "second 2" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestCollectorMergePassesThroughOtherErrors(t *testing.T) {
	var c Collector
	boom := errors.New("boom")
	if err := c.Merge(boom); err != boom {
		t.Errorf("expected passthrough, got %v", err)
	}
	if err := c.Merge(Commandf("op", "bad")); err == nil {
		t.Error("expected command fault to pass through")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", Configurationf("move", "You have not designated a mm/rev for this motor."))
	if !Is(err, Configuration) {
		t.Error("expected configuration fault through wrap")
	}
	if Is(err, Command) {
		t.Error("did not expect command fault")
	}
	f, _ := As(err)
	if f.Error() != "You have not designated a mm/rev for this motor." {
		t.Errorf("unexpected message %q", f.Error())
	}
}
