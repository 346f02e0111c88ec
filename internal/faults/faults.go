package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a fault so callers can decide how to surface it
type Kind string

const (
	// Validation faults are user-correctable and always keyed by field
	Validation Kind = "validation"
	// Configuration faults mean the device lacks data the operation needs
	Configuration Kind = "configuration"
	// Command faults mean the command input itself was malformed
	Command Kind = "command"
	// Implementation faults are programmer errors in registration code
	Implementation Kind = "implementation"
)

// FieldError is a single message attached to a named field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Fault is the error type returned by the core packages
type Fault struct {
	Kind   Kind
	Op     string
	Msg    string
	Fields []FieldError
	Err    error
}

func (f *Fault) Error() string {
	if f.Kind == Validation && len(f.Fields) > 0 {
		parts := make([]string, 0, len(f.Fields))
		for _, fe := range f.Fields {
			parts = append(parts, fe.Field+": "+fe.Message)
		}
		return strings.Join(parts, "; ")
	}
	if f.Msg != "" {
		return f.Msg
	}
	if f.Err != nil {
		return f.Err.Error()
	}
	return string(f.Kind)
}

func (f *Fault) Unwrap() error { return f.Err }

// FieldMap groups field messages by field name, preserving message order
func (f *Fault) FieldMap() map[string][]string {
	out := make(map[string][]string, len(f.Fields))
	for _, fe := range f.Fields {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

// Has reports whether the fault carries a message for field
func (f *Fault) Has(field string) bool {
	for _, fe := range f.Fields {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// NewValidation builds a validation fault. It returns nil when fields is empty
// so collectors can return its result directly.
func NewValidation(op string, fields ...FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &Fault{Kind: Validation, Op: op, Fields: fields}
}

// Configurationf reports missing calibration or an unusable driver setup
func Configurationf(op, format string, args ...any) error {
	return &Fault{Kind: Configuration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Commandf reports malformed command input from an operator
func Commandf(op, format string, args ...any) error {
	return &Fault{Kind: Command, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Implementationf reports a programming error, such as a malformed variant registration
func Implementationf(op, format string, args ...any) error {
	return &Fault{Kind: Implementation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// As extracts the Fault from err's chain
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Is reports whether err carries a fault of the given kind
func Is(err error, kind Kind) bool {
	f, ok := As(err)
	return ok && f.Kind == kind
}

// Collector accumulates field errors across independent checks
type Collector struct {
	fields []FieldError
}

func (c *Collector) Add(field, format string, args ...any) {
	c.fields = append(c.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge appends the field errors of a validation fault; other errors are returned as-is
func (c *Collector) Merge(err error) error {
	if err == nil {
		return nil
	}
	f, ok := As(err)
	if !ok || f.Kind != Validation {
		return err
	}
	c.fields = append(c.fields, f.Fields...)
	return nil
}

func (c *Collector) Len() int { return len(c.fields) }

func (c *Collector) Err(op string) error {
	return NewValidation(op, c.fields...)
}
