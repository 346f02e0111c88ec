package devices

import (
	"context"
	"regexp"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/internal/store"
)

var variantID = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*$`)

// Variant declares a pin-using device type and how to load its rows
type Variant struct {
	ID   string
	Load func(ctx context.Context, tx store.Tx) ([]pins.Bearer, error)
}

// Catalog is the set of variants checked during cross-device validation
type Catalog struct {
	variants []Variant
}

// NewCatalog checks every declaration up front; a bad one is a programming error
func NewCatalog(variants ...Variant) (*Catalog, error) {
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if !variantID.MatchString(v.ID) {
			return nil, faults.Implementationf("devices.catalog",
				"The format for defining models is '<app_name>.<model_name>', you defined %s.", v.ID)
		}
		if v.Load == nil {
			return nil, faults.Implementationf("devices.catalog", "Variant %s has no loader.", v.ID)
		}
		if seen[v.ID] {
			return nil, faults.Implementationf("devices.catalog", "Variant %s is declared twice.", v.ID)
		}
		seen[v.ID] = true
	}
	return &Catalog{variants: variants}, nil
}

func loadStepperMotors(ctx context.Context, tx store.Tx) ([]pins.Bearer, error) {
	motors, err := tx.ListStepperMotors(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pins.Bearer, len(motors))
	for i := range motors {
		out[i] = &motors[i]
	}
	return out, nil
}

func loadPushSwitches(ctx context.Context, tx store.Tx) ([]pins.Bearer, error) {
	switches, err := tx.ListPushSwitches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]pins.Bearer, len(switches))
	for i := range switches {
		out[i] = &switches[i]
	}
	return out, nil
}

// DefaultCatalog holds every device variant this server knows
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(
		Variant{ID: "motor_controller.stepper_motor", Load: loadStepperMotors},
		Variant{ID: "switch_controller.push_switch", Load: loadPushSwitches},
	)
}

// MustDefaultCatalog is DefaultCatalog for tests and fixtures; it panics on a
// malformed variant
func MustDefaultCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// IDs lists the declared variant identifiers
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.variants))
	for i, v := range c.variants {
		out[i] = v.ID
	}
	return out
}

// Bearers loads every persisted device of every declared variant
func (c *Catalog) Bearers(ctx context.Context, tx store.Tx) ([]pins.Bearer, error) {
	var all []pins.Bearer
	for _, v := range c.variants {
		found, err := v.Load(ctx, tx)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	return all, nil
}

var _ pins.Bearer = (*models.StepperMotor)(nil)
var _ pins.Bearer = (*models.PushSwitch)(nil)
