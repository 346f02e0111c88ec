package devices

import (
	"context"
	"errors"
	"sync"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

// ChangeFunc is told when a device's pins may have changed or it was removed
type ChangeFunc func(kind string, id uint)

// Service is the only writer of device configuration. Every save runs the
// field rules and the pin validation inside one store transaction.
type Service struct {
	store   store.Store
	catalog *Catalog
	log     *logger.Logger

	mu       sync.RWMutex
	onChange []ChangeFunc
}

func NewService(s store.Store, catalog *Catalog, log *logger.Logger) *Service {
	return &Service{store: s, catalog: catalog, log: log.WithComponent("devices")}
}

// OnChange registers fn to run after a device is updated or deleted
func (s *Service) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Service) changed(kind string, id uint) {
	s.mu.RLock()
	fns := append([]ChangeFunc(nil), s.onChange...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(kind, id)
	}
}

type cleanable interface {
	pins.Bearer
	Clean() error
}

// check collects the field rules and the pin conflicts of d
func (s *Service) check(ctx context.Context, tx store.Tx, d cleanable) error {
	var c faults.Collector
	if err := c.Merge(d.Clean()); err != nil {
		return err
	}
	existing, err := s.catalog.Bearers(ctx, tx)
	if err != nil {
		return err
	}
	if err := c.Merge(pins.Validate(d, existing)); err != nil {
		return err
	}
	return c.Err(d.Kind() + ".save")
}

func (s *Service) ListStepperMotors(ctx context.Context) ([]models.StepperMotor, error) {
	return s.store.ListStepperMotors(ctx)
}

func (s *Service) GetStepperMotor(ctx context.Context, id uint) (*models.StepperMotor, error) {
	return s.store.GetStepperMotor(ctx, id)
}

func (s *Service) CreateStepperMotor(ctx context.Context, m *models.StepperMotor) error {
	m.ID = 0
	m.ApplyDefaults()
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		if err := s.check(ctx, tx, m); err != nil {
			return err
		}
		return tx.SaveStepperMotor(ctx, m)
	})
	if err != nil {
		return err
	}
	s.log.Logger.Info().Uint("device_id", m.ID).Str("name", m.Name).Msg("stepper motor created")
	return nil
}

// UpdateStepperMotor replaces the configuration of motor id. Pins left out are
// cleared; a missing driver type or steps per revolution keeps the stored
// value. Motion state is kept, except that losing the microstep pins drops
// back to full steps.
func (s *Service) UpdateStepperMotor(ctx context.Context, id uint, in *models.StepperMotor) (*models.StepperMotor, error) {
	var saved *models.StepperMotor
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		current, err := tx.GetStepperMotor(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Description = in.Description
		if in.DriverType != "" {
			current.DriverType = in.DriverType
		}
		current.DirectionPin = in.DirectionPin
		current.StepPin = in.StepPin
		current.MS1Pin, current.MS2Pin, current.MS3Pin = in.MS1Pin, in.MS2Pin, in.MS3Pin
		if in.StepsPerRevolution != 0 {
			current.StepsPerRevolution = in.StepsPerRevolution
		}
		current.MMPerRevolution = in.MMPerRevolution
		if !current.HasMicrostepPins() {
			current.Motion.Resolution = kinematics.Full
		}
		if err := s.check(ctx, tx, current); err != nil {
			return err
		}
		if err := tx.SaveStepperMotor(ctx, current); err != nil {
			return err
		}
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(models.KindStepperMotor, id)
	s.log.Logger.Info().Uint("device_id", id).Msg("stepper motor updated")
	return saved, nil
}

func (s *Service) DeleteStepperMotor(ctx context.Context, id uint) error {
	if err := s.store.DeleteStepperMotor(ctx, id); err != nil {
		return err
	}
	s.changed(models.KindStepperMotor, id)
	s.log.Logger.Info().Uint("device_id", id).Msg("stepper motor deleted")
	return nil
}

// SaveMotion persists motion state only; pins are untouched so no validation is needed
func (s *Service) SaveMotion(ctx context.Context, id uint, motion kinematics.Motion) error {
	return s.store.UpdateStepperMotion(ctx, id, motion)
}

func (s *Service) ListPushSwitches(ctx context.Context) ([]models.PushSwitch, error) {
	return s.store.ListPushSwitches(ctx)
}

func (s *Service) GetPushSwitch(ctx context.Context, id uint) (*models.PushSwitch, error) {
	return s.store.GetPushSwitch(ctx, id)
}

func (s *Service) CreatePushSwitch(ctx context.Context, sw *models.PushSwitch) error {
	sw.ID = 0
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		if err := s.check(ctx, tx, sw); err != nil {
			return err
		}
		return tx.SavePushSwitch(ctx, sw)
	})
	if err != nil {
		return err
	}
	s.log.Logger.Info().Uint("device_id", sw.ID).Str("name", sw.Name).Msg("push switch created")
	return nil
}

// UpdatePushSwitch replaces the configuration of switch id; a missing switch
// type keeps the stored one
func (s *Service) UpdatePushSwitch(ctx context.Context, id uint, in *models.PushSwitch) (*models.PushSwitch, error) {
	var saved *models.PushSwitch
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		current, err := tx.GetPushSwitch(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Description = in.Description
		if in.SwitchType != "" {
			current.SwitchType = in.SwitchType
		}
		current.InputPin = in.InputPin
		if err := s.check(ctx, tx, current); err != nil {
			return err
		}
		if err := tx.SavePushSwitch(ctx, current); err != nil {
			return err
		}
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(models.KindPushSwitch, id)
	return saved, nil
}

func (s *Service) DeletePushSwitch(ctx context.Context, id uint) error {
	if err := s.store.DeletePushSwitch(ctx, id); err != nil {
		return err
	}
	s.changed(models.KindPushSwitch, id)
	s.log.Logger.Info().Uint("device_id", id).Msg("push switch deleted")
	return nil
}

// Exists reports whether a device of the given kind is persisted
func (s *Service) Exists(ctx context.Context, kind string, id uint) (bool, error) {
	return ExistsIn(ctx, s.store, kind, id)
}

// ExistsIn is Exists against an open transaction
func ExistsIn(ctx context.Context, tx store.Tx, kind string, id uint) (bool, error) {
	var err error
	switch kind {
	case models.KindStepperMotor:
		_, err = tx.GetStepperMotor(ctx, id)
	case models.KindPushSwitch:
		_, err = tx.GetPushSwitch(ctx, id)
	default:
		return false, faults.Commandf("devices.exists", "Unknown device type %s.", kind)
	}
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PinMap lists every persisted pin claim
func (s *Service) PinMap(ctx context.Context) ([]pins.Claim, error) {
	all, err := s.catalog.Bearers(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return pins.NewRegistry(all).Claims(), nil
}

// AuditResult is the outcome of re-validating one persisted device
type AuditResult struct {
	Kind string
	ID   uint
	Name string
	Err  error
}

// Audit re-runs the validation of every persisted device against all others
func (s *Service) Audit(ctx context.Context) ([]AuditResult, error) {
	var results []AuditResult
	err := s.store.Transaction(ctx, func(tx store.Tx) error {
		all, err := s.catalog.Bearers(ctx, tx)
		if err != nil {
			return err
		}
		for _, d := range all {
			r := AuditResult{Kind: d.Kind(), ID: d.Identity(), Name: d.OwnerName()}
			if c, ok := d.(cleanable); ok {
				r.Err = s.check(ctx, tx, c)
			} else {
				r.Err = pins.Validate(d, all)
			}
			results = append(results, r)
		}
		return nil
	})
	return results, err
}
