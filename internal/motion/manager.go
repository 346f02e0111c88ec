package motion

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

// ErrUnknownDevice is returned for a motor id with no persisted row
var ErrUnknownDevice = errors.New("The specified motor does not exist.")

// Manager keeps one controller per stepper motor
type Manager struct {
	devices *devices.Service
	backend *hardware.Backend
	sink    Sink
	log     *logger.Logger

	mu          sync.Mutex
	controllers map[uint]*Controller
}

// NewManager wires the manager to device changes so edited or deleted motors
// are released and rebuilt from their new configuration.
func NewManager(svc *devices.Service, backend *hardware.Backend, sink Sink, log *logger.Logger) *Manager {
	m := &Manager{
		devices:     svc,
		backend:     backend,
		sink:        sink,
		log:         log.WithComponent("motion"),
		controllers: make(map[uint]*Controller),
	}
	svc.OnChange(func(kind string, id uint) {
		if kind == models.KindStepperMotor {
			m.Release(id)
		}
	})
	return m
}

// Controller returns the controller of motor id, creating it from the stored row
func (m *Manager) Controller(ctx context.Context, id uint) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[id]; ok {
		return c, nil
	}
	motor, err := m.devices.GetStepperMotor(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownDevice
	}
	if err != nil {
		return nil, err
	}
	c := NewController(*motor, m.backend, m.sink)
	m.controllers[id] = c
	return c, nil
}

// Move runs a movement command on motor id
func (m *Manager) Move(ctx context.Context, id uint, movementType string, amount json.RawMessage) (string, error) {
	c, err := m.Controller(ctx, id)
	if err != nil {
		return "", err
	}
	line, err := c.Move(ctx, movementType, amount)
	if err != nil {
		m.log.Logger.Warn().Err(err).Uint("device_id", id).Str("movement_type", movementType).Msg("movement rejected")
		return "", err
	}
	return line, nil
}

// SetMotionParameter changes one attribute of motor id and persists the new motion state
func (m *Manager) SetMotionParameter(ctx context.Context, id uint, name string, value json.RawMessage) (string, error) {
	c, err := m.Controller(ctx, id)
	if err != nil {
		return "", err
	}
	prev := c.Motion()
	shown, err := c.SetMotionParameter(name, value)
	if err != nil {
		return "", err
	}
	if err := m.devices.SaveMotion(ctx, id, c.Motion()); err != nil {
		c.restoreMotion(prev)
		return "", err
	}
	m.log.Logger.Info().Uint("device_id", id).Str("property", name).Str("value", shown).Msg("motion parameter set")
	return shown, nil
}

// Release closes and forgets the controller of motor id, freeing its pins
func (m *Manager) Release(id uint) error {
	m.mu.Lock()
	c, ok := m.controllers[id]
	delete(m.controllers, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		m.log.Logger.Error().Err(err).Uint("device_id", id).Msg("failed to release stepper driver")
		return err
	}
	return nil
}

// Close releases every bound driver
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.controllers))
	for id := range m.controllers {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	var errs []error
	for _, id := range ids {
		if err := m.Release(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
