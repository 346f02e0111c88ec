package switches

import (
	"context"
	"errors"
	"sync"
	"time"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

var ErrUnknownDevice = errors.New("The specified switch does not exist.")

// State is a point-in-time reading of a switch
type State struct {
	Made    bool `json:"made"`
	Pressed bool `json:"pressed"`
}

// Manager keeps one runtime switch per configured push switch
type Manager struct {
	devices *devices.Service
	backend *hardware.Backend
	sink    Sink
	log     *logger.Logger

	mu       sync.Mutex
	switches map[uint]*Switch
}

func NewManager(svc *devices.Service, backend *hardware.Backend, sink Sink, log *logger.Logger) *Manager {
	m := &Manager{
		devices:  svc,
		backend:  backend,
		sink:     sink,
		log:      log.WithComponent("switches"),
		switches: make(map[uint]*Switch),
	}
	svc.OnChange(func(kind string, id uint) {
		if kind == models.KindPushSwitch {
			m.Release(id)
		}
	})
	return m
}

// Switch returns the runtime of switch id, building it from the stored row
func (m *Manager) Switch(ctx context.Context, id uint) (*Switch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.switches[id]; ok {
		return s, nil
	}
	cfg, err := m.devices.GetPushSwitch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownDevice
	}
	if err != nil {
		return nil, err
	}
	s := New(*cfg, m.backend, m.sink)
	m.switches[id] = s
	return s, nil
}

// State reads switch id
func (m *Manager) State(ctx context.Context, id uint) (State, error) {
	s, err := m.Switch(ctx, id)
	if err != nil {
		return State{}, err
	}
	made, err := s.IsMade()
	if err != nil {
		return State{}, err
	}
	return State{Made: made, Pressed: s.pressed(made)}, nil
}

// Wait blocks until switch id sees edge or timeout elapses
func (m *Manager) Wait(ctx context.Context, id uint, edge hardware.Edge, bounce, timeout time.Duration) (bool, error) {
	s, err := m.Switch(ctx, id)
	if err != nil {
		return false, err
	}
	return s.WaitForEdge(ctx, edge, bounce, timeout)
}

// Watch starts background edge detection on switch id; edges go to the sink
func (m *Manager) Watch(ctx context.Context, id uint, edge hardware.Edge, bounce time.Duration) error {
	s, err := m.Switch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.BeginEdgeDetection(edge, bounce, nil); err != nil {
		return err
	}
	m.log.Logger.Info().Uint("device_id", id).Str("edge", string(edge)).Msg("edge detection started")
	return nil
}

// Unwatch stops background edge detection and reports whether any edge was seen
func (m *Manager) Unwatch(ctx context.Context, id uint) (bool, error) {
	s, err := m.Switch(ctx, id)
	if err != nil {
		return false, err
	}
	s.RemoveEdgeDetection()
	return s.EdgeDetected(), nil
}

// Release kills and forgets switch id, freeing its input pin
func (m *Manager) Release(id uint) error {
	m.mu.Lock()
	s, ok := m.switches[id]
	delete(m.switches, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.Kill(); err != nil {
		m.log.Logger.Error().Err(err).Uint("device_id", id).Msg("failed to release switch")
		return err
	}
	return nil
}

// Close releases every switch
func (m *Manager) Close() error {
	m.mu.Lock()
	ids := make([]uint, 0, len(m.switches))
	for id := range m.switches {
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
