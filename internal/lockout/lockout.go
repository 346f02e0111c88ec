package lockout

import (
	"context"
	"math"
	"sync"
	"time"

	"gpio_control_server/config"
	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

// DefaultDuration applies when a caller does not ask for a window
const DefaultDuration = 1000 * time.Second

// Event is published whenever a lockout is taken or given back
type Event struct {
	Action     string    `json:"action"` // acquired or released
	DeviceType string    `json:"device_type"`
	DeviceID   uint      `json:"device_id"`
	Start      time.Time `json:"lockout_start,omitempty"`
	End        time.Time `json:"lockout_end,omitempty"`
}

// Sink receives lockout events
type Sink interface {
	Lockout(ev Event)
}

// ReleaseFunc frees the hardware a device holds
type ReleaseFunc func(id uint) error

// Manager hands out time-boxed exclusive use of devices. Expiry is passive: a
// lockout stops counting once its end time has passed.
type Manager struct {
	store    store.Store
	duration time.Duration
	log      *logger.Logger

	mu        sync.RWMutex
	now       func() time.Time
	sink      Sink
	releasers map[string]ReleaseFunc
}

func NewManager(s store.Store, defaultDuration time.Duration, log *logger.Logger) *Manager {
	if defaultDuration <= 0 {
		defaultDuration = DefaultDuration
	}
	return &Manager{
		store:     s,
		duration:  defaultDuration,
		log:       log.WithComponent("lockout"),
		now:       config.GetCurrentTime,
		releasers: make(map[string]ReleaseFunc),
	}
}

// SetClock replaces the time source
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Manager) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// OnRelease registers how devices of kind give back their hardware
func (m *Manager) OnRelease(kind string, fn ReleaseFunc) {
	m.mu.Lock()
	m.releasers[kind] = fn
	m.mu.Unlock()
}

func (m *Manager) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

func (m *Manager) publish(ev Event) {
	m.mu.RLock()
	sink := m.sink
	m.mu.RUnlock()
	if sink != nil {
		sink.Lockout(ev)
	}
}

// Seconds converts a requested window, rejecting values a Duration cannot hold
func Seconds(s float64) (time.Duration, error) {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0, faults.Commandf("lockout.duration", "Duration must not be negative.")
	case s > maxSeconds:
		return 0, faults.Commandf("lockout.duration", "Duration must be at most %d seconds.", int64(maxSeconds))
	}
	return time.Duration(s * float64(time.Second)), nil
}

// maxSeconds keeps s * time.Second clear of the int64 limit
const maxSeconds = float64(math.MaxInt64/int64(time.Second)) - 1

// Acquire locks the device out for duration, or the default window when duration is zero
func (m *Manager) Acquire(ctx context.Context, kind string, id uint, duration time.Duration) (*models.Lockout, error) {
	if duration < 0 {
		return nil, faults.Commandf("lockout.acquire", "Duration must not be negative.")
	}
	if duration == 0 {
		duration = m.duration
	}
	now := m.clock()
	var created *models.Lockout
	err := m.store.Transaction(ctx, func(tx store.Tx) error {
		exists, err := devices.ExistsIn(ctx, tx, kind, id)
		if err != nil {
			return err
		}
		if !exists {
			return faults.Commandf("lockout.acquire", "Cannot initialise a device that has not been saved.")
		}
		active, err := tx.ActiveLockouts(ctx, kind, id, now)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return faults.Commandf("lockout.acquire", "This device is already locked out until %s.",
				active[0].LockoutEnd.Format(time.RFC3339))
		}
		l := &models.Lockout{
			DeviceType:   kind,
			DeviceID:     id,
			LockoutStart: now,
			LockoutEnd:   now.Add(duration),
		}
		if err := tx.CreateLockout(ctx, l); err != nil {
			return err
		}
		created = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Logger.Info().Str("device_type", kind).Uint("device_id", id).
		Time("lockout_end", created.LockoutEnd).Msg("device locked out")
	m.publish(Event{Action: "acquired", DeviceType: kind, DeviceID: id, Start: created.LockoutStart, End: created.LockoutEnd})
	return created, nil
}

// Release drops the active lockouts of a device and frees its hardware
func (m *Manager) Release(ctx context.Context, kind string, id uint) (int64, error) {
	if _, err := devices.ExistsIn(ctx, m.store, kind, id); faults.Is(err, faults.Command) {
		return 0, err
	}
	n, err := m.store.DeleteActiveLockouts(ctx, kind, id, m.clock())
	if err != nil {
		return 0, err
	}

	m.mu.RLock()
	release := m.releasers[kind]
	m.mu.RUnlock()
	var releaseErr error
	if release != nil {
		releaseErr = release(id)
	}

	m.log.Logger.Info().Str("device_type", kind).Uint("device_id", id).Int64("removed", n).Msg("lockout released")
	m.publish(Event{Action: "released", DeviceType: kind, DeviceID: id})
	return n, releaseErr
}

// Active returns the active lockout of a device, or nil when it is free
func (m *Manager) Active(ctx context.Context, kind string, id uint) (*models.Lockout, error) {
	active, err := m.store.ActiveLockouts(ctx, kind, id, m.clock())
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

