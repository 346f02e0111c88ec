package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
)

// MemoryStore keeps everything in process memory. It backs the test suites
// and DB_DRIVER=memory for bench setups without Postgres. Every write takes
// txMu, so a rollback only ever undoes the failed transaction's own writes.
type MemoryStore struct {
	txMu sync.Mutex
	*memoryData
}

// memoryData is the unguarded Tx handed to Transaction callbacks
type memoryData struct {
	mu       sync.RWMutex
	nextID   map[string]uint
	motors   map[uint]models.StepperMotor
	switches map[uint]models.PushSwitch
	lockouts map[uint]models.Lockout
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{memoryData: &memoryData{
		nextID:   map[string]uint{},
		motors:   map[uint]models.StepperMotor{},
		switches: map[uint]models.PushSwitch{},
		lockouts: map[uint]models.Lockout{},
	}}
}

type memorySnapshot struct {
	nextID   map[string]uint
	motors   map[uint]models.StepperMotor
	switches map[uint]models.PushSwitch
	lockouts map[uint]models.Lockout
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (d *memoryData) snapshot() memorySnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return memorySnapshot{copyMap(d.nextID), copyMap(d.motors), copyMap(d.switches), copyMap(d.lockouts)}
}

func (d *memoryData) restore(snap memorySnapshot) {
	d.mu.Lock()
	d.nextID, d.motors, d.switches, d.lockouts = snap.nextID, snap.motors, snap.switches, snap.lockouts
	d.mu.Unlock()
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.snapshot()
	if err := fn(s.memoryData); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Writes outside Transaction queue behind any open transaction

func (s *MemoryStore) SaveStepperMotor(ctx context.Context, m *models.StepperMotor) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.SaveStepperMotor(ctx, m)
}

func (s *MemoryStore) DeleteStepperMotor(ctx context.Context, id uint) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.DeleteStepperMotor(ctx, id)
}

func (s *MemoryStore) UpdateStepperMotion(ctx context.Context, id uint, motion kinematics.Motion) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.UpdateStepperMotion(ctx, id, motion)
}

func (s *MemoryStore) SavePushSwitch(ctx context.Context, sw *models.PushSwitch) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.SavePushSwitch(ctx, sw)
}

func (s *MemoryStore) DeletePushSwitch(ctx context.Context, id uint) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.DeletePushSwitch(ctx, id)
}

func (s *MemoryStore) CreateLockout(ctx context.Context, l *models.Lockout) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.CreateLockout(ctx, l)
}

func (s *MemoryStore) DeleteActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) (int64, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.memoryData.DeleteActiveLockouts(ctx, deviceType, deviceID, now)
}

func (d *memoryData) allocate(table string) uint {
	d.nextID[table]++
	return d.nextID[table]
}

func sortedIDs[V any](m map[uint]V) []uint {
	ids := make([]uint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (d *memoryData) ListStepperMotors(ctx context.Context) ([]models.StepperMotor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.StepperMotor, 0, len(d.motors))
	for _, id := range sortedIDs(d.motors) {
		out = append(out, d.motors[id])
	}
	return out, nil
}

func (d *memoryData) GetStepperMotor(ctx context.Context, id uint) (*models.StepperMotor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.motors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

// SaveStepperMotor runs the same hook gorm runs before writing
func (d *memoryData) SaveStepperMotor(ctx context.Context, m *models.StepperMotor) error {
	if err := m.BeforeSave(nil); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if m.ID == 0 {
		m.ID = d.allocate("stepper_motors")
		m.CreatedAt = now
	} else if _, ok := d.motors[m.ID]; !ok {
		return ErrNotFound
	}
	m.UpdatedAt = now
	d.motors[m.ID] = *m
	return nil
}

func (d *memoryData) DeleteStepperMotor(ctx context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.motors[id]; !ok {
		return ErrNotFound
	}
	delete(d.motors, id)
	return nil
}

func (d *memoryData) UpdateStepperMotion(ctx context.Context, id uint, motion kinematics.Motion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.motors[id]
	if !ok {
		return ErrNotFound
	}
	m.Motion = motion
	m.UpdatedAt = time.Now()
	d.motors[id] = m
	return nil
}

func (d *memoryData) ListPushSwitches(ctx context.Context) ([]models.PushSwitch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.PushSwitch, 0, len(d.switches))
	for _, id := range sortedIDs(d.switches) {
		out = append(out, d.switches[id])
	}
	return out, nil
}

func (d *memoryData) GetPushSwitch(ctx context.Context, id uint) (*models.PushSwitch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sw, ok := d.switches[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sw, nil
}

func (d *memoryData) SavePushSwitch(ctx context.Context, sw *models.PushSwitch) error {
	if err := sw.BeforeSave(nil); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if sw.ID == 0 {
		sw.ID = d.allocate("push_switches")
		sw.CreatedAt = now
	} else if _, ok := d.switches[sw.ID]; !ok {
		return ErrNotFound
	}
	sw.UpdatedAt = now
	d.switches[sw.ID] = *sw
	return nil
}

func (d *memoryData) DeletePushSwitch(ctx context.Context, id uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.switches[id]; !ok {
		return ErrNotFound
	}
	delete(d.switches, id)
	return nil
}

func (d *memoryData) matchActive(l models.Lockout, deviceType string, deviceID uint, now time.Time) bool {
	return l.DeviceType == deviceType && l.DeviceID == deviceID && l.ActiveAt(now)
}

func (d *memoryData) ActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) ([]models.Lockout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []models.Lockout
	for _, id := range sortedIDs(d.lockouts) {
		if l := d.lockouts[id]; d.matchActive(l, deviceType, deviceID, now) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LockoutEnd.After(out[j].LockoutEnd) })
	return out, nil
}

func (d *memoryData) CreateLockout(ctx context.Context, l *models.Lockout) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	l.ID = d.allocate("lockouts")
	d.lockouts[l.ID] = *l
	return nil
}

func (d *memoryData) DeleteActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, l := range d.lockouts {
		if d.matchActive(l, deviceType, deviceID, now) {
			delete(d.lockouts, id)
			n++
		}
	}
	return n, nil
}
