package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"

	"gorm.io/gorm"
)

// lockDevices blocks concurrent writers to the device and lockout tables
// while still allowing plain reads
const lockDevices = "LOCK TABLE stepper_motors, push_switches, lockouts IN SHARE ROW EXCLUSIVE MODE"

// GormStore persists devices through gorm
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(lockDevices).Error; err != nil {
				return fmt.Errorf("lock device tables: %w", err)
			}
		}
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListStepperMotors(ctx context.Context) ([]models.StepperMotor, error) {
	var motors []models.StepperMotor
	if err := s.db.WithContext(ctx).Order("id").Find(&motors).Error; err != nil {
		return nil, fmt.Errorf("list stepper motors: %w", err)
	}
	return motors, nil
}

func (s *GormStore) GetStepperMotor(ctx context.Context, id uint) (*models.StepperMotor, error) {
	var m models.StepperMotor
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	m.Motion.Normalize()
	return &m, nil
}

func (s *GormStore) SaveStepperMotor(ctx context.Context, m *models.StepperMotor) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *GormStore) DeleteStepperMotor(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.StepperMotor{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStepperMotion writes only the motion columns. Pins are untouched so
// the save hooks are skipped.
func (s *GormStore) UpdateStepperMotion(ctx context.Context, id uint, motion kinematics.Motion) error {
	res := s.db.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).
		Model(&models.StepperMotor{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"motion_direction":  motion.Direction,
			"motion_resolution": motion.Resolution,
			"motion_step_delay": motion.StepDelay,
			"motion_init_delay": motion.InitDelay,
			"motion_verbose":    motion.Verbose,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListPushSwitches(ctx context.Context) ([]models.PushSwitch, error) {
	var switches []models.PushSwitch
	if err := s.db.WithContext(ctx).Order("id").Find(&switches).Error; err != nil {
		return nil, fmt.Errorf("list push switches: %w", err)
	}
	return switches, nil
}

func (s *GormStore) GetPushSwitch(ctx context.Context, id uint) (*models.PushSwitch, error) {
	var sw models.PushSwitch
	if err := s.db.WithContext(ctx).First(&sw, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &sw, nil
}

func (s *GormStore) SavePushSwitch(ctx context.Context, sw *models.PushSwitch) error {
	return s.db.WithContext(ctx).Save(sw).Error
}

func (s *GormStore) DeletePushSwitch(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.PushSwitch{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) activeLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("device_type = ? AND device_id = ? AND lockout_end >= ? AND manual_return = ?", deviceType, deviceID, now, false)
}

func (s *GormStore) ActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) ([]models.Lockout, error) {
	var lockouts []models.Lockout
	if err := s.activeLockouts(ctx, deviceType, deviceID, now).Order("lockout_end DESC").Find(&lockouts).Error; err != nil {
		return nil, fmt.Errorf("query lockouts: %w", err)
	}
	return lockouts, nil
}

func (s *GormStore) CreateLockout(ctx context.Context, l *models.Lockout) error {
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *GormStore) DeleteActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) (int64, error) {
	res := s.activeLockouts(ctx, deviceType, deviceID, now).Delete(&models.Lockout{})
	return res.RowsAffected, res.Error
}
