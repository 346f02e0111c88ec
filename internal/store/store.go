package store

import (
	"context"
	"errors"
	"time"

	"gpio_control_server/internal/kinematics"
	"gpio_control_server/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// Tx is the set of persistence operations the core depends on
type Tx interface {
	ListStepperMotors(ctx context.Context) ([]models.StepperMotor, error)
	GetStepperMotor(ctx context.Context, id uint) (*models.StepperMotor, error)
	SaveStepperMotor(ctx context.Context, m *models.StepperMotor) error
	DeleteStepperMotor(ctx context.Context, id uint) error
	UpdateStepperMotion(ctx context.Context, id uint, motion kinematics.Motion) error

	ListPushSwitches(ctx context.Context) ([]models.PushSwitch, error)
	GetPushSwitch(ctx context.Context, id uint) (*models.PushSwitch, error)
	SavePushSwitch(ctx context.Context, s *models.PushSwitch) error
	DeletePushSwitch(ctx context.Context, id uint) error

	ActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) ([]models.Lockout, error)
	CreateLockout(ctx context.Context, l *models.Lockout) error
	DeleteActiveLockouts(ctx context.Context, deviceType string, deviceID uint, now time.Time) (int64, error)
}

// Store adds serialized transactions on top of Tx. Work passed to
// Transaction runs with no other writer able to interleave, and is
// rolled back if fn returns an error.
type Store interface {
	Tx
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
