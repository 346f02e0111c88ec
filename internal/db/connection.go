package db

import (
	"fmt"

	"gpio_control_server/config"
	"gpio_control_server/internal/models"
	"gpio_control_server/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize establishes database connection and runs migrations
func Initialize(cfg *config.DatabaseConfig, log *logger.Logger) error {
	log = log.WithComponent("db")
	log.Logger.Debug().Str("dsn", cfg.Redacted()).Msg("connecting to database")

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := RunMigrations(log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RunMigrations creates or updates every table the server uses
func RunMigrations(log *logger.Logger) error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{"stepper_motors", &models.StepperMotor{}},
		{"push_switches", &models.PushSwitch{}},
		{"lockouts", &models.Lockout{}},
	}
	for _, t := range tables {
		if err := DB.AutoMigrate(t.model); err != nil {
			return fmt.Errorf("%s table migration failed: %w", t.name, err)
		}
		log.Logger.Info().Str("table", t.name).Msg("table ready")
	}

	if err := addPinConstraints(DB, log); err != nil {
		return fmt.Errorf("failed to add pin constraints: %w", err)
	}
	log.Info("database migrations completed")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
