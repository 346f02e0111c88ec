package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Hardware.LockoutDefault != 1000*time.Second {
		t.Errorf("expected 1000s lockout, got %s", cfg.Hardware.LockoutDefault)
	}
	if cfg.Hardware.Backend != "simulated" {
		t.Errorf("expected simulated backend, got %s", cfg.Hardware.Backend)
	}
}

func TestGetDurationAcceptsSeconds(t *testing.T) {
	t.Setenv("LOCKOUT_DEFAULT", "30")
	if got := getDuration("LOCKOUT_DEFAULT", time.Second); got != 30*time.Second {
		t.Errorf("expected 30s, got %s", got)
	}
	t.Setenv("LOCKOUT_DEFAULT", "2m")
	if got := getDuration("LOCKOUT_DEFAULT", time.Second); got != 2*time.Minute {
		t.Errorf("expected 2m, got %s", got)
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("GPIO_BACKEND", "wiringpi")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a, http://b ,")
	got := getStringSlice("CORS_ALLOWED_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Errorf("unexpected origins %v", got)
	}
}
