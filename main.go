package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpio_control_server/config"
	"gpio_control_server/internal/db"
	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/http"
	"gpio_control_server/internal/lockout"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/motion"
	"gpio_control_server/internal/mqttsink"
	"gpio_control_server/internal/store"
	"gpio_control_server/internal/switches"
	"gpio_control_server/pkg/logger"
)

// eventSinks fans every device event out to the hub and, when enabled, MQTT
type eventSinks struct {
	hub  *http.WebSocketHub
	mqtt *mqttsink.Publisher
}

func (s eventSinks) Movement(ev motion.Event) {
	s.hub.Movement(ev)
	if s.mqtt != nil {
		s.mqtt.Movement(ev)
	}
}

func (s eventSinks) SwitchEdge(ev switches.Event) {
	s.hub.SwitchEdge(ev)
	if s.mqtt != nil {
		s.mqtt.SwitchEdge(ev)
	}
}

func (s eventSinks) Lockout(ev lockout.Event) {
	s.hub.Lockout(ev)
	if s.mqtt != nil {
		s.mqtt.Lockout(ev)
	}
}

func openStore(cfg *config.AppConfig, log *logger.Logger) (store.Store, func() error, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using the in-memory store, configuration is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}
	if err := db.Initialize(cfg.Database, log); err != nil {
		return nil, nil, err
	}
	ping := func() error {
		sqlDB, err := db.GetDB().DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	}
	return store.NewGormStore(db.GetDB()), ping, nil
}

func openBackend(cfg *config.AppConfig, log *logger.Logger) (*hardware.Backend, error) {
	if cfg.Hardware.Backend == "periph" {
		return hardware.NewPeriphBackend()
	}
	log.Warn("Using the simulated GPIO backend, no pins will be driven")
	b, _, err := hardware.NewSimulatedBackend()
	return b, err
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	log := logger.NewLogger(cfg.Logging)
	log.Logger.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("gpio_backend", cfg.Hardware.Backend).
		Str("timezone", config.GetTimezoneString()).
		Msg("GPIO control server starting")

	st, ping, err := openStore(cfg, log)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer st.Close()

	backend, err := openBackend(cfg, log)
	if err != nil {
		return fmt.Errorf("GPIO initialization failed: %w", err)
	}

	sinks := eventSinks{hub: http.NewWebSocketHub(log)}
	go sinks.hub.Run()
	defer sinks.hub.Stop()

	if cfg.MQTT.Enabled {
		sinks.mqtt = mqttsink.NewPublisher(cfg.MQTT, log)
		if err := sinks.mqtt.Start(); err != nil {
			return fmt.Errorf("MQTT connection failed: %w", err)
		}
		defer sinks.mqtt.Stop()
	}

	catalog, err := devices.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("device catalog: %w", err)
	}
	svc := devices.NewService(st, catalog, log)
	motionMgr := motion.NewManager(svc, backend, motion.Sinks{motion.NewLogSink(log), sinks}, log)
	defer motionMgr.Close()
	switchMgr := switches.NewManager(svc, backend, sinks, log)
	defer switchMgr.Close()

	lockouts := lockout.NewManager(st, cfg.Hardware.LockoutDefault, log)
	lockouts.SetSink(sinks)
	lockouts.OnRelease(models.KindStepperMotor, motionMgr.Release)
	lockouts.OnRelease(models.KindPushSwitch, switchMgr.Release)

	server := http.NewServer(cfg.Server, cfg.Auth, http.Deps{
		Devices:  svc,
		Motion:   motionMgr,
		Switches: switchMgr,
		Lockouts: lockouts,
		Backend:  backend,
		Hub:      sinks.hub,
		Ping:     ping,
		Log:      log,
	})

	errorChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errorChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errorChan:
		return err
	case sig := <-quit:
		log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
