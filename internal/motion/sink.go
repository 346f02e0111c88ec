package motion

import (
	"time"

	"gpio_control_server/pkg/logger"
)

// Event describes one executed movement command
type Event struct {
	DeviceID     uint      `json:"device_id"`
	Device       string    `json:"device"`
	MovementType string    `json:"movement_type"`
	Steps        int       `json:"steps"`
	Line         string    `json:"log"`
	Timestamp    time.Time `json:"timestamp"`
}

// Sink receives the log line of every movement command
type Sink interface {
	Movement(ev Event)
}

// Sinks fans an event out to several sinks
type Sinks []Sink

func (s Sinks) Movement(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Movement(ev)
		}
	}
}

// LogSink writes movement lines to the structured log
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.WithComponent("motion")}
}

func (s *LogSink) Movement(ev Event) {
	s.log.Logger.Info().
		Uint("device_id", ev.DeviceID).
		Str("movement_type", ev.MovementType).
		Int("steps", ev.Steps).
		Msg(ev.Line)
}
