package switches

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/models"
)

// pollInterval bounds how long a blocking wait goes without checking for cancellation
const pollInterval = 100 * time.Millisecond

// Event is published for every edge seen by a running watcher
type Event struct {
	DeviceID  uint      `json:"device_id"`
	Device    string    `json:"device"`
	Edge      string    `json:"edge"`
	Made      bool      `json:"made"`
	Pressed   bool      `json:"pressed"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives switch edge events
type Sink interface {
	SwitchEdge(ev Event)
}

// ParseEdge checks an edge token from a request
func ParseEdge(token string) (hardware.Edge, error) {
	e := hardware.Edge(token)
	if !e.Valid() {
		return "", faults.Commandf("switches.edge", "Edge must be one of %s, %s or %s.",
			hardware.RisingEdge, hardware.FallingEdge, hardware.BothEdges)
	}
	return e, nil
}

// Switch is the runtime side of a configured push switch. A blocking wait or
// a watcher holds the pin through stop/done; mu is never held while waiting.
type Switch struct {
	cfg     models.PushSwitch
	backend *hardware.Backend
	sink    Sink

	mu       sync.Mutex
	pin      hardware.InputPin
	stop     chan struct{}
	done     chan struct{}
	waiting  bool
	detected atomic.Bool
}

func New(cfg models.PushSwitch, backend *hardware.Backend, sink Sink) *Switch {
	return &Switch{cfg: cfg, backend: backend, sink: sink}
}

// Initialise claims the input pin with a pull-down
func (s *Switch) Initialise() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialise()
}

func (s *Switch) initialise() error {
	if s.pin != nil {
		return nil
	}
	if s.cfg.InputPin == nil {
		return faults.Configurationf("switches.initialise", "This switch has no input pin set.")
	}
	pin, err := s.backend.Input(s.cfg.Name, *s.cfg.InputPin)
	if err != nil {
		return err
	}
	if err := pin.Configure(hardware.BothEdges, 0); err != nil {
		pin.Release()
		return fmt.Errorf("configure input %s: %w", *s.cfg.InputPin, err)
	}
	s.pin = pin
	return nil
}

// IsMade reports whether the contacts are closed, i.e. the input reads high
func (s *Switch) IsMade() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initialise(); err != nil {
		return false, err
	}
	return s.pin.Read(), nil
}

// IsPressed accounts for push-to-break wiring
func (s *Switch) IsPressed() (bool, error) {
	made, err := s.IsMade()
	if err != nil {
		return false, err
	}
	return s.pressed(made), nil
}

func (s *Switch) pressed(made bool) bool {
	if s.cfg.SwitchType == models.PushToBreak {
		return !made
	}
	return made
}

// busy reports the running wait or watcher as a command fault; callers hold s.mu
func (s *Switch) busy(op string) error {
	switch {
	case s.stop == nil:
		return nil
	case s.waiting:
		return faults.Commandf(op, "This switch is already waiting for an edge.")
	default:
		return faults.Commandf(op, "Edge detection is already running on this switch.")
	}
}

// arm configures the pin for edge and registers a new wait or watcher; callers hold s.mu
func (s *Switch) arm(op string, edge hardware.Edge, bounce time.Duration, waiting bool) (hardware.InputPin, chan struct{}, chan struct{}, error) {
	if err := s.busy(op); err != nil {
		return nil, nil, nil, err
	}
	if err := s.initialise(); err != nil {
		return nil, nil, nil, err
	}
	if err := s.pin.Configure(edge, bounce); err != nil {
		return nil, nil, nil, fmt.Errorf("configure input %s: %w", *s.cfg.InputPin, err)
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.waiting = waiting
	return s.pin, s.stop, s.done, nil
}

// disarm forgets the wait or watcher owning stop, unless Kill already did
func (s *Switch) disarm(stop chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == stop {
		s.stop, s.done, s.waiting = nil, nil, false
	}
}

// WaitForEdge blocks until edge is seen, timeout elapses, ctx ends or the
// switch is killed. A non-positive timeout waits on ctx alone.
func (s *Switch) WaitForEdge(ctx context.Context, edge hardware.Edge, bounce, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	pin, stop, done, err := s.arm("switches.wait", edge, bounce, true)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	defer close(done)
	defer s.disarm(stop)

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		select {
		case <-stop:
			return false, faults.Commandf("switches.wait", "The switch was released while waiting for an edge.")
		default:
		}
		wait := pollInterval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return false, nil
			}
			if left < wait {
				wait = left
			}
		}
		if pin.WaitForEdge(wait) {
			return true, nil
		}
	}
}

// BeginEdgeDetection starts a watcher that flags every matching edge and
// calls callback from the watcher goroutine. callback must not call back
// into the switch's blocking methods.
func (s *Switch) BeginEdgeDetection(edge hardware.Edge, bounce time.Duration, callback func(Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pin, stop, done, err := s.arm("switches.watch", edge, bounce, false)
	if err != nil {
		return err
	}
	go s.watch(pin, edge, stop, done, callback)
	return nil
}

func (s *Switch) watch(pin hardware.InputPin, edge hardware.Edge, stop <-chan struct{}, done chan<- struct{}, callback func(Event)) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		if !pin.WaitForEdge(pollInterval) {
			continue
		}
		s.detected.Store(true)
		made := pin.Read()
		ev := Event{
			DeviceID:  s.cfg.ID,
			Device:    s.cfg.Name,
			Edge:      string(edge),
			Made:      made,
			Pressed:   s.pressed(made),
			Timestamp: time.Now(),
		}
		if s.sink != nil {
			s.sink.SwitchEdge(ev)
		}
		if callback != nil {
			callback(ev)
		}
	}
}

// EdgeDetected reports whether an edge was seen since the last call
func (s *Switch) EdgeDetected() bool {
	return s.detected.Swap(false)
}

// RemoveEdgeDetection stops the watcher, if any. A pending wait is left alone.
func (s *Switch) RemoveEdgeDetection() {
	s.mu.Lock()
	if s.waiting {
		s.mu.Unlock()
		return
	}
	stop, done := s.detach()
	s.mu.Unlock()
	halt(stop, done)
}

// detach takes ownership of the running wait or watcher; callers hold s.mu
func (s *Switch) detach() (chan struct{}, chan struct{}) {
	stop, done := s.stop, s.done
	s.stop, s.done, s.waiting = nil, nil, false
	return stop, done
}

func halt(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Kill ends any wait or watcher and gives the pin back
func (s *Switch) Kill() error {
	s.mu.Lock()
	stop, done := s.detach()
	pin := s.pin
	s.pin = nil
	s.mu.Unlock()

	halt(stop, done)
	if pin == nil {
		return nil
	}
	if err := pin.Release(); err != nil {
		return fmt.Errorf("release switch %s: %w", s.cfg.Name, err)
	}
	return nil
}
