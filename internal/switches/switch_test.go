package switches

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/hardware"
	"gpio_control_server/internal/models"
	"gpio_control_server/internal/pins"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) SwitchEdge(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newSwitch(t *testing.T, kind models.SwitchType) (*Switch, *hardware.Simulator, *hardware.Backend, *recordingSink) {
	t.Helper()
	backend, sim, err := hardware.NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{}
	cfg := models.PushSwitch{ID: 1, Name: "Limit", SwitchType: kind, InputPin: pins.Ptr(11)}
	return New(cfg, backend, sink), sim, backend, sink
}

func TestIsMadeAndIsPressed(t *testing.T) {
	tests := []struct {
		kind        models.SwitchType
		high        bool
		wantPressed bool
	}{
		{models.PushToMake, false, false},
		{models.PushToMake, true, true},
		{models.PushToBreak, false, true},
		{models.PushToBreak, true, false},
	}
	for _, tt := range tests {
		s, sim, _, _ := newSwitch(t, tt.kind)
		if err := s.Initialise(); err != nil {
			t.Fatal(err)
		}
		sim.Input(11).Set(tt.high)

		made, err := s.IsMade()
		if err != nil {
			t.Fatal(err)
		}
		if made != tt.high {
			t.Errorf("%s high=%v: made=%v", tt.kind, tt.high, made)
		}
		pressed, _ := s.IsPressed()
		if pressed != tt.wantPressed {
			t.Errorf("%s high=%v: pressed=%v, want %v", tt.kind, tt.high, pressed, tt.wantPressed)
		}
	}
}

func TestWaitForEdge(t *testing.T) {
	s, sim, _, _ := newSwitch(t, models.PushToMake)
	if err := s.Initialise(); err != nil {
		t.Fatal(err)
	}

	seen, err := s.WaitForEdge(context.Background(), hardware.RisingEdge, 0, 30*time.Millisecond)
	if err != nil || seen {
		t.Fatalf("expected a timeout, got %v %v", seen, err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.Input(11).Set(true)
	}()
	seen, err = s.WaitForEdge(context.Background(), hardware.RisingEdge, 0, 2*time.Second)
	if err != nil || !seen {
		t.Fatalf("expected the rising edge, got %v %v", seen, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.WaitForEdge(ctx, hardware.FallingEdge, 0, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// armed waits until a wait or watcher owns the switch
func armed(t *testing.T, s *Switch) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ok := s.stop != nil
		s.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("switch was never armed")
}

func TestPendingWaitDoesNotBlockOtherCalls(t *testing.T) {
	s, sim, backend, _ := newSwitch(t, models.PushToMake)
	type result struct {
		seen bool
		err  error
	}
	res := make(chan result, 1)
	go func() {
		seen, err := s.WaitForEdge(context.Background(), hardware.RisingEdge, 0, 5*time.Second)
		res <- result{seen, err}
	}()
	armed(t, s)

	start := time.Now()
	if made, err := s.IsMade(); err != nil || made {
		t.Errorf("IsMade during a wait: %v %v", made, err)
	}
	if err := s.BeginEdgeDetection(hardware.BothEdges, 0, nil); !faults.Is(err, faults.Command) {
		t.Errorf("a watcher must be refused while waiting, got %v", err)
	}
	in := sim.Input(11)
	if err := s.Kill(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("calls blocked behind the wait for %s", elapsed)
	}

	select {
	case r := <-res:
		if r.seen || !faults.Is(r.err, faults.Command) {
			t.Errorf("expected the wait to end with a command fault, got %v %v", r.seen, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("kill did not end the wait")
	}
	if !in.Released() || len(backend.Live()) != 0 {
		t.Error("kill must release the input pin")
	}
}

func TestManagerReleaseEndsPendingWait(t *testing.T) {
	backend, _, err := hardware.NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	svc := devices.NewService(store.NewMemoryStore(), devices.MustDefaultCatalog(), logger.Nop())
	mgr := NewManager(svc, backend, nil, logger.Nop())
	ctx := context.Background()
	cfg := &models.PushSwitch{Name: "Door", SwitchType: models.PushToMake, InputPin: pins.Ptr(13)}
	if err := svc.CreatePushSwitch(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Wait(ctx, cfg.ID, hardware.RisingEdge, 0, 0)
		done <- err
	}()
	sw, err := mgr.Switch(ctx, cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	armed(t, sw)

	if _, err := mgr.State(ctx, cfg.ID); err != nil {
		t.Errorf("state during a wait: %v", err)
	}
	start := time.Now()
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("close waited %s for an open-ended wait", elapsed)
	}
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected the wait to report the release")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not end the wait")
	}
	if len(backend.Live()) != 0 {
		t.Errorf("close must free the pin, live %v", backend.Live())
	}
}

func TestEdgeDetection(t *testing.T) {
	s, sim, _, sink := newSwitch(t, models.PushToBreak)
	got := make(chan Event, 4)
	if err := s.BeginEdgeDetection(hardware.BothEdges, 0, func(ev Event) { got <- ev }); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginEdgeDetection(hardware.BothEdges, 0, nil); err == nil {
		t.Error("a second watcher must be refused")
	}

	sim.Input(11).Set(true)
	select {
	case ev := <-got:
		if !ev.Made || ev.Pressed || ev.DeviceID != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("edge was not reported")
	}
	if !s.EdgeDetected() {
		t.Error("expected the detected flag")
	}
	if s.EdgeDetected() {
		t.Error("reading the flag must clear it")
	}
	if sink.count() != 1 {
		t.Errorf("expected one sink event, got %d", sink.count())
	}

	s.RemoveEdgeDetection()
	sim.Input(11).Set(false)
	time.Sleep(pollInterval + 50*time.Millisecond)
	if s.EdgeDetected() {
		t.Error("no edge must be flagged after removal")
	}
}

func TestKillReleasesPin(t *testing.T) {
	s, sim, backend, _ := newSwitch(t, models.PushToMake)
	if err := s.BeginEdgeDetection(hardware.RisingEdge, 0, nil); err != nil {
		t.Fatal(err)
	}
	if len(backend.Live()) != 1 {
		t.Fatalf("expected one live pin, got %v", backend.Live())
	}
	in := sim.Input(11)
	if err := s.Kill(); err != nil {
		t.Fatal(err)
	}
	if !in.Released() || len(backend.Live()) != 0 {
		t.Error("kill must release the input pin")
	}
	if err := s.Initialise(); err != nil {
		t.Fatalf("switch should initialise again after kill: %v", err)
	}
}

func TestManagerStateAndRelease(t *testing.T) {
	backend, sim, err := hardware.NewSimulatedBackend()
	if err != nil {
		t.Fatal(err)
	}
	svc := devices.NewService(store.NewMemoryStore(), devices.MustDefaultCatalog(), logger.Nop())
	mgr := NewManager(svc, backend, nil, logger.Nop())
	ctx := context.Background()

	if _, err := mgr.State(ctx, 3); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", err)
	}

	cfg := &models.PushSwitch{Name: "Door", SwitchType: models.PushToMake, InputPin: pins.Ptr(13)}
	if err := svc.CreatePushSwitch(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.State(ctx, cfg.ID); err != nil {
		t.Fatal(err)
	}
	sim.Input(13).Set(true)
	st, err := mgr.State(ctx, cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Made || !st.Pressed {
		t.Errorf("unexpected state %+v", st)
	}

	if err := svc.DeletePushSwitch(ctx, cfg.ID); err != nil {
		t.Fatal(err)
	}
	if len(backend.Live()) != 0 {
		t.Errorf("deleting the switch must free its pin, live %v", backend.Live())
	}
}
