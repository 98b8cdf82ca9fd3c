package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"driver-provisioning/backend/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := m.getEvents(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.getEvents()
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, context.Background(), domain.NewEvent(domain.EventDriverProvisioned, "a", "d", "e"))
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}

	EmitAsync(emitter, context.Background(), nil)

	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	event := domain.NewEvent(domain.EventDriverProvisioned, "auth-1", "drv-1", "a@x.com")

	EmitAsync(emitter, context.Background(), event)

	events := waitForEvents(t, emitter, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].AuthUserID != "auth-1" || events[0].DriverID != "drv-1" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].Type != domain.EventDriverProvisioned {
		t.Errorf("event type = %q", events[0].Type)
	}
	if events[0].Source != domain.Source || events[0].ID == "" || events[0].OccurredAt.IsZero() {
		t.Errorf("NewEvent should stamp id, source and time: %+v", events[0])
	}
}

func TestEmitAsync_CanceledRequestContextStillEmits(t *testing.T) {
	emitter := &mockEventEmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EmitAsync(emitter, ctx, domain.NewEvent(domain.EventDriverDeprovisioned, "auth-1", "", ""))

	if events := waitForEvents(t, emitter, 1); len(events) != 1 {
		t.Errorf("expected 1 event after request cancel, got %d", len(events))
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}

	// Should not panic on error
	EmitAsync(emitter, context.Background(), domain.NewEvent(domain.EventDriverProvisioned, "a", "", ""))

	waitForEvents(t, emitter, 1)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, context.Background(), domain.NewEvent(domain.EventDriverProvisioned, "a", "", ""))
		}()
	}
	wg.Wait()

	if events := waitForEvents(t, emitter, 10); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func TestFanout_EmitsToAllAndJoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	failing := &mockEventEmitter{emitErr: errors.New("kafka down")}
	f := Fanout{ok, nil, failing}

	err := f.Emit(context.Background(), domain.NewEvent(domain.EventDriverProvisioned, "a", "", ""))
	if err == nil {
		t.Fatal("Fanout should return the failing emitter's error")
	}
	if len(ok.getEvents()) != 1 || len(failing.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
