package telemetry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/event/domain"
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

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second)
	EmitAsync(r, nil, &domain.Event{ID: "e1"})

	emitter := &mockEventEmitter{}
	EmitAsync(r, emitter, nil)
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("expected 0 events, got %d", n)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second)
	emitter := &mockEventEmitter{}
	event := &domain.Event{ID: "e1", Kind: domain.KindWebcam, DeviceID: "dev-1"}
	EmitAsync(r, emitter, event)
	event.DeviceID = "mutated after emit"

	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want snapshot value %q", events[0].DeviceID, "dev-1")
	}
}

func TestRunner_TaskContextHasDeadline(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second)

	var hasDeadline bool
	var ctxErr error
	r.Go("check", func(taskCtx context.Context) error {
		_, hasDeadline = taskCtx.Deadline()
		ctxErr = taskCtx.Err()
		return nil
	})
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !hasDeadline {
		t.Error("task context should carry the runner timeout")
	}
	if ctxErr != nil {
		t.Errorf("task context err = %v, want nil", ctxErr)
	}
}

func TestRunner_TimeoutAndErrorLogged(t *testing.T) {
	var buf syncBuffer
	r := NewRunner(zerolog.New(&buf), 20*time.Millisecond)
	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Go("fails", func(ctx context.Context) error { return errors.New("smtp refused") })
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "deadline exceeded") {
		t.Errorf("log should record the timeout, got %s", out)
	}
	if !strings.Contains(out, "smtp refused") || !strings.Contains(out, `"task":"fails"`) {
		t.Errorf("log should record the failed task, got %s", out)
	}
}

func TestRunner_PanicRecovered(t *testing.T) {
	var buf syncBuffer
	r := NewRunner(zerolog.New(&buf), time.Second)
	r.Go("boom", func(ctx context.Context) error { panic("bad") })
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !strings.Contains(buf.String(), "panicked") {
		t.Errorf("panic should be logged, got %s", buf.String())
	}
}

func TestRunner_DrainStopsNewTasks(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second)
	if err := r.Drain(context.Background()); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if r.Go("late", func(ctx context.Context) error { return nil }) {
		t.Error("Go after Drain should report false")
	}
}

func TestRunner_DrainHonoursContext(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second)
	release := make(chan struct{})
	r.Go("blocked", func(ctx context.Context) error {
		<-release
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain = %v, want deadline exceeded", err)
	}
	close(release)
}

func TestFanout_JoinsErrors(t *testing.T) {
	ok := &mockEventEmitter{}
	bad := &mockEventEmitter{emitErr: errors.New("kafka down")}
	err := Fanout{ok, nil, bad}.Emit(context.Background(), &domain.Event{ID: "e1"})
	if err == nil || !strings.Contains(err.Error(), "kafka down") {
		t.Errorf("Fanout error = %v", err)
	}
	if len(ok.getEvents()) != 1 || len(bad.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
}
