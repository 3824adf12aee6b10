package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) { s.count.Add(1) }

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink { return &gateSink{gate: make(chan struct{})} }

func (s *gateSink) Emit(context.Context, Event) { <-s.gate }

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	// Nil receivers are usable.
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

func TestCloseDrainsQueuedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}
	if d.Delivered() != 50 {
		t.Fatalf("expected delivered counter 50, got %d", d.Delivered())
	}

	// Emit after Close is a silent no-op.
	d.Emit(context.Background(), Event{EventType: "late"})
	if sink.count.Load() != 50 {
		t.Fatal("event emitted after close must not be delivered")
	}
}

func TestDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBlockingEmitHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked emit should give up when its context ends")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", d.Dropped())
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: "x"})
	if a.count.Load() != 1 || b.count.Load() != 1 {
		t.Fatal("every sink should receive the event once")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var out lockedBuffer
	sink := NewJSONWriterSink(&out)
	sink.Emit(context.Background(), Event{EventType: "logout", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failure", Error: "invalid_credentials"})

	lines := bytes.Split(bytes.TrimSpace(out.buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.EventType != "logout" || first.UserID != "u1" || !first.Success {
		t.Fatalf("unexpected event %+v", first)
	}
}

func TestSinkPanicIsCountedAndSurvived(t *testing.T) {
	var mu sync.Mutex
	var reported []string
	calls := 0
	sink := SinkFunc(func(_ context.Context, ev Event) {
		calls++
		if ev.EventType == "boom" {
			panic("sink exploded")
		}
	})
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 8,
		OnSinkPanic: func(ev Event, err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, ev.EventType+": "+err.Error())
		},
	}, sink)

	d.Emit(context.Background(), Event{EventType: "boom"})
	d.Emit(context.Background(), Event{EventType: "logout"})
	d.Close()

	stats := d.Stats()
	if stats.Failed != 1 || stats.Delivered != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if calls != 2 {
		t.Fatalf("sink called %d times, want 2", calls)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 || reported[0] != "boom: audit sink panic: sink exploded" {
		t.Fatalf("unexpected panic reports %v", reported)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Close()
	if d.Stats() != (Stats{}) {
		t.Fatalf("expected zero stats, got %+v", d.Stats())
	}
}
