package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// OnSinkPanic, when set, is told about a sink that panicked. The event
	// is counted as failed and delivery continues.
	OnSinkPanic func(Event, error)
}

// Stats are the dispatcher counters at one instant.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Dispatcher hands events to a sink on its own goroutine so request paths
// never wait on slow audit destinations.
type Dispatcher struct {
	sink        Sink
	dropIfFull  bool
	onSinkPanic func(Event, error)

	queue   chan Event
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
	closing atomic.Bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
// Every method works on a nil *Dispatcher and does nothing.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:        sink,
		dropIfFull:  cfg.DropIfFull,
		onSinkPanic: cfg.OnSinkPanic,
		queue:       make(chan Event, size),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes events accepted before Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			if d.onSinkPanic != nil {
				d.onSinkPanic(ev, fmt.Errorf("audit sink panic: %v", r))
			}
		}
	}()
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues ev. With DropIfFull a full queue drops it at once; otherwise
// Emit waits for room until ctx ends, which also counts as a drop.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-d.stop:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops intake and returns once queued events reached the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
	})
	<-d.stopped
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
	}
}
