package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events instead of blocking Emit when the queue is full.
	DropIfFull bool
}

type queued struct {
	ctx   context.Context
	event Event
}

// Dispatcher hands events to a sink from a single worker goroutine, so the
// sink sees them in emit order and never runs on the request path. A nil
// *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan queued
	stop    chan struct{}
	stopped chan struct{}
	lost    atomic.Uint64
	once    sync.Once

	// mu orders Emit against Close: an Emit holding the read lock either
	// enqueues before the worker drains or sees closing.
	mu      sync.RWMutex
	closing bool
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:     cfg,
		sink:    sink,
		queue:   make(chan queued, cfg.BufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.stopped)
	for {
		select {
		case q := <-d.queue:
			d.deliver(q)
		case <-d.stop:
			for {
				select {
				case q := <-d.queue:
					d.deliver(q)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the worker from a panicking sink; the event counts as lost.
func (d *Dispatcher) deliver(q queued) {
	defer func() {
		if recover() != nil {
			d.lost.Add(1)
		}
	}()
	d.sink.Emit(q.ctx, q.event)
}

// Emit queues event. The sink receives ctx's values but not its
// cancellation, since delivery happens after the request returns. Without
// DropIfFull, Emit waits for queue space until ctx is done. Events emitted
// after Close count as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closing {
		d.lost.Add(1)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q := queued{ctx: context.WithoutCancel(ctx), event: event}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- q:
		default:
			d.lost.Add(1)
		}
		return
	}

	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.lost.Add(1)
	}
}

// Close stops accepting events, delivers everything already queued and
// waits for the worker to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.mu.Lock()
		d.closing = true
		close(d.stop)
		d.mu.Unlock()
		<-d.stopped
	})
}

// Dropped reports events that never reached the sink: discarded on a full
// queue, abandoned by a cancelled Emit, emitted after Close, or lost to a
// sink panic.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.lost.Load()
}
