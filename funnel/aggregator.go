package funnel

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/Cybereason/epic-logging/backbone"
	"github.com/Cybereason/epic-logging/worker"
)

// Sink receives the aggregated records of a session. loggers.Logger
// satisfies it.
type Sink interface {
	Name() string
	EffectiveLevel() slog.Level
	Dispatch(backbone.Record)
}

// Aggregator owns one aggregation session: between Start and Stop, every
// record emitted on the session backbone at or above the sink's level,
// including records from worker processes spawned inside the window, is
// attributed to its origin and delivered into the sink.
type Aggregator struct {
	sink Sink
	bb   *backbone.Backbone

	mu          sync.Mutex
	started     bool
	queue       *Queue
	interceptor *Interceptor
	prevFactory worker.Factory
	done        chan struct{}

	closeSink io.Closer // set when the aggregator owns its sink
}

// AggregatorOption configures an Aggregator at construction time.
type AggregatorOption func(*Aggregator)

// OnBackbone binds the session to a backbone other than the process
// default.
func OnBackbone(bb *backbone.Backbone) AggregatorOption {
	return func(a *Aggregator) {
		if bb != nil {
			a.bb = bb
		}
	}
}

// NewAggregator builds a session around sink. The session threshold is the
// sink's effective level as of Start.
func NewAggregator(sink Sink, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{sink: sink, bb: backbone.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sink returns the session's sink.
func (a *Aggregator) Sink() Sink {
	return a.sink
}

// Started reports whether a session window is currently open.
func (a *Aggregator) Started() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

// Start opens the session: it brings up the handoff channel, installs the
// interceptor, decorates the worker factory so spawned processes join the
// session, and launches the consumer. Starting a started session is a
// no-op. The only fallible step is bringing up the channel; on that error
// the session is left verifiably not started.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	queue, err := NewQueue()
	if err != nil {
		return err
	}
	a.queue = queue
	a.interceptor = NewInterceptor(a.sink.EffectiveLevel(), queue, a.bb)
	a.interceptor.Install()
	a.prevFactory = worker.Swap(spawnFactory{next: worker.Current(), h: a.interceptor})
	a.done = make(chan struct{})
	go a.consume(queue, a.done)
	a.started = true
	return nil
}

// Stop closes the session: interception ends, the worker factory is
// restored, and Stop blocks until every record already handed off has been
// delivered to the sink. Stopping a stopped session is a no-op.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return
	}
	a.queue.Close()
	<-a.done
	_ = a.interceptor.Uninstall()
	worker.Swap(a.prevFactory)
	a.started = false
	a.queue = nil
	a.interceptor = nil
	a.prevFactory = nil
	if a.closeSink != nil {
		_ = a.closeSink.Close()
		a.closeSink = nil
	}
}

// Run executes fn inside a session window.
func (a *Aggregator) Run(fn func() error) error {
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Stop()
	return fn()
}

// consume is the session's single consumer. It re-checks the sink level at
// delivery time (the sink may have been adjusted mid-session), drops the
// sink's own local emissions (already written by the sink when emitted),
// prefixes each message with the session attribution (the pid is named only
// for records from other processes), and marks the record handled so
// enclosing sessions do not re-ingest the sink's output.
func (a *Aggregator) consume(q *Queue, done chan struct{}) {
	defer close(done)
	own := os.Getpid()
	for t := range q.Records() {
		rec := t.Record
		if rec.Level < a.sink.EffectiveLevel() {
			continue
		}
		attribution := a.sink.Name()
		if t.PID == own {
			if rec.Logger == attribution {
				continue
			}
		} else {
			attribution = fmt.Sprintf("%s PID %d", attribution, t.PID)
		}
		rec.Message = fmt.Sprintf("[%s] - %s", attribution, rec.Message)
		rec.Handled = true
		a.sink.Dispatch(rec)
	}
}
