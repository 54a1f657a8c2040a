package parallel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rileyhilliard/scatter/internal/logger"
	"github.com/rileyhilliard/scatter/internal/session"
)

// Aggregator drains an outcome stream, keeps the counts and fans each outcome
// out to the configured sinks.
type Aggregator struct {
	sinks []Sink
	log   logger.Logger
	now   func() time.Time
}

// NewAggregator creates an aggregator that forwards to sinks.
func NewAggregator(sinks ...Sink) *Aggregator {
	return &Aggregator{sinks: sinks, log: logger.Noop(), now: time.Now}
}

// SetLogger sets the debug logger.
func (a *Aggregator) SetLogger(l logger.Logger) {
	if l != nil {
		a.log = l
	}
}

// Consume reads outcomes until the channel closes and returns the run summary.
// Each sink is fed by its own dispatcher goroutine with an unbounded queue, so
// a slow sink never delays consumption. Consume waits for every sink to drain
// and close before returning; sink failures are collected into the returned
// error and never change the summary.
func (a *Aggregator) Consume(ctx context.Context, outcomes <-chan session.Outcome) (Summary, error) {
	start := a.now()

	dispatchers := make([]*dispatcher, len(a.sinks))
	for i, s := range a.sinks {
		dispatchers[i] = newDispatcher(s, a.log)
		go dispatchers[i].loop()
	}

	var sum Summary
	for o := range outcomes {
		sum.add(o)
		for _, d := range dispatchers {
			d.push(o)
		}
	}
	sum.Duration = a.now().Sub(start)
	if ctx.Err() != nil {
		sum.Cancelled = true
	}

	var result *multierror.Error
	for _, d := range dispatchers {
		d.finish()
		<-d.done
		if d.err != nil {
			result = multierror.Append(result, d.err)
		}
		if err := d.sink.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("closing %s: %w", sinkName(d.sink), err))
		}
	}

	return sum, result.ErrorOrNil()
}

// dispatcher owns the queue between the aggregator and one sink.
type dispatcher struct {
	sink Sink
	log  logger.Logger

	mu     sync.Mutex
	queue  []session.Outcome
	closed bool
	wake   chan struct{}
	done   chan struct{}

	// err is the first Record error; written only by loop, read after done.
	err error
}

func newDispatcher(s Sink, log logger.Logger) *dispatcher {
	return &dispatcher{
		sink: s,
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (d *dispatcher) push(o session.Outcome) {
	d.mu.Lock()
	d.queue = append(d.queue, o)
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) finish() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, o := range batch {
			d.record(o)
		}
		if len(batch) == 0 {
			if closed {
				return
			}
			<-d.wake
		}
	}
}

// record forwards one outcome. A sink that fails once is skipped for the rest
// of the run.
func (d *dispatcher) record(o session.Outcome) {
	if d.err != nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			d.err = fmt.Errorf("%s: panic recording %s: %v", sinkName(d.sink), o.Target.Name, p)
		}
	}()
	if err := d.sink.Record(o); err != nil {
		d.err = fmt.Errorf("%s: recording %s: %w", sinkName(d.sink), o.Target.Name, err)
		d.log.Warn("%v; sink disabled for the rest of the run", d.err)
	}
}

func sinkName(s Sink) string {
	if n, ok := s.(fmt.Stringer); ok {
		return n.String()
	}
	return fmt.Sprintf("%T", s)
}
