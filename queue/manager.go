package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"complaintmail/internal/audit"
	"complaintmail/internal/metrics"
)

// DefaultInterDelay keeps consecutive sends far enough apart for most SMTP providers.
const DefaultInterDelay = 1500 * time.Millisecond

// Dispatcher sends queued jobs one at a time with a pause between consecutive sends.
// A single drain goroutine runs while jobs are pending and exits once the queue is empty.
type Dispatcher struct {
	transport Transport
	log       zerolog.Logger
	onFailure func(Job, error)
	ctx       context.Context

	mu      sync.Mutex
	pending []Job
	active  bool
	delay   time.Duration
	idle    chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterDelay sets the pause between consecutive sends.
func WithInterDelay(d time.Duration) Option {
	return func(m *Dispatcher) { m.delay = clampDelay(d) }
}

// WithLogger sets the logger used for queue events.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Dispatcher) { m.log = l }
}

// WithFailureHook registers a callback invoked from the drain goroutine for every failed send.
func WithFailureHook(fn func(Job, error)) Option {
	return func(m *Dispatcher) { m.onFailure = fn }
}

// WithContext sets the context passed to the transport on every send.
func WithContext(ctx context.Context) Option {
	return func(m *Dispatcher) { m.ctx = ctx }
}

// NewDispatcher creates an idle dispatcher that sends through t.
func NewDispatcher(t Transport, opts ...Option) *Dispatcher {
	m := &Dispatcher{
		transport: t,
		log:       zerolog.Nop(),
		ctx:       context.Background(),
		pending:   make([]Job, 0),
		delay:     DefaultInterDelay,
		idle:      closedChan(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends job to the tail of the queue and starts draining if idle.
func (m *Dispatcher) Enqueue(job Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, job)
	metrics.JobsEnqueued.Inc()
	metrics.SetQueueDepth(len(m.pending))
	m.log.Debug().Str("to", job.To).Int("pending", len(m.pending)).Msg("job queued")
	m.startLocked()
}

// EnqueueBatch appends jobs as one contiguous run and starts draining if idle.
func (m *Dispatcher) EnqueueBatch(jobs []Job) {
	if len(jobs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, jobs...)
	metrics.JobsEnqueued.Add(float64(len(jobs)))
	metrics.SetQueueDepth(len(m.pending))
	m.log.Debug().Int("jobs", len(jobs)).Int("pending", len(m.pending)).Msg("batch queued")
	m.startLocked()
}

// Status returns the number of pending jobs and whether a drain loop is running.
func (m *Dispatcher) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Pending: len(m.pending), Active: m.active}
}

// SetInterDelay replaces the delay used for future waits. A wait already in progress
// keeps the value it started with.
func (m *Dispatcher) SetInterDelay(d time.Duration) {
	d = clampDelay(d)
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
	m.log.Info().Dur("delay", d).Msg("inter-message delay updated")
}

// InterDelay returns the current delay between consecutive sends.
func (m *Dispatcher) InterDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// Wait blocks until the queue has drained or ctx is done.
func (m *Dispatcher) Wait(ctx context.Context) error {
	for {
		m.mu.Lock()
		if !m.active {
			m.mu.Unlock()
			return nil
		}
		idle := m.idle
		m.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// startLocked launches the drain goroutine unless one is running. Caller holds m.mu.
func (m *Dispatcher) startLocked() {
	if m.active {
		return
	}
	m.active = true
	m.idle = make(chan struct{})
	metrics.DrainLoops.Inc()
	go m.drain()
}

func (m *Dispatcher) drain() {
	m.log.Debug().Msg("drain started")
	for {
		job, ok := m.next()
		if !ok {
			m.log.Debug().Msg("drain completed")
			return
		}

		m.send(job)

		m.mu.Lock()
		more := len(m.pending) > 0
		delay := m.delay
		m.mu.Unlock()

		if more && delay > 0 {
			m.log.Debug().Dur("delay", delay).Msg("waiting before next send")
			time.Sleep(delay)
		}
	}
}

// next pops the head of the queue, or marks the dispatcher idle when empty.
func (m *Dispatcher) next() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		m.active = false
		close(m.idle)
		return Job{}, false
	}
	job := m.pending[0]
	m.pending[0] = Job{}
	m.pending = m.pending[1:]
	metrics.SetQueueDepth(len(m.pending))
	return job, true
}

func (m *Dispatcher) send(job Job) {
	start := time.Now()
	err := m.safeSend(job)
	metrics.ObserveSendDuration(time.Since(start))
	if err != nil {
		metrics.JobsFailed.Inc()
		m.log.Error().Err(err).Str("to", job.To).Str("subject", job.Subject).Msg("send failed")
		audit.Log("send to %s failed: %v", job.To, err)
		if m.onFailure != nil {
			m.onFailure(job, err)
		}
		return
	}
	metrics.JobsSent.Inc()
	m.log.Info().Str("to", job.To).Msg("message sent")
	audit.Log("sent %q to %s", job.Subject, job.To)
}

// safeSend turns a transport panic into an error so the drain loop keeps running.
func (m *Dispatcher) safeSend(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("stack", string(debug.Stack())).Msg("panic in transport")
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return m.transport.Send(m.ctx, job.To, job.Subject, job.Body)
}

func clampDelay(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
