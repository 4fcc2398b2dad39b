package pixel

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/bazarly/backend/pkg/errors"
	"github.com/bazarly/backend/pkg/logger"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Sender delivers one batch of events.
type Sender interface {
	SendEvents(ctx context.Context, events []Event) error
}

// SenderFactory resolves the sender from current settings at attempt time,
// so credential edits take effect without rebuilding the pipeline.
type SenderFactory func() (Sender, error)

// Scheduler owns retry timing. Tests inject a fake to drive attempts without
// real timers.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

type timerScheduler struct{}

func (timerScheduler) Schedule(delay time.Duration, fn func()) {
	if delay <= 0 {
		go fn()
		return
	}
	time.AfterFunc(delay, fn)
}

// NewTimerScheduler returns the production scheduler backed by real timers.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

// Pipeline delivers conversion events best-effort: the initiating call
// returns immediately, later attempts run on the scheduler, and exhausted
// retries end up in stats instead of propagating anywhere.
type Pipeline struct {
	mu          sync.Mutex
	initialized bool

	sender      SenderFactory
	sched       Scheduler
	stats       *Stats
	logg        *logger.Logger
	now         func() time.Time
	maxAttempts int
	baseDelay   time.Duration
}

type PipelineParams struct {
	Sender      SenderFactory
	Scheduler   Scheduler
	Stats       *Stats
	Logger      *logger.Logger
	Now         func() time.Time
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewPipeline(params PipelineParams) (*Pipeline, error) {
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender factory required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger required")
	}
	if params.Scheduler == nil {
		params.Scheduler = NewTimerScheduler()
	}
	if params.Stats == nil {
		params.Stats = NewStats(nil)
	}
	if params.Now == nil {
		params.Now = func() time.Time { return time.Now().UTC() }
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = defaultMaxAttempts
	}
	if params.BaseDelay <= 0 {
		params.BaseDelay = defaultBaseDelay
	}

	return &Pipeline{
		sender:      params.Sender,
		sched:       params.Scheduler,
		stats:       params.Stats,
		logg:        params.Logger,
		now:         params.Now,
		maxAttempts: params.MaxAttempts,
		baseDelay:   params.BaseDelay,
	}, nil
}

// Init arms the pipeline. Calling it again is a no-op.
func (p *Pipeline) Init() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		p.logg.Debug(context.Background(), "conversion pipeline already initialized")
		return
	}
	p.initialized = true
}

func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Stats exposes the delivery counters.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

// Track schedules delivery of one event and returns immediately. An
// uninitialized pipeline drops the event silently; telemetry must never
// interrupt commerce flows.
func (p *Pipeline) Track(event Event) {
	if !p.Initialized() {
		p.logg.Debug(context.Background(), "conversion pipeline not initialized, dropping event")
		return
	}
	p.sched.Schedule(0, func() { p.attempt(event, 1) })
}

func (p *Pipeline) attempt(event Event, attempt int) {
	ctx := p.logg.WithFields(context.Background(), map[string]any{
		"event_name": event.EventName,
		"attempt":    attempt,
	})

	sender, err := p.sender()
	if err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "conversion sender unavailable")
		p.stats.RecordFailure(p.now(), err)
		return
	}

	err = sender.SendEvents(context.Background(), []Event{event})
	if err == nil {
		p.stats.RecordSent(p.now())
		p.logg.Debug(ctx, "conversion event delivered")
		return
	}

	if attempt >= p.maxAttempts {
		p.logg.Warn(p.logg.WithField(ctx, "error", err.Error()), "conversion event abandoned after retries")
		p.stats.RecordFailure(p.now(), err)
		return
	}

	// Whole-second doubling: 1s before the second attempt, 2s before the
	// third.
	delay := p.baseDelay << (attempt - 1)
	p.logg.Debug(p.logg.WithField(ctx, "retry_in", delay.String()), "conversion event delivery failed, retrying")
	p.sched.Schedule(delay, func() { p.attempt(event, attempt+1) })
}
