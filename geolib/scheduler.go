package geolib

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = 30 * time.Second
	DefaultDebounce  = time.Second

	periodicRefreshJobName = "periodic-refresh"
)

// Trigger is a reason to start a resolution.
type Trigger uint8

const (
	TriggerLoad Trigger = iota
	TriggerVisibility
	TriggerPeriodic
	TriggerManual
)

func (t Trigger) String() string {
	switch t {
	case TriggerLoad:
		return "load"
	case TriggerVisibility:
		return "visibility"
	case TriggerPeriodic:
		return "periodic"
	case TriggerManual:
		return "manual"
	}

	return fmt.Sprintf("trigger(%d)", uint8(t))
}

type SchedulerOptions struct {
	// RateLimit is a minimal interval between automatic resolutions.
	RateLimit time.Duration

	// Debounce collapses bursts of manual triggers into one run.
	Debounce time.Duration

	// RefreshEvery enables periodic triggers if positive.
	RefreshEvery time.Duration

	Logger Logger
}

// Scheduler decides when a resolution has to be started. Only one
// resolution can run at the same time: any trigger which comes while
// resolution is in flight is ignored.
type Scheduler struct {
	run      func(context.Context, Trigger)
	ctx      context.Context
	cancel   context.CancelFunc
	limiter  *rate.Limiter
	logger   Logger
	inFlight atomic.Bool
	wg       sync.WaitGroup

	debounce      time.Duration
	refreshEvery  time.Duration
	mutex         sync.Mutex
	debounceTimer *time.Timer
	cron          gocron.Scheduler
	closed        bool
}

// RequestResolution asks for a resolution. It returns true if a request
// was accepted: resolution is started or scheduled after debounce.
func (s *Scheduler) RequestResolution(trigger Trigger) bool {
	if s.inFlight.Load() {
		s.logger.TriggerInfo(trigger, "resolution is in flight, skipped")

		return false
	}

	if trigger == TriggerManual {
		return s.debounceRun(trigger)
	}

	if !s.limiter.Allow() {
		s.logger.TriggerInfo(trigger, "rate limited, skipped")

		return false
	}

	return s.start(trigger)
}

// Start enables periodic triggers.
func (s *Scheduler) Start() error {
	if s.refreshEvery <= 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrEngineShutdown
	}

	if s.cron != nil {
		return nil
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("cannot create cron scheduler: %w", err)
	}

	_, err = cron.NewJob(
		gocron.DurationJob(s.refreshEvery),
		gocron.NewTask(func() {
			s.RequestResolution(TriggerPeriodic)
		}),
		gocron.WithName(periodicRefreshJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cron.Shutdown() // nolint: errcheck

		return fmt.Errorf("cannot create periodic refresh job: %w", err)
	}

	cron.Start()

	s.cron = cron

	return nil
}

// Shutdown stops all timers and jobs and waits until in-flight
// resolution is finished.
func (s *Scheduler) Shutdown() {
	s.mutex.Lock()

	if s.closed {
		s.mutex.Unlock()

		return
	}

	s.closed = true

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}

	cron := s.cron
	s.cron = nil

	s.mutex.Unlock()

	if cron != nil {
		if err := cron.Shutdown(); err != nil {
			s.logger.TriggerInfo(TriggerPeriodic, "cannot shutdown cron scheduler: "+err.Error())
		}
	}

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) debounceRun(trigger Trigger) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}

	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.mutex.Lock()
		s.debounceTimer = nil
		s.mutex.Unlock()

		s.start(trigger)
	})

	return true
}

func (s *Scheduler) start(trigger Trigger) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return false
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.TriggerInfo(trigger, "resolution is in flight, skipped")

		return false
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		s.logger.TriggerInfo(trigger, "resolution is started")
		s.run(s.ctx, trigger)
	}()

	return true
}

// NewScheduler creates a scheduler which executes run on accepted
// triggers. Context of run is closed on Shutdown.
func NewScheduler(opts SchedulerOptions, run func(context.Context, Trigger)) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	rv := &Scheduler{
		run:          run,
		ctx:          ctx,
		cancel:       cancel,
		logger:       opts.Logger,
		debounce:     opts.Debounce,
		refreshEvery: opts.RefreshEvery,
	}

	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	rv.limiter = rate.NewLimiter(rate.Every(rateLimit), 1)

	if rv.debounce <= 0 {
		rv.debounce = DefaultDebounce
	}

	if rv.logger == nil {
		rv.logger = noopLogger{}
	}

	return rv
}
