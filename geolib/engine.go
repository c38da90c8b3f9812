package geolib

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

type Options struct {
	Services  []WeightedService
	Consensus []string

	MaxMarkers    int
	MaxVisited    int
	Retention     time.Duration
	DedupCooldown time.Duration

	CacheWindow     time.Duration
	TotalTimeout    time.Duration
	HedgeDelay      time.Duration
	RequestTimeout  time.Duration
	MinQualityScore int
	WorkerPoolSize  int
	Timezone        string

	RateLimit    time.Duration
	Debounce     time.Duration
	RefreshEvery time.Duration

	// Anonymization is enabled by default.
	DisableAnonymization bool
	AnonymizationSalt    string

	RehydrateBatchSize  int
	RehydrateBatchDelay time.Duration

	// Location defines calendar days for deduplication.
	Location *time.Location

	Storage Storage
	Surface RenderSurface
	Logger  Logger
	Now     func() time.Time
}

func (o Options) validate() error {
	durations := map[string]time.Duration{
		"retention":             o.Retention,
		"dedup cooldown":        o.DedupCooldown,
		"cache window":          o.CacheWindow,
		"total timeout":         o.TotalTimeout,
		"hedge delay":           o.HedgeDelay,
		"request timeout":       o.RequestTimeout,
		"rate limit":            o.RateLimit,
		"debounce":              o.Debounce,
		"refresh interval":      o.RefreshEvery,
		"rehydrate batch delay": o.RehydrateBatchDelay,
	}

	for name, value := range durations {
		if value < 0 {
			return fmt.Errorf("%s should be non-negative: %w", name, ErrInvalidOptions)
		}
	}

	counters := map[string]int{
		"max markers":          o.MaxMarkers,
		"max visited":          o.MaxVisited,
		"worker pool size":     o.WorkerPoolSize,
		"rehydrate batch size": o.RehydrateBatchSize,
	}

	for name, value := range counters {
		if value < 0 {
			return fmt.Errorf("%s should be non-negative: %w", name, ErrInvalidOptions)
		}
	}

	if o.MinQualityScore < 0 || o.MinQualityScore > MaxQualityScore {
		return fmt.Errorf("min quality score should be within [0, %d]: %w",
			MaxQualityScore, ErrInvalidOptions)
	}

	if o.Timezone != "" {
		if _, err := time.LoadLocation(o.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %s: %w", o.Timezone, ErrInvalidOptions)
		}
	}

	return nil
}

// Engine is an instance which owns all components. There is no global
// state: many engines can coexist within the same process if they use
// different storages.
type Engine struct {
	logger     Logger
	cache      *ResultCache
	resolver   *Resolver
	retention  *RetentionStore
	markers    *MarkerCollection
	scheduler  *Scheduler
	anonymizer *Anonymizer

	closed          atomic.Bool
	mutex           sync.Mutex
	stopRehydration context.CancelFunc
}

// Run restores markers from storage, enables periodic refresh and
// requests the first resolution of own location. It does not block.
func (e *Engine) Run(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineShutdown
	}

	ctx, cancel := context.WithCancel(ctx)

	e.mutex.Lock()
	if e.stopRehydration != nil {
		e.stopRehydration()
	}
	e.stopRehydration = cancel
	e.mutex.Unlock()

	e.retention.PurgeExpired()
	e.markers.Rehydrate(ctx, e.retention.Entries())

	if err := e.scheduler.Start(); err != nil {
		return fmt.Errorf("cannot start scheduler: %w", err)
	}

	e.scheduler.RequestResolution(TriggerLoad)

	return nil
}

// Refresh is a manual refresh request. It is debounced.
func (e *Engine) Refresh() bool {
	return !e.closed.Load() && e.scheduler.RequestResolution(TriggerManual)
}

// VisibilityRegained is a request to refresh when a surface becomes
// visible again. It is rate limited.
func (e *Engine) VisibilityRegained() bool {
	return !e.closed.Load() && e.scheduler.RequestResolution(TriggerVisibility)
}

// Visit resolves a location of a visitor by IP address and counts it.
// A boolean flag is true if a new marker was added.
func (e *Engine) Visit(ctx context.Context, ip net.IP) (*LocationRecord, bool) {
	if ip == nil {
		return nil, false
	}

	return e.process(ctx, ip)
}

// ResolveOwn resolves own location and counts it.
func (e *Engine) ResolveOwn(ctx context.Context) (*LocationRecord, bool) {
	return e.process(ctx, nil)
}

// Clear drops all markers, visited entries and cached results.
func (e *Engine) Clear() {
	if !e.closed.Load() {
		e.markers.Clear()
	}
}

func (e *Engine) Markers() []Marker {
	return e.markers.Markers()
}

func (e *Engine) Visited() []VisitedEntry {
	return e.retention.Entries()
}

func (e *Engine) UsageStats() []*UsageStats {
	return e.resolver.UsageStats()
}

// Shutdown stops all background activities. Engine cannot be used
// after that.
func (e *Engine) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}

	e.mutex.Lock()
	if e.stopRehydration != nil {
		e.stopRehydration()
	}
	e.mutex.Unlock()

	e.scheduler.Shutdown()
	e.resolver.Shutdown()
	e.cache.Close()
}

func (e *Engine) process(ctx context.Context, ip net.IP) (*LocationRecord, bool) {
	if e.closed.Load() {
		return nil, false
	}

	record := e.resolver.Resolve(ctx, ip)
	if record == nil {
		return nil, false
	}

	if e.anonymizer != nil {
		record = e.anonymizer.Anonymize(record)
	}

	if !e.retention.ShouldRecord(record) {
		e.logger.ResolveInfo(record, "visitor is already counted")

		return record, false
	}

	e.retention.Record(record)

	_, added := e.markers.Add(record)

	return record, added
}

func (e *Engine) onScheduledRun(ctx context.Context, trigger Trigger) {
	if _, added := e.ResolveOwn(ctx); added {
		e.logger.TriggerInfo(trigger, "marker is added")
	}
}

func (e *Engine) onClear() {
	e.retention.Reset()
	e.cache.Invalidate()
}

func NewEngine(opts Options) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	rv := &Engine{
		logger: opts.Logger,
		cache:  NewResultCache(opts.CacheWindow, opts.Now),
	}

	resolver, err := NewResolver(ResolverOptions{
		Services:        opts.Services,
		Consensus:       opts.Consensus,
		TotalTimeout:    opts.TotalTimeout,
		HedgeDelay:      opts.HedgeDelay,
		RequestTimeout:  opts.RequestTimeout,
		MinQualityScore: opts.MinQualityScore,
		Timezone:        opts.Timezone,
		WorkerPoolSize:  opts.WorkerPoolSize,
		Cache:           rv.cache,
		Logger:          opts.Logger,
		Now:             opts.Now,
	})
	if err != nil {
		rv.cache.Close()

		return nil, fmt.Errorf("cannot create resolver: %w", err)
	}

	rv.resolver = resolver
	rv.retention = NewRetentionStore(RetentionOptions{
		Retention:     opts.Retention,
		MaxEntries:    opts.MaxVisited,
		DedupCooldown: opts.DedupCooldown,
		Location:      opts.Location,
		Storage:       opts.Storage,
		Logger:        opts.Logger,
		Now:           opts.Now,
	})
	rv.markers = NewMarkerCollection(MarkerOptions{
		MaxMarkers:          opts.MaxMarkers,
		Retention:           opts.Retention,
		RehydrateBatchSize:  opts.RehydrateBatchSize,
		RehydrateBatchDelay: opts.RehydrateBatchDelay,
		Surface:             opts.Surface,
		Storage:             opts.Storage,
		Logger:              opts.Logger,
		Now:                 opts.Now,
		OnClear:             rv.onClear,
	})
	rv.scheduler = NewScheduler(SchedulerOptions{
		RateLimit:    opts.RateLimit,
		Debounce:     opts.Debounce,
		RefreshEvery: opts.RefreshEvery,
		Logger:       opts.Logger,
	}, rv.onScheduledRun)

	if !opts.DisableAnonymization {
		rv.anonymizer = NewAnonymizer(opts.AnonymizationSalt)
	}

	return rv, nil
}
