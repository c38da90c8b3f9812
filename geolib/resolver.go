package geolib

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const (
	DefaultWorkerPoolSize = 1024
	DefaultTotalTimeout   = 9 * time.Second
	DefaultHedgeDelay     = 350 * time.Millisecond
	DefaultRequestTimeout = 6 * time.Second

	defaultConsensusSize = 3
	workerPoolExpireTime = time.Minute
)

// WeightedService is a service with its priority. Services with
// larger weights are started earlier in the hedge race.
type WeightedService struct {
	Service Service
	Weight  int
}

type ResolverOptions struct {
	Services []WeightedService

	// Consensus is a list of service names which are queried if hedge
	// race has not produced any coordinates. If empty, first 3 services
	// (in race order) are used.
	Consensus []string

	TotalTimeout    time.Duration
	HedgeDelay      time.Duration
	RequestTimeout  time.Duration
	MinQualityScore int

	// Timezone is IANA name of the timezone which is used for a coarse
	// estimation of the own location. If empty, LocalTimezone is used.
	Timezone       string
	WorkerPoolSize int

	Cache  *ResultCache
	Logger Logger
	Now    func() time.Time
}

// Resolver determines location by racing a set of lookup services.
type Resolver struct {
	logger          Logger
	services        []Service
	consensus       []Service
	stats           map[string]*UsageStats
	cache           *ResultCache
	workerPool      *ants.PoolWithFunc
	totalTimeout    time.Duration
	hedgeDelay      time.Duration
	requestTimeout  time.Duration
	minQualityScore int
	timezone        string
	now             func() time.Time
}

type lookupTask struct {
	ctx     context.Context
	ip      net.IP
	service Service
	delay   time.Duration
	results chan<- *LocationRecord
	wg      *sync.WaitGroup
}

// Resolve returns a location of the given IP address or own location,
// if ip is nil. It never fails because of services: if nothing can be
// resolved, nil is returned.
//
// Resolution takes at most TotalTimeout. Services are started with
// HedgeDelay intervals; the first response with a quality score >=
// MinQualityScore wins, all other requests are cancelled. If a
// couple of services clear the threshold at the same moment, there is
// no guarantee which one is taken: it depends on goroutine scheduling.
//
// If hedge race gives no coordinates at all, a consensus of the
// consensus set is calculated. If this does not help, own location is
// estimated by a timezone. Timezone estimates are never cached.
func (r *Resolver) Resolve(ctx context.Context, ip net.IP) *LocationRecord {
	if record, ok := r.cache.Get(ip); ok {
		return record
	}

	return r.cache.Do(ip, func() *LocationRecord {
		if record, ok := r.cache.Get(ip); ok {
			return record
		}

		record := r.resolve(ctx, ip)

		switch {
		case record == nil:
			r.logger.ResolveInfo(nil, "nothing is resolved")
		case record.Source == SourceTimezoneEstimate:
			r.logger.ResolveInfo(record, "location is estimated by timezone")
		default:
			r.cache.Set(ip, record)
			r.logger.ResolveInfo(record, "location is resolved")
		}

		return record
	})
}

func (r *Resolver) resolve(ctx context.Context, ip net.IP) *LocationRecord {
	budgetCtx, cancel := context.WithTimeout(ctx, r.totalTimeout)
	defer cancel()

	if record := r.race(budgetCtx, ip); record != nil {
		r.stats[record.Source].Won()

		return record
	}

	if record := r.runConsensus(budgetCtx, ip); record != nil {
		return record
	}

	if ip != nil {
		// timezone of this process says nothing about a remote visitor
		return nil
	}

	return EstimateByTimezone(r.timezone, r.now())
}

func (r *Resolver) race(ctx context.Context, ip net.IP) *LocationRecord {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := r.startLookups(ctx, ip, r.services, r.hedgeDelay)

	var best *LocationRecord

	for {
		select {
		case <-ctx.Done():
			return best
		case record, ok := <-results:
			switch {
			case !ok:
				return best
			case record == nil:
				continue
			case best == nil || record.QualityScore > best.QualityScore:
				best = record
			}

			if record.QualityScore >= r.minQualityScore {
				return record
			}
		}
	}
}

func (r *Resolver) runConsensus(ctx context.Context, ip net.IP) *LocationRecord {
	if len(r.consensus) == 0 {
		return nil
	}

	results := r.startLookups(ctx, ip, r.consensus, 0)
	records := make([]*LocationRecord, 0, len(r.consensus))

	for {
		select {
		case <-ctx.Done():
			return Consensus(records, r.now())
		case record, ok := <-results:
			if !ok {
				return Consensus(records, r.now())
			}

			if record != nil {
				records = append(records, record)
			}
		}
	}
}

// startLookups schedules lookups on a worker pool. Service i starts
// after i*delay. Returned channel is closed when all lookups are
// finished.
func (r *Resolver) startLookups(ctx context.Context,
	ip net.IP,
	services []Service,
	delay time.Duration) <-chan *LocationRecord {
	results := make(chan *LocationRecord, len(services))
	wg := &sync.WaitGroup{}

	for i, v := range services {
		wg.Add(1)

		task := &lookupTask{
			ctx:     ctx,
			ip:      ip,
			service: v,
			delay:   time.Duration(i) * delay,
			results: results,
			wg:      wg,
		}

		if err := r.workerPool.Invoke(task); err != nil {
			wg.Done()
			r.logger.LookupError(ip, v.Name(), fmt.Errorf("cannot schedule a task: %w", err))
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (r *Resolver) runLookupTask(args interface{}) {
	task := args.(*lookupTask)
	defer task.wg.Done()

	if task.delay > 0 {
		timer := time.NewTimer(task.delay)

		select {
		case <-task.ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}

	task.results <- r.lookup(task.ctx, task.ip, task.service)
}

func (r *Resolver) lookup(ctx context.Context, ip net.IP, service Service) *LocationRecord {
	requestCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	result, err := service.Lookup(requestCtx, ip)

	if ctx.Err() != nil {
		// the race is finalized already: this lookup is cancelled and
		// its outcome is irrelevant.
		return nil
	}

	if err == nil {
		if record := newLocationRecord(service.Name(), result, r.now()); record != nil {
			r.stats[service.Name()].Used(nil)

			return record
		}

		err = ErrNoLocation
	}

	r.stats[service.Name()].Used(err)
	r.logger.LookupError(ip, service.Name(), err)

	return nil
}

// UsageStats returns stats of all services sorted by name.
func (r *Resolver) UsageStats() []*UsageStats {
	rv := make([]*UsageStats, 0, len(r.stats))

	for _, v := range r.stats {
		rv = append(rv, v)
	}

	sort.Slice(rv, func(i, j int) bool {
		return rv[i].Name < rv[j].Name
	})

	return rv
}

// Shutdown releases a worker pool. Resolver cannot be used after that.
func (r *Resolver) Shutdown() {
	r.workerPool.Release()
}

func orderServices(services []WeightedService) []Service {
	ordered := make([]WeightedService, len(services))

	copy(ordered, services)

	sort.SliceStable(ordered, func(i, j int) bool {
		iCreds := hasCredentials(ordered[i].Service)
		jCreds := hasCredentials(ordered[j].Service)

		if iCreds != jCreds {
			return iCreds
		}

		return ordered[i].Weight > ordered[j].Weight
	})

	rv := make([]Service, len(ordered))

	for i, v := range ordered {
		rv[i] = v.Service
	}

	return rv
}

func hasCredentials(service Service) bool {
	if v, ok := service.(CredentialedService); ok {
		return v.HasCredentials()
	}

	return false
}

func NewResolver(opts ResolverOptions) (*Resolver, error) {
	if len(opts.Services) == 0 {
		return nil, fmt.Errorf("no services are given: %w", ErrInvalidOptions)
	}

	rv := &Resolver{
		logger:          opts.Logger,
		services:        orderServices(opts.Services),
		stats:           map[string]*UsageStats{},
		cache:           opts.Cache,
		totalTimeout:    opts.TotalTimeout,
		hedgeDelay:      opts.HedgeDelay,
		requestTimeout:  opts.RequestTimeout,
		minQualityScore: opts.MinQualityScore,
		timezone:        opts.Timezone,
		now:             opts.Now,
	}

	byName := map[string]Service{}

	for _, v := range rv.services {
		if v == nil {
			return nil, fmt.Errorf("nil service: %w", ErrInvalidOptions)
		}

		name := v.Name()
		if _, ok := byName[name]; ok {
			return nil, fmt.Errorf("service %s is duplicated: %w", name, ErrInvalidOptions)
		}

		byName[name] = v
		rv.stats[name] = &UsageStats{Name: name}
	}

	for _, name := range opts.Consensus {
		service, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("consensus service %s is unknown: %w", name, ErrInvalidOptions)
		}

		rv.consensus = append(rv.consensus, service)
	}

	if len(rv.consensus) == 0 {
		size := defaultConsensusSize
		if size > len(rv.services) {
			size = len(rv.services)
		}

		rv.consensus = rv.services[:size]
	}

	if rv.logger == nil {
		rv.logger = noopLogger{}
	}

	if rv.now == nil {
		rv.now = time.Now
	}

	if rv.cache == nil {
		rv.cache = NewResultCache(DefaultCacheWindow, rv.now)
	}

	if rv.totalTimeout <= 0 {
		rv.totalTimeout = DefaultTotalTimeout
	}

	if rv.hedgeDelay <= 0 {
		rv.hedgeDelay = DefaultHedgeDelay
	}

	if rv.requestTimeout <= 0 {
		rv.requestTimeout = DefaultRequestTimeout
	}

	if rv.minQualityScore <= 0 {
		rv.minQualityScore = DefaultMinQualityScore
	}

	if rv.timezone == "" {
		rv.timezone = LocalTimezone()
	}

	poolSize := opts.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = DefaultWorkerPoolSize
	}

	pool, err := ants.NewPoolWithFunc(poolSize, rv.runLookupTask,
		ants.WithExpiryDuration(workerPoolExpireTime))
	if err != nil {
		return nil, fmt.Errorf("cannot create a worker pool: %w", err)
	}

	rv.workerPool = pool

	return rv, nil
}
