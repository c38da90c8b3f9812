package geolib

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type circuitBreakerCallback func(context.Context) (*http.Response, error)

const (
	circuitBreakerStateClosed uint32 = iota
	circuitBreakerStateHalfOpened
	circuitBreakerStateOpened
)

// circuitBreaker protects a lookup service from being hammered when it
// is obviously down. Slow and failing services are common, the hedge
// race does not need to wait for a request which is going to fail
// anyway.
type circuitBreaker struct {
	state uint32
	mutex sync.Mutex

	halfOpenTimer        *time.Timer
	failuresCleanupTimer *time.Timer

	halfOpenAttempts uint32
	failuresCount    uint32

	openThreshold        uint32
	halfOpenTimeout      time.Duration
	resetFailuresTimeout time.Duration
}

func (c *circuitBreaker) Do(ctx context.Context, callback circuitBreakerCallback) (*http.Response, error) {
	switch atomic.LoadUint32(&c.state) {
	case circuitBreakerStateClosed:
		return c.doClosed(ctx, callback)
	case circuitBreakerStateHalfOpened:
		return c.doHalfOpened(ctx, callback)
	default:
		return nil, ErrCircuitBreakerOpened
	}
}

func (c *circuitBreaker) doClosed(ctx context.Context, callback circuitBreakerCallback) (*http.Response, error) {
	resp, err := callback(ctx)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch {
	case err == nil:
		c.switchState(circuitBreakerStateClosed)
	case errors.Is(err, ErrCircuitBreakerIgnore), ctx.Err() != nil:
		// cancelled lookups are losers of the race, not failures
	default:
		c.failuresCount++

		if c.state == circuitBreakerStateClosed && c.failuresCount > c.openThreshold {
			c.switchState(circuitBreakerStateOpened)
		}
	}

	return resp, err
}

func (c *circuitBreaker) doHalfOpened(ctx context.Context, callback circuitBreakerCallback) (*http.Response, error) {
	if !atomic.CompareAndSwapUint32(&c.halfOpenAttempts, 0, 1) {
		return nil, ErrCircuitBreakerOpened
	}

	resp, err := callback(ctx)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.state != circuitBreakerStateHalfOpened {
		return resp, err
	}

	switch {
	case err == nil:
		c.switchState(circuitBreakerStateClosed)
	case errors.Is(err, ErrCircuitBreakerIgnore), ctx.Err() != nil:
		atomic.StoreUint32(&c.halfOpenAttempts, 0)
	default:
		c.switchState(circuitBreakerStateOpened)
	}

	return resp, err
}

func (c *circuitBreaker) switchState(state uint32) {
	switch state {
	case circuitBreakerStateClosed:
		c.stopTimer(&c.halfOpenTimer)
		c.ensureTimer(&c.failuresCleanupTimer, c.resetFailuresTimeout, c.resetFailures)
	case circuitBreakerStateHalfOpened:
		c.stopTimer(&c.failuresCleanupTimer)
		c.stopTimer(&c.halfOpenTimer)
	case circuitBreakerStateOpened:
		c.stopTimer(&c.failuresCleanupTimer)
		c.ensureTimer(&c.halfOpenTimer, c.halfOpenTimeout, c.tryHalfOpen)
	}

	c.failuresCount = 0

	atomic.StoreUint32(&c.halfOpenAttempts, 0)
	atomic.StoreUint32(&c.state, state)
}

func (c *circuitBreaker) resetFailures() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stopTimer(&c.failuresCleanupTimer)

	if c.state == circuitBreakerStateClosed {
		c.switchState(circuitBreakerStateClosed)
	}
}

func (c *circuitBreaker) tryHalfOpen() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stopTimer(&c.halfOpenTimer)

	if c.state == circuitBreakerStateOpened {
		c.switchState(circuitBreakerStateHalfOpened)
	}
}

func (c *circuitBreaker) stopTimer(timerRef **time.Timer) {
	if timer := *timerRef; timer != nil {
		timer.Stop()
		*timerRef = nil
	}
}

func (c *circuitBreaker) ensureTimer(timerRef **time.Timer, timeout time.Duration, callback func()) {
	if *timerRef == nil {
		*timerRef = time.AfterFunc(timeout, callback)
	}
}

func (c *circuitBreaker) shutdown() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stopTimer(&c.failuresCleanupTimer)
	c.stopTimer(&c.halfOpenTimer)
}

func newCircuitBreaker(openThreshold uint32,
	halfOpenTimeout, resetFailuresTimeout time.Duration) *circuitBreaker {
	cb := &circuitBreaker{
		openThreshold:        openThreshold,
		halfOpenTimeout:      halfOpenTimeout,
		resetFailuresTimeout: resetFailuresTimeout,
	}

	cb.switchState(circuitBreakerStateClosed)

	return cb
}
