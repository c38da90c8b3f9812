package geolib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type httpClient struct {
	userAgent      string
	client         *http.Client
	rateLimiter    *rate.Limiter
	circuitBreaker *circuitBreaker
}

func (h httpClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	return h.circuitBreaker.Do(req.Context(), func(ctx context.Context) (*http.Response, error) {
		// lookup services have quotas. If we have no budget to wait for
		// a token, service is not broken, we are just too greedy.
		if err := h.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %v: %w", err, ErrCircuitBreakerIgnore)
		}

		resp, err := h.client.Do(req.WithContext(ctx))
		if err != nil {
			if resp != nil {
				flushResponse(resp.Body)
			}

			return nil, err
		}

		if resp.StatusCode >= http.StatusBadRequest {
			flushResponse(resp.Body)

			return nil, fmt.Errorf("service has responded with %s", resp.Status)
		}

		return resp, nil
	})
}

func flushResponse(body io.ReadCloser) {
	io.Copy(io.Discard, body) // nolint: errcheck
	body.Close()
}

// NewHTTPClient prepares a new HTTP client for a lookup service, wraps
// it with rate limiter, circuit breaker, sets a user agent etc.
//
// Please see https://pkg.go.dev/golang.org/x/time/rate to get a meaning
// of rate limiter parameters.
//
// A meaning of circuit breaker parameters:
//
// circuitBreakerOpenThreshold - a threshold of failures when circuit
// breaker becomes OPEN. So, if you pass 3 here, then after 3 failures,
// circuit breaker switches into OPEN state and blocks access to a
// service. Cancelled requests are not failures: hedge race cancels
// losers all the time.
//
// circuitBreakerResetFailuresTimeout - each time period when circuit
// breaker is closed, we reset a failure counter.
//
// circuitBreakerHalfOpenTimeout - after this time period OPEN circuit
// breaker goes into HALF_OPEN state. Within this state we allow 1
// attempt. If this attempt fails, then it goes into OPEN state again.
// If succeed - goes to CLOSED.
func NewHTTPClient(client *http.Client,
	userAgent string,
	rateLimiterInterval time.Duration,
	rateLimitBurst int,
	circuitBreakerOpenThreshold uint32,
	circuitBreakerHalfOpenTimeout, circuitBreakerResetFailuresTimeout time.Duration) HTTPClient {
	return httpClient{
		userAgent:   userAgent,
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Every(rateLimiterInterval), rateLimitBurst),
		circuitBreaker: newCircuitBreaker(circuitBreakerOpenThreshold,
			circuitBreakerHalfOpenTimeout,
			circuitBreakerResetFailuresTimeout),
	}
}
