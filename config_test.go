package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func (suite *ConfigTestSuite) TestOk() {
	text := `{
  # hjson allows comments
  listen: "0.0.0.0:9000"
  root_directory: "/var/lib/visitormap"
  worker_pool_size: 32
  basic_auth: {
    user: "admin"
    password: "secret"
  }
  max_markers: 50
  max_visited: 500
  retention_days: 7
  dedup_cooldown: "6h"
  cache_window: "5m"
  total_timeout: "3s"
  hedge_delay: "200ms"
  request_timeout: "2s"
  min_quality_score: 7
  rate_limit: "1m"
  debounce: "2s"
  refresh_every: "1h"
  enable_anonymization: false
  anonymization_salt: "pepper"
  timezone: "Europe/Berlin"
  consensus: ["ipinfo", "custom"]
  rehydrate_batch_size: 10
  rehydrate_batch_delay: "50ms"
  services: [
    {
      name: "ipinfo"
      weight: 10
      rate_limit_interval: "1s"
      rate_limit_burst: 3
      http_timeout: "4s"
      circuit_breaker_open_threshold: 2
      circuit_breaker_half_open_timeout: "10s"
      circuit_breaker_reset_failures_timeout: "5s"
      specific_parameters: {
        auth_token: "token"
      }
    }
    {
      name: "custom"
    }
  ]
}`

	conf, err := parseConfig(strings.NewReader(text))

	suite.NoError(err)
	suite.Equal("0.0.0.0:9000", conf.GetListen())
	suite.Equal(filepath.FromSlash("/var/lib/visitormap"), conf.GetRootDirectory())
	suite.Equal(32, conf.GetWorkerPoolSize())
	suite.True(conf.GetBasicAuth().Enabled())
	suite.Equal("admin", conf.GetBasicAuth().User)
	suite.Equal(50, conf.GetMaxMarkers())
	suite.Equal(500, conf.GetMaxVisited())
	suite.Equal(7*24*time.Hour, conf.GetRetention())
	suite.Equal(6*time.Hour, conf.GetDedupCooldown())
	suite.Equal(5*time.Minute, conf.GetCacheWindow())
	suite.Equal(3*time.Second, conf.GetTotalTimeout())
	suite.Equal(200*time.Millisecond, conf.GetHedgeDelay())
	suite.Equal(2*time.Second, conf.GetRequestTimeout())
	suite.Equal(7, conf.GetMinQualityScore())
	suite.Equal(time.Minute, conf.GetRateLimit())
	suite.Equal(2*time.Second, conf.GetDebounce())
	suite.Equal(time.Hour, conf.GetRefreshEvery())
	suite.False(conf.GetEnableAnonymization())
	suite.Equal("pepper", conf.GetAnonymizationSalt())
	suite.Equal("Europe/Berlin", conf.GetTimezone())
	suite.Equal([]string{"ipinfo", "custom"}, conf.GetConsensus())
	suite.Equal(10, conf.GetRehydrateBatchSize())
	suite.Equal(50*time.Millisecond, conf.GetRehydrateBatchDelay())

	suite.Len(conf.GetServices(), 2)

	service := conf.GetServices()[0]

	suite.Equal("ipinfo", service.GetName())
	suite.Equal(10, service.GetWeight())
	suite.Equal(time.Second, service.GetRateLimitInterval())
	suite.Equal(3, service.GetRateLimitBurst())
	suite.Equal(4*time.Second, service.GetHTTPTimeout())
	suite.EqualValues(2, service.GetCircuitBreakerOpenThreshold())
	suite.Equal(10*time.Second, service.GetCircuitBreakerHalfOpenTimeout())
	suite.Equal(5*time.Second, service.GetCircuitBreakerResetFailuresTimeout())
	suite.Equal(map[string]string{"auth_token": "token"}, service.GetSpecificParameters())
}

func (suite *ConfigTestSuite) TestDefaults() {
	conf, err := parseConfig(strings.NewReader(`{services: [{name: "ipinfo"}]}`))

	suite.NoError(err)
	suite.Equal(DefaultListen, conf.GetListen())
	suite.True(filepath.IsAbs(conf.GetRootDirectory()))
	suite.Equal(0, conf.GetWorkerPoolSize())
	suite.False(conf.GetBasicAuth().Enabled())
	suite.Equal(geolib.DefaultMaxMarkers, conf.GetMaxMarkers())
	suite.Equal(geolib.DefaultMaxVisited, conf.GetMaxVisited())
	suite.Equal(geolib.DefaultRetention, conf.GetRetention())
	suite.Equal(time.Duration(0), conf.GetDedupCooldown())
	suite.Equal(geolib.DefaultCacheWindow, conf.GetCacheWindow())
	suite.Equal(geolib.DefaultTotalTimeout, conf.GetTotalTimeout())
	suite.Equal(geolib.DefaultHedgeDelay, conf.GetHedgeDelay())
	suite.Equal(geolib.DefaultRequestTimeout, conf.GetRequestTimeout())
	suite.Equal(geolib.DefaultMinQualityScore, conf.GetMinQualityScore())
	suite.Equal(geolib.DefaultRateLimit, conf.GetRateLimit())
	suite.Equal(geolib.DefaultDebounce, conf.GetDebounce())
	suite.Equal(time.Duration(0), conf.GetRefreshEvery())
	suite.True(conf.GetEnableAnonymization())
	suite.Empty(conf.GetTimezone())
	suite.Empty(conf.GetConsensus())
	suite.Equal(geolib.DefaultRehydrateBatchSize, conf.GetRehydrateBatchSize())
	suite.Equal(geolib.DefaultRehydrateBatchDelay, conf.GetRehydrateBatchDelay())

	service := conf.GetServices()[0]

	suite.Equal(0, service.GetWeight())
	suite.Equal(DefaultRateLimitInterval, service.GetRateLimitInterval())
	suite.Equal(DefaultRateLimitBurst, service.GetRateLimitBurst())
	suite.Equal(DefaultHTTPTimeout, service.GetHTTPTimeout())
	suite.EqualValues(DefaultCircuitBreakerOpenThreshold, service.GetCircuitBreakerOpenThreshold())
	suite.Equal(DefaultCircuitBreakerHalfOpenTimeout, service.GetCircuitBreakerHalfOpenTimeout())
	suite.Equal(DefaultCircuitBreakerResetFailuresTimeout, service.GetCircuitBreakerResetFailuresTimeout())
	suite.NotNil(service.GetSpecificParameters())
	suite.Empty(service.GetSpecificParameters())
}

func (suite *ConfigTestSuite) TestIncorrect() {
	testData := map[string]string{
		"not a json":             `{services: [`,
		"incorrect listen":       `{listen: "localhost", services: [{name: "ipinfo"}]}`,
		"too high quality":       `{min_quality_score: 9, services: [{name: "ipinfo"}]}`,
		"unknown timezone":       `{timezone: "Mars/Olympus", services: [{name: "ipinfo"}]}`,
		"no services":            `{listen: "127.0.0.1:8000"}`,
		"empty service name":     `{services: [{weight: 1}]}`,
		"duplicated service":     `{services: [{name: "ipinfo"}, {name: "ipinfo"}]}`,
		"unknown consensus":      `{consensus: ["ipstack"], services: [{name: "ipinfo"}]}`,
		"negative duration":      `{hedge_delay: "-1s", services: [{name: "ipinfo"}]}`,
		"incorrect duration":     `{hedge_delay: "soon", services: [{name: "ipinfo"}]}`,
		"non-string duration":    `{hedge_delay: 10, services: [{name: "ipinfo"}]}`,
		"incorrect service type": `{services: {name: "ipinfo"}}`,
	}

	for k, v := range testData {
		value := v

		suite.Run(k, func() {
			_, err := parseConfig(strings.NewReader(value))

			suite.Error(err)
		})
	}
}

func TestConfig(t *testing.T) {
	suite.Run(t, &ConfigTestSuite{})
}
