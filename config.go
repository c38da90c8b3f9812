package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/hjson/hjson-go"
)

const (
	DefaultListen                             = "127.0.0.1:8080"
	DefaultHTTPTimeout                        = 10 * time.Second
	DefaultRateLimitInterval                  = 100 * time.Millisecond
	DefaultRateLimitBurst                     = 10
	DefaultCircuitBreakerOpenThreshold        = 5
	DefaultCircuitBreakerHalfOpenTimeout      = time.Minute
	DefaultCircuitBreakerResetFailuresTimeout = 20 * time.Second
)

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v interface{}

	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("cannot unmarshal duration: %w", err)
	}

	vv, ok := v.(string)
	if !ok {
		return fmt.Errorf("incorrect duration: %v", v)
	}

	dur, err := time.ParseDuration(vv)
	if err != nil {
		return fmt.Errorf("cannot parse duration: %w", err)
	}

	if dur < 0 {
		return fmt.Errorf("duration should be non-negative: %s", vv)
	}

	d.Duration = dur

	return nil
}

type configBasicAuth struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

func (c configBasicAuth) Enabled() bool {
	return c.User != "" || c.Password != ""
}

type config struct {
	Listen         string          `json:"listen"`
	RootDirectory  string          `json:"root_directory"`
	WorkerPoolSize uint            `json:"worker_pool_size"`
	BasicAuth      configBasicAuth `json:"basic_auth"`

	MaxMarkers          uint     `json:"max_markers"`
	MaxVisited          uint     `json:"max_visited"`
	RetentionDays       uint     `json:"retention_days"`
	DedupCooldown       duration `json:"dedup_cooldown"`
	CacheWindow         duration `json:"cache_window"`
	TotalTimeout        duration `json:"total_timeout"`
	HedgeDelay          duration `json:"hedge_delay"`
	RequestTimeout      duration `json:"request_timeout"`
	MinQualityScore     uint     `json:"min_quality_score"`
	RateLimit           duration `json:"rate_limit"`
	Debounce            duration `json:"debounce"`
	RefreshEvery        duration `json:"refresh_every"`
	EnableAnonymization *bool    `json:"enable_anonymization"`
	AnonymizationSalt   string   `json:"anonymization_salt"`
	Timezone            string   `json:"timezone"`
	Consensus           []string `json:"consensus"`
	RehydrateBatchSize  uint     `json:"rehydrate_batch_size"`
	RehydrateBatchDelay duration `json:"rehydrate_batch_delay"`

	Services []configService `json:"services"`
}

func (c config) GetListen() string {
	if c.Listen != "" {
		return c.Listen
	}

	return DefaultListen
}

func (c config) GetRootDirectory() string {
	if c.RootDirectory != "" {
		return c.RootDirectory
	}

	return filepath.Join(os.TempDir(), "visitormap")
}

func (c config) GetWorkerPoolSize() int {
	return int(c.WorkerPoolSize)
}

func (c config) GetBasicAuth() configBasicAuth {
	return c.BasicAuth
}

func (c config) GetMaxMarkers() int {
	if c.MaxMarkers == 0 {
		return geolib.DefaultMaxMarkers
	}

	return int(c.MaxMarkers)
}

func (c config) GetMaxVisited() int {
	if c.MaxVisited == 0 {
		return geolib.DefaultMaxVisited
	}

	return int(c.MaxVisited)
}

func (c config) GetRetention() time.Duration {
	if c.RetentionDays == 0 {
		return geolib.DefaultRetention
	}

	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c config) GetDedupCooldown() time.Duration {
	return c.DedupCooldown.Duration
}

func (c config) GetCacheWindow() time.Duration {
	if c.CacheWindow.Duration == 0 {
		return geolib.DefaultCacheWindow
	}

	return c.CacheWindow.Duration
}

func (c config) GetTotalTimeout() time.Duration {
	if c.TotalTimeout.Duration == 0 {
		return geolib.DefaultTotalTimeout
	}

	return c.TotalTimeout.Duration
}

func (c config) GetHedgeDelay() time.Duration {
	if c.HedgeDelay.Duration == 0 {
		return geolib.DefaultHedgeDelay
	}

	return c.HedgeDelay.Duration
}

func (c config) GetRequestTimeout() time.Duration {
	if c.RequestTimeout.Duration == 0 {
		return geolib.DefaultRequestTimeout
	}

	return c.RequestTimeout.Duration
}

func (c config) GetMinQualityScore() int {
	if c.MinQualityScore == 0 {
		return geolib.DefaultMinQualityScore
	}

	return int(c.MinQualityScore)
}

func (c config) GetRateLimit() time.Duration {
	if c.RateLimit.Duration == 0 {
		return geolib.DefaultRateLimit
	}

	return c.RateLimit.Duration
}

func (c config) GetDebounce() time.Duration {
	if c.Debounce.Duration == 0 {
		return geolib.DefaultDebounce
	}

	return c.Debounce.Duration
}

func (c config) GetRefreshEvery() time.Duration {
	return c.RefreshEvery.Duration
}

func (c config) GetEnableAnonymization() bool {
	if c.EnableAnonymization == nil {
		return true
	}

	return *c.EnableAnonymization
}

func (c config) GetAnonymizationSalt() string {
	return c.AnonymizationSalt
}

func (c config) GetTimezone() string {
	return c.Timezone
}

func (c config) GetConsensus() []string {
	return c.Consensus
}

func (c config) GetRehydrateBatchSize() int {
	if c.RehydrateBatchSize == 0 {
		return geolib.DefaultRehydrateBatchSize
	}

	return int(c.RehydrateBatchSize)
}

func (c config) GetRehydrateBatchDelay() time.Duration {
	if c.RehydrateBatchDelay.Duration == 0 {
		return geolib.DefaultRehydrateBatchDelay
	}

	return c.RehydrateBatchDelay.Duration
}

func (c config) GetServices() []configService {
	return c.Services
}

type configService struct {
	Name                               string            `json:"name"`
	Weight                             int               `json:"weight"`
	RateLimitInterval                  duration          `json:"rate_limit_interval"`
	RateLimitBurst                     uint              `json:"rate_limit_burst"`
	HTTPTimeout                        duration          `json:"http_timeout"`
	CircuitBreakerOpenThreshold        uint32            `json:"circuit_breaker_open_threshold"`
	CircuitBreakerHalfOpenTimeout      duration          `json:"circuit_breaker_half_open_timeout"`
	CircuitBreakerResetFailuresTimeout duration          `json:"circuit_breaker_reset_failures_timeout"`
	SpecificParameters                 map[string]string `json:"specific_parameters"`
}

func (c configService) GetName() string {
	return c.Name
}

func (c configService) GetWeight() int {
	return c.Weight
}

func (c configService) GetRateLimitInterval() time.Duration {
	if c.RateLimitInterval.Duration == 0 {
		return DefaultRateLimitInterval
	}

	return c.RateLimitInterval.Duration
}

func (c configService) GetRateLimitBurst() int {
	if c.RateLimitBurst == 0 {
		return DefaultRateLimitBurst
	}

	return int(c.RateLimitBurst)
}

func (c configService) GetHTTPTimeout() time.Duration {
	if c.HTTPTimeout.Duration == 0 {
		return DefaultHTTPTimeout
	}

	return c.HTTPTimeout.Duration
}

func (c configService) GetCircuitBreakerOpenThreshold() uint32 {
	if c.CircuitBreakerOpenThreshold == 0 {
		return DefaultCircuitBreakerOpenThreshold
	}

	return c.CircuitBreakerOpenThreshold
}

func (c configService) GetCircuitBreakerHalfOpenTimeout() time.Duration {
	if c.CircuitBreakerHalfOpenTimeout.Duration == 0 {
		return DefaultCircuitBreakerHalfOpenTimeout
	}

	return c.CircuitBreakerHalfOpenTimeout.Duration
}

func (c configService) GetCircuitBreakerResetFailuresTimeout() time.Duration {
	if c.CircuitBreakerResetFailuresTimeout.Duration == 0 {
		return DefaultCircuitBreakerResetFailuresTimeout
	}

	return c.CircuitBreakerResetFailuresTimeout.Duration
}

func (c configService) GetSpecificParameters() map[string]string {
	if c.SpecificParameters == nil {
		return map[string]string{}
	}

	return c.SpecificParameters
}

func parseConfig(reader io.Reader) (*config, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	conf := config{}
	rawMap := map[string]interface{}{}

	if err := hjson.Unmarshal(content, &rawMap); err != nil {
		return nil, fmt.Errorf("cannot parse json: %w", err)
	}

	rawBytes, err := json.Marshal(rawMap)
	if err != nil {
		return nil, fmt.Errorf("cannot normalize config: %w", err)
	}

	if err := json.Unmarshal(rawBytes, &conf); err != nil {
		return nil, fmt.Errorf("incorrect config: %w", err)
	}

	if _, _, err := net.SplitHostPort(conf.GetListen()); err != nil {
		return nil, fmt.Errorf("incorrect host:port for listen: %w", err)
	}

	conf.RootDirectory, err = filepath.Abs(conf.GetRootDirectory())
	if err != nil {
		return nil, fmt.Errorf("incorrect root directory: %w", err)
	}

	if conf.GetMinQualityScore() > geolib.MaxQualityScore {
		return nil, fmt.Errorf("min_quality_score should be at most %d", geolib.MaxQualityScore)
	}

	if conf.Timezone != "" {
		if _, err := time.LoadLocation(conf.Timezone); err != nil {
			return nil, fmt.Errorf("incorrect timezone: %w", err)
		}
	}

	if len(conf.Services) == 0 {
		return nil, fmt.Errorf("at least one service has to be configured")
	}

	seenServiceNames := map[string]struct{}{}

	for _, v := range conf.Services {
		if v.GetName() == "" {
			return nil, fmt.Errorf("service name is required")
		}

		if _, ok := seenServiceNames[v.GetName()]; ok {
			return nil, fmt.Errorf("name %s is duplicated", v.GetName())
		}

		seenServiceNames[v.GetName()] = struct{}{}
	}

	for _, v := range conf.Consensus {
		if _, ok := seenServiceNames[v]; !ok {
			return nil, fmt.Errorf("consensus service %s is not configured", v)
		}
	}

	return &conf, nil
}
