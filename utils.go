package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"

	"github.com/9seconds/visitormap/geolib"
	"github.com/9seconds/visitormap/services"
	"github.com/spf13/afero"
)

type shutdowner interface {
	Shutdown()
}

func makeRootContext() (context.Context, context.CancelFunc) {
	rootCtx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)

	go func() {
		for range sigChan {
			cancel()
		}
	}()

	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	return rootCtx, cancel
}

func makeServices(conf *config) ([]geolib.WeightedService, error) {
	rv := make([]geolib.WeightedService, 0, len(conf.GetServices()))

	for _, v := range conf.GetServices() {
		service, err := makeService(v)
		if err != nil {
			shutdownServices(rv)

			return nil, fmt.Errorf("cannot create %s service: %w", v.GetName(), err)
		}

		rv = append(rv, geolib.WeightedService{
			Service: service,
			Weight:  v.GetWeight(),
		})
	}

	return rv, nil
}

func makeService(conf configService) (geolib.Service, error) {
	params := conf.GetSpecificParameters()

	switch conf.GetName() {
	case services.NameIPInfo:
		return services.NewIPInfo(makeNewHTTPClient(conf), params), nil
	case services.NameIPAPICo:
		return services.NewIPAPICo(makeNewHTTPClient(conf), params), nil
	case services.NameIPWhoIs:
		return services.NewIPWhoIs(makeNewHTTPClient(conf), params), nil
	case services.NameIPAPICom:
		return services.NewIPAPICom(makeNewHTTPClient(conf), params), nil
	case services.NameFreeIPAPI:
		return services.NewFreeIPAPI(makeNewHTTPClient(conf), params), nil
	case services.NameKeyCDN:
		return services.NewKeyCDN(makeNewHTTPClient(conf), params), nil
	case services.NameIPStack:
		return services.NewIPStack(makeNewHTTPClient(conf), params)
	case services.NameMaxMind:
		return services.NewMaxMind(params)
	case services.NameIP2Location:
		return services.NewIP2Location(params)
	case services.NameSypex:
		return services.NewSypex(params)
	}

	return services.NewGeneric(conf.GetName(), makeNewHTTPClient(conf), params)
}

func shutdownServices(weighted []geolib.WeightedService) {
	for _, v := range weighted {
		if service, ok := v.Service.(shutdowner); ok {
			service.Shutdown()
		}
	}
}

func makeNewHTTPClient(conf configService) geolib.HTTPClient {
	jar, err := cookiejar.New(nil)
	if err != nil {
		panic(err)
	}

	httpClient := &http.Client{
		Timeout: conf.GetHTTPTimeout(),
		Jar:     jar,
	}

	return geolib.NewHTTPClient(httpClient,
		"visitormap/"+version,
		conf.GetRateLimitInterval(),
		conf.GetRateLimitBurst(),
		conf.GetCircuitBreakerOpenThreshold(),
		conf.GetCircuitBreakerHalfOpenTimeout(),
		conf.GetCircuitBreakerResetFailuresTimeout())
}

func makeStorage(conf *config) (geolib.Storage, error) {
	if err := os.MkdirAll(conf.GetRootDirectory(), 0o750); err != nil {
		return nil, fmt.Errorf("cannot create root directory: %w", err)
	}

	return geolib.NewFsStorage(afero.NewOsFs(), conf.GetRootDirectory())
}

func makeEngineOptions(conf *config,
	weighted []geolib.WeightedService,
	storage geolib.Storage,
	surface geolib.RenderSurface,
	logger geolib.Logger) geolib.Options {
	return geolib.Options{
		Services:             weighted,
		Consensus:            conf.GetConsensus(),
		MaxMarkers:           conf.GetMaxMarkers(),
		MaxVisited:           conf.GetMaxVisited(),
		Retention:            conf.GetRetention(),
		DedupCooldown:        conf.GetDedupCooldown(),
		CacheWindow:          conf.GetCacheWindow(),
		TotalTimeout:         conf.GetTotalTimeout(),
		HedgeDelay:           conf.GetHedgeDelay(),
		RequestTimeout:       conf.GetRequestTimeout(),
		MinQualityScore:      conf.GetMinQualityScore(),
		WorkerPoolSize:       conf.GetWorkerPoolSize(),
		Timezone:             conf.GetTimezone(),
		RateLimit:            conf.GetRateLimit(),
		Debounce:             conf.GetDebounce(),
		RefreshEvery:         conf.GetRefreshEvery(),
		DisableAnonymization: !conf.GetEnableAnonymization(),
		AnonymizationSalt:    conf.GetAnonymizationSalt(),
		RehydrateBatchSize:   conf.GetRehydrateBatchSize(),
		RehydrateBatchDelay:  conf.GetRehydrateBatchDelay(),
		Storage:              storage,
		Surface:              surface,
		Logger:               logger,
	}
}
