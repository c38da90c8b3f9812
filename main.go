package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/rs/zerolog"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

const (
	serverReadHeaderTimeout = 10 * time.Second
	serverShutdownTimeout   = 5 * time.Second
)

var version = "dev"

var (
	app = kingpin.New(
		"visitormap",
		"Shows where visitors come from")

	debug = app.Flag("debug", "Run in debug mode.").
		Short('d').
		Envar("VISITORMAP_DEBUG").
		Bool()

	serveCommand = app.Command("serve", "Run HTTP server.").Default()
	serveConfig  = serveCommand.Arg("config-path", "Path to the config.").
			Required().
			File()

	resolveCommand = app.Command("resolve", "Resolve a single address and exit.")
	resolveConfig  = resolveCommand.Arg("config-path", "Path to the config.").
			Required().
			File()
	resolveIP = resolveCommand.Arg("ip", "IP address. Own address is resolved if omitted.").
			IP()
)

func main() {
	app.Version(version)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error

	switch command {
	case serveCommand.FullCommand():
		err = runServe(*serveConfig)
	case resolveCommand.FullCommand():
		err = runResolve(*resolveConfig, *resolveIP)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runServe(configFile *os.File) error {
	conf, err := parseConfig(configFile)

	configFile.Close()

	if err != nil {
		return fmt.Errorf("cannot parse config: %w", err)
	}

	storage, err := makeStorage(conf)
	if err != nil {
		return fmt.Errorf("cannot initialize storage: %w", err)
	}

	weighted, err := makeServices(conf)
	if err != nil {
		return fmt.Errorf("cannot initialize services: %w", err)
	}

	defer shutdownServices(weighted)

	engine, err := geolib.NewEngine(makeEngineOptions(conf,
		weighted,
		storage,
		newLogSurface(makeSurfaceLog()),
		newLogger(os.Stderr, *debug)))
	if err != nil {
		return fmt.Errorf("cannot initialize engine: %w", err)
	}

	defer engine.Shutdown()

	ctx, cancel := makeRootContext()
	defer cancel()

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("cannot run engine: %w", err)
	}

	server := &http.Server{
		Addr:              conf.GetListen(),
		Handler:           newBasicAuthMiddleware(geolib.NewHTTPHandler(engine), conf.GetBasicAuth()),
		ReadHeaderTimeout: serverReadHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer shutdownCancel()

		server.Shutdown(shutdownCtx) // nolint: errcheck
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server has failed: %w", err)
	}

	return nil
}

func runResolve(configFile *os.File, ip net.IP) error {
	conf, err := parseConfig(configFile)

	configFile.Close()

	if err != nil {
		return fmt.Errorf("cannot parse config: %w", err)
	}

	weighted, err := makeServices(conf)
	if err != nil {
		return fmt.Errorf("cannot initialize services: %w", err)
	}

	defer shutdownServices(weighted)

	// one-shot resolution should not affect a state of the daemon
	engine, err := geolib.NewEngine(makeEngineOptions(conf,
		weighted,
		geolib.NewMemoryStorage(),
		nil,
		newLogger(os.Stderr, *debug)))
	if err != nil {
		return fmt.Errorf("cannot initialize engine: %w", err)
	}

	defer engine.Shutdown()

	ctx, cancel := makeRootContext()
	defer cancel()

	var record *geolib.LocationRecord

	if ip == nil {
		record, _ = engine.ResolveOwn(ctx)
	} else {
		record, _ = engine.Visit(ctx, ip)
	}

	if record == nil {
		return errors.New("cannot resolve location")
	}

	encoder := json.NewEncoder(os.Stdout)

	encoder.SetIndent("", "  ")

	return encoder.Encode(record)
}

func makeSurfaceLog() zerolog.Logger {
	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
