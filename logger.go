package main

import (
	"io"
	"net"

	"github.com/9seconds/visitormap/geolib"
	"github.com/rs/zerolog"
)

type logger struct {
	lookupLog  zerolog.Logger
	resolveLog zerolog.Logger
	storageLog zerolog.Logger
	triggerLog zerolog.Logger
}

func (l *logger) LookupError(ip net.IP, name string, err error) {
	event := l.lookupLog.Debug().Str("service", name).Err(err)

	if ip != nil {
		event = event.Stringer("ip", ip)
	}

	event.Msg("")
}

func (l *logger) ResolveInfo(record *geolib.LocationRecord, msg string) {
	event := l.resolveLog.Info()

	if record != nil {
		event = event.Str("source", record.Source).
			Str("country", record.Country).
			Str("city", record.City).
			Int("quality_score", record.QualityScore)

		if record.HasLocation() {
			event = event.Stringer("location", record.Location)
		}
	}

	event.Msg(msg)
}

func (l *logger) StorageError(key string, err error) {
	l.storageLog.Warn().Str("key", key).Err(err).Msg("")
}

func (l *logger) TriggerInfo(trigger geolib.Trigger, msg string) {
	l.triggerLog.Debug().Stringer("trigger", trigger).Msg(msg)
}

func newLogger(writer io.Writer, debug bool) geolib.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	makeLog := func(eventName string) zerolog.Logger {
		return zerolog.New(writer).
			Level(level).
			With().
			Timestamp().
			Str("event_name", eventName).
			Logger()
	}

	return &logger{
		lookupLog:  makeLog("lookup"),
		resolveLog: makeLog("resolve"),
		storageLog: makeLog("storage"),
		triggerLog: makeLog("trigger"),
	}
}
