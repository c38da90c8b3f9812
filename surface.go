package main

import (
	"github.com/9seconds/visitormap/geolib"
	"github.com/rs/zerolog"
)

// logSurface is a render surface of the daemon. There is no map here:
// markers are consumed via HTTP API, so the surface only reports what
// would be drawn.
type logSurface struct {
	log zerolog.Logger
}

func (l logSurface) AddMarker(marker geolib.Marker) {
	event := l.log.Info().Str("id", marker.ID).Time("created_at", marker.CreatedAt)

	if marker.Record.HasLocation() {
		event = event.Str("country", marker.Record.Country).
			Str("city", marker.Record.City).
			Stringer("location", marker.Record.Location)
	}

	event.Msg("Marker is added")
}

func (l logSurface) RemoveMarker(id string) {
	l.log.Info().Str("id", id).Msg("Marker is removed")
}

func (l logSurface) Clear() {
	l.log.Info().Msg("Markers are cleared")
}

func newLogSurface(log zerolog.Logger) geolib.RenderSurface {
	return logSurface{
		log: log.With().Str("event_name", "surface").Logger(),
	}
}
