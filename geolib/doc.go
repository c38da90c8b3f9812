// This package provides an engine which determines approximate location
// of visitors and turns them into markers on some render surface.
//
// geolib is core of the visitormap project. The rest of the application
// is an example of how to use this library: how to implement services,
// how to log, how to expose the engine over HTTP.
//
// Engine is a main entity of the geolib. It owns a resolver which races
// unreliable lookup services, a result cache, a retention store which
// counts every visitor once per day, a bounded collection of markers
// and a scheduler which decides when own location has to be refreshed.
//
// Engine never fails because of services: if nothing can be resolved,
// nothing is drawn.
package geolib
