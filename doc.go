// Visitormap is a service which shows on a map where visitors come from.
//
// Idea is simple: a visitor comes, we ask a couple of geolocation
// services where this IP address is, and put a marker. Services are
// unreliable and rate limited, so they are raced: the first good answer
// wins.
//
// Tool itself is organized into 3 logical parts:
//
// Geolib
//
// geolib is a main package of the application which contains Engine
// and main logic: resolution, deduplication, markers, scheduling. It
// has its own API and can act as http.Handler.
//
// Services
//
// This package has a set of service implementations which cover most
// of the free geolocation APIs and an offline MaxMind database.
//
// Visitormap
//
// A main package itself is an example of how to wire both geolib and
// services. Resulting binary either starts http server or resolves a
// single address and exits.
package main
