package geolib

import (
	"context"
	"net"
	"net/http"
)

// Service is a single external geolocation lookup service. If ip is
// nil, a service has to resolve an address of the caller.
type Service interface {
	Name() string
	Lookup(ctx context.Context, ip net.IP) (ServiceLookupResult, error)
}

// CredentialedService is implemented by services which may work with
// an auth token. Services with available credentials are preferred by
// the resolver.
type CredentialedService interface {
	Service

	HasCredentials() bool
}

type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Storage is a durable keyed blob storage. Load has to return
// ErrStorageNoData if there is nothing stored by a given key.
type Storage interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
	Delete(key string) error
}

// RenderSurface is something that draws markers. Engine never cares
// how exactly this is done.
type RenderSurface interface {
	AddMarker(Marker)
	RemoveMarker(id string)
	Clear()
}

type Logger interface {
	LookupError(ip net.IP, name string, err error)
	ResolveInfo(record *LocationRecord, msg string)
	StorageError(key string, err error)
	TriggerInfo(trigger Trigger, msg string)
}
