package services

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/9seconds/visitormap/geolib"
	"github.com/oschwald/geoip2-golang"
)

// maxmind is an offline service which uses GeoLite2/GeoIP2 City
// database. It knows nothing about own address.
type maxmind struct {
	dbReader     *geoip2.Reader
	dbReaderLock sync.RWMutex
}

func (m *maxmind) Name() string {
	return NameMaxMind
}

// HasCredentials is always true: a license is required to get a
// database file.
func (m *maxmind) HasCredentials() bool {
	return true
}

func (m *maxmind) Lookup(ctx context.Context, ip net.IP) (geolib.ServiceLookupResult, error) {
	m.dbReaderLock.RLock()
	defer m.dbReaderLock.RUnlock()

	rv := geolib.ServiceLookupResult{}

	switch {
	case ip == nil:
		return rv, ErrOwnAddressIsNotSupported
	case m.dbReader == nil:
		return rv, ErrDatabaseIsNotReadyYet
	}

	if err := ctx.Err(); err != nil {
		return rv, err
	}

	record, err := m.dbReader.City(ip)
	if err != nil {
		return rv, fmt.Errorf("cannot lookup this ip address: %w", err)
	}

	rv.Identity = ip.String()
	rv.Country = strings.ToUpper(record.Country.IsoCode)
	rv.City = record.City.Names["en"]
	rv.Timezone = record.Location.TimeZone
	rv.Accuracy = float64(record.Location.AccuracyRadius)

	if len(record.Subdivisions) > 0 {
		rv.Region = record.Subdivisions[0].Names["en"]
	}

	// an empty record has zero coordinates which is a valid point in
	// the ocean.
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		rv.Location = &geolib.Coordinates{
			Latitude:  record.Location.Latitude,
			Longitude: record.Location.Longitude,
		}
	}

	return rv, nil
}

func (m *maxmind) Shutdown() {
	m.dbReaderLock.Lock()
	defer m.dbReaderLock.Unlock()

	if m.dbReader != nil {
		m.dbReader.Close()
		m.dbReader = nil
	}
}

// NewMaxMind opens a database from path parameter.
func NewMaxMind(parameters map[string]string) (geolib.Service, error) {
	path := parameters["path"]
	if path == "" {
		return nil, fmt.Errorf("path: %w", ErrParameterIsRequired)
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open maxmind database: %w", err)
	}

	return &maxmind{
		dbReader: reader,
	}, nil
}
