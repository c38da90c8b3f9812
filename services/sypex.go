package services

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/9seconds/visitormap/geolib"
	sypex "gopkg.in/night-codes/go-sypexgeo.v1"
)

// sypexService is an offline service which uses SxGeo City databases. These
// databases are free and have a good coverage of ex-USSR countries.
type sypexService struct {
	db     *sypex.SxGEO
	dbLock sync.RWMutex
}

func (s *sypexService) Name() string {
	return NameSypex
}

func (s *sypexService) Lookup(ctx context.Context, ip net.IP) (geolib.ServiceLookupResult, error) {
	s.dbLock.RLock()
	defer s.dbLock.RUnlock()

	rv := geolib.ServiceLookupResult{}

	switch {
	case ip == nil:
		return rv, ErrOwnAddressIsNotSupported
	case ip.To4() == nil:
		return rv, ErrIPIsNotSupported
	case s.db == nil:
		return rv, ErrDatabaseIsNotReadyYet
	}

	if err := ctx.Err(); err != nil {
		return rv, err
	}

	info, err := s.db.GetCityFull(ip.String())
	if err != nil {
		return rv, fmt.Errorf("cannot lookup this ip address: %w", err)
	}

	city := sypexSection(info, "city")
	rv.Identity = ip.String()
	rv.City = sypexString(city, "name_en")
	rv.Region = sypexString(sypexSection(info, "region"), "name_en")
	rv.Country = strings.ToUpper(sypexString(sypexSection(info, "country"), "iso"))

	latitude, latOk := sypexFloat(city, "lat")
	longitude, lonOk := sypexFloat(city, "lon")

	if latOk && lonOk && (latitude != 0 || longitude != 0) {
		rv.Location = &geolib.Coordinates{
			Latitude:  latitude,
			Longitude: longitude,
		}
	}

	return rv, nil
}

func (s *sypexService) Shutdown() {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	s.db = nil
}

func sypexSection(info map[string]interface{}, name string) map[string]interface{} {
	if section, ok := info[name].(map[string]interface{}); ok {
		return section
	}

	return nil
}

func sypexString(section map[string]interface{}, name string) string {
	if value, ok := section[name].(string); ok {
		return strings.TrimSpace(value)
	}

	return ""
}

func sypexFloat(section map[string]interface{}, name string) (float64, bool) {
	switch value := section[name].(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case uint32:
		return float64(value), true
	}

	return 0, false
}

// NewSypex opens a database from path parameter.
func NewSypex(parameters map[string]string) (service geolib.Service, err error) {
	path := parameters["path"]
	if path == "" {
		return nil, fmt.Errorf("path: %w", ErrParameterIsRequired)
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open sypex database: %w", err)
	}

	// reader panics if database is broken.
	defer func() {
		if rec := recover(); rec != nil {
			service = nil
			err = fmt.Errorf("cannot open sypex database: %v", rec)
		}
	}()

	db := sypex.New(path)

	return &sypexService{
		db: &db,
	}, nil
}
