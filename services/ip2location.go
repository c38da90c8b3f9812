package services

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/9seconds/visitormap/geolib"
	ip2location "github.com/ip2location/ip2location-go"
)

const (
	ip2locationInvalidDatabase = "Invalid database file."
	ip2locationUnavailable     = "This parameter is unavailable"
)

// ip2location reader keeps an opened database in a package state, so
// only one database may be opened per process.
var (
	ip2locationLock   sync.Mutex
	ip2locationOpened bool
)

// ip2locationService is an offline service which uses IP2Location BIN
// databases (DB1-DB5, LITE or commercial). It knows nothing about own
// address.
type ip2locationService struct {
	closeOnce sync.Once
}

func (i *ip2locationService) Name() string {
	return NameIP2Location
}

// HasCredentials is always true: a download token is required to get
// a database file.
func (i *ip2locationService) HasCredentials() bool {
	return true
}

func (i *ip2locationService) Lookup(ctx context.Context, ip net.IP) (geolib.ServiceLookupResult, error) {
	rv := geolib.ServiceLookupResult{}

	if ip == nil {
		return rv, ErrOwnAddressIsNotSupported
	}

	if err := ctx.Err(); err != nil {
		return rv, err
	}

	ip2locationLock.Lock()

	if !ip2locationOpened {
		ip2locationLock.Unlock()

		return rv, ErrDatabaseIsNotReadyYet
	}

	record := ip2location.Get_all(ip.String())

	ip2locationLock.Unlock()

	if record.Country_short == ip2locationInvalidDatabase {
		return rv, ErrDatabaseIsNotReadyYet
	}

	if strings.HasPrefix(record.Country_short, "Invalid") {
		return rv, fmt.Errorf("%s: %w", record.Country_short, ErrServiceFailure)
	}

	rv.Identity = ip.String()
	rv.Country = ip2locationValue(record.Country_short)
	rv.Region = ip2locationValue(record.Region)
	rv.City = ip2locationValue(record.City)

	// LITE DB1 has no coordinates at all: zeroes are reported.
	if record.Latitude != 0 || record.Longitude != 0 {
		rv.Location = &geolib.Coordinates{
			Latitude:  float64(record.Latitude),
			Longitude: float64(record.Longitude),
		}
	}

	return rv, nil
}

func (i *ip2locationService) Shutdown() {
	i.closeOnce.Do(func() {
		ip2locationLock.Lock()
		defer ip2locationLock.Unlock()

		if ip2locationOpened {
			ip2location.Close()
			ip2locationOpened = false
		}
	})
}

func ip2locationValue(value string) string {
	value = strings.TrimSpace(value)

	if value == "-" || strings.HasPrefix(value, ip2locationUnavailable) {
		return ""
	}

	return value
}

// NewIP2Location opens a BIN database from path parameter.
func NewIP2Location(parameters map[string]string) (geolib.Service, error) {
	path := parameters["path"]
	if path == "" {
		return nil, fmt.Errorf("path: %w", ErrParameterIsRequired)
	}

	// reader swallows open errors and reports them on each lookup.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot open ip2location database: %w", err)
	}

	ip2locationLock.Lock()
	defer ip2locationLock.Unlock()

	if ip2locationOpened {
		return nil, ErrDatabaseIsAlreadyOpened
	}

	ip2location.Open(path)

	ip2locationOpened = true

	return &ip2locationService{}, nil
}
