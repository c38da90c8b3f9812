package geolib_test

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/stretchr/testify/mock"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Lookup(ctx context.Context, ip net.IP) (geolib.ServiceLookupResult, error) {
	args := m.Called(ctx, ip)

	if fn, ok := args.Get(0).(func(context.Context, net.IP) (geolib.ServiceLookupResult, error)); ok {
		return fn(ctx, ip)
	}

	return args.Get(0).(geolib.ServiceLookupResult), args.Error(1)
}

func (m *ServiceMock) Name() string {
	return m.Called().String(0)
}

type CredentialedServiceMock struct {
	ServiceMock
}

func (m *CredentialedServiceMock) HasCredentials() bool {
	return m.Called().Bool(0)
}

type LoggerMock struct {
	mock.Mock
}

func (m *LoggerMock) LookupError(ip net.IP, name string, err error) {
	m.Called(ip, name, err)
}

func (m *LoggerMock) ResolveInfo(record *geolib.LocationRecord, msg string) {
	m.Called(record, msg)
}

func (m *LoggerMock) StorageError(key string, err error) {
	m.Called(key, err)
}

func (m *LoggerMock) TriggerInfo(trigger geolib.Trigger, msg string) {
	m.Called(trigger, msg)
}

func (m *LoggerMock) AllowAll() {
	m.On("LookupError", mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("ResolveInfo", mock.Anything, mock.Anything).Maybe()
	m.On("StorageError", mock.Anything, mock.Anything).Maybe()
	m.On("TriggerInfo", mock.Anything, mock.Anything).Maybe()
}

// SurfaceMock records calls of the render surface.
type SurfaceMock struct {
	mutex   sync.Mutex
	added   []geolib.Marker
	removed []string
	cleared int
}

func (s *SurfaceMock) AddMarker(marker geolib.Marker) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.added = append(s.added, marker)
}

func (s *SurfaceMock) RemoveMarker(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.removed = append(s.removed, id)
}

func (s *SurfaceMock) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cleared++
}

func (s *SurfaceMock) Added() []geolib.Marker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]geolib.Marker(nil), s.added...)
}

func (s *SurfaceMock) Removed() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]string(nil), s.removed...)
}

func (s *SurfaceMock) Cleared() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.cleared
}

type FakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (f *FakeClock) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.now
}

func (f *FakeClock) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.now = f.now.Add(d)
}

func NewFakeClock() *FakeClock {
	return &FakeClock{
		now: time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
}

func makeRecord(identity string, latitude, longitude float64) *geolib.LocationRecord {
	return &geolib.LocationRecord{
		Identity: identity,
		City:     "Berlin",
		Region:   "Berlin",
		Country:  "DE",
		Location: &geolib.Coordinates{
			Latitude:  latitude,
			Longitude: longitude,
		},
		Source: "test",
	}
}
