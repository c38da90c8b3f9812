package geolib_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/stretchr/testify/suite"
)

type MarkerCollectionTestSuite struct {
	suite.Suite

	clock   *FakeClock
	storage geolib.Storage
	surface *SurfaceMock
	cleared int
	m       *geolib.MarkerCollection
}

func (suite *MarkerCollectionTestSuite) SetupTest() {
	suite.clock = NewFakeClock()
	suite.storage = geolib.NewMemoryStorage()
	suite.surface = &SurfaceMock{}
	suite.cleared = 0
	suite.m = suite.makeCollection(3, suite.surface)
}

func (suite *MarkerCollectionTestSuite) makeCollection(maxMarkers int,
	surface geolib.RenderSurface) *geolib.MarkerCollection {
	return geolib.NewMarkerCollection(geolib.MarkerOptions{
		MaxMarkers:          maxMarkers,
		Retention:           24 * time.Hour,
		RehydrateBatchSize:  2,
		RehydrateBatchDelay: 10 * time.Millisecond,
		Surface:             surface,
		Storage:             suite.storage,
		Now:                 suite.clock.Now,
		OnClear: func() {
			suite.cleared++
		},
	})
}

func (suite *MarkerCollectionTestSuite) addMarkers(count int) []string {
	ids := make([]string, 0, count)

	for i := 0; i < count; i++ {
		id, ok := suite.m.Add(makeRecord(fmt.Sprintf("10.0.0.%d", i), float64(i), float64(i)))

		suite.Require().True(ok)

		ids = append(ids, id)

		suite.clock.Advance(time.Minute)
	}

	return ids
}

func (suite *MarkerCollectionTestSuite) markerIDs(markers []geolib.Marker) []string {
	rv := make([]string, len(markers))

	for i, v := range markers {
		rv[i] = v.ID
	}

	return rv
}

func (suite *MarkerCollectionTestSuite) TestAdd() {
	id, ok := suite.m.Add(makeRecord("1.1.1.1", 10, 20))

	suite.True(ok)
	suite.NotEmpty(id)
	suite.Equal(1, suite.m.Len())

	added := suite.surface.Added()

	suite.Len(added, 1)
	suite.Equal(id, added[0].ID)
	suite.Equal(suite.clock.Now(), added[0].CreatedAt)
	suite.Equal("1.1.1.1", added[0].Record.Identity)
}

func (suite *MarkerCollectionTestSuite) TestAddInvalid() {
	broken := makeRecord("1.1.1.1", 95, 20)
	noLocation := makeRecord("1.1.1.1", 0, 0)
	noLocation.Location = nil

	for _, v := range []*geolib.LocationRecord{nil, broken, noLocation} {
		id, ok := suite.m.Add(v)

		suite.False(ok)
		suite.Empty(id)
	}

	suite.Equal(0, suite.m.Len())
	suite.Empty(suite.surface.Added())
}

func (suite *MarkerCollectionTestSuite) TestUniqueIDs() {
	ids := suite.addMarkers(3)

	suite.NotEqual(ids[0], ids[1])
	suite.NotEqual(ids[1], ids[2])
}

func (suite *MarkerCollectionTestSuite) TestBounded() {
	ids := suite.addMarkers(5)

	suite.Equal(3, suite.m.Len())
	suite.Equal(ids[2:], suite.markerIDs(suite.m.Markers()))
	suite.Equal(ids[:2], suite.surface.Removed())
	suite.Len(suite.surface.Added(), 5)
}

func (suite *MarkerCollectionTestSuite) TestSameTimeIsOrderedBySequence() {
	ids := make([]string, 0, 4)

	for i := 0; i < 4; i++ {
		id, _ := suite.m.Add(makeRecord("1.1.1.1", 10, 10))
		ids = append(ids, id)
	}

	suite.Equal(ids[1:], suite.markerIDs(suite.m.Markers()))
	suite.Equal([]string{ids[0]}, suite.surface.Removed())
}

func (suite *MarkerCollectionTestSuite) TestEvictOldest() {
	_, ok := suite.m.EvictOldest()

	suite.False(ok)

	ids := suite.addMarkers(2)
	marker, ok := suite.m.EvictOldest()

	suite.True(ok)
	suite.Equal(ids[0], marker.ID)
	suite.Equal(1, suite.m.Len())
	suite.Equal([]string{ids[0]}, suite.surface.Removed())
}

func (suite *MarkerCollectionTestSuite) TestMarkersAreCopies() {
	suite.addMarkers(1)

	markers := suite.m.Markers()
	markers[0].Record.City = "Paris"

	suite.Equal("Berlin", suite.m.Markers()[0].Record.City)
}

func (suite *MarkerCollectionTestSuite) TestClear() {
	suite.addMarkers(2)
	suite.m.Clear()

	suite.Equal(0, suite.m.Len())
	suite.Equal(1, suite.surface.Cleared())
	suite.Equal(1, suite.cleared)

	_, err := suite.storage.Load(geolib.StorageKeyMarkers)

	suite.ErrorIs(err, geolib.ErrStorageNoData)
}

func (suite *MarkerCollectionTestSuite) TestRehydrateFromSnapshot() {
	ids := suite.addMarkers(3)
	surface := &SurfaceMock{}
	restored := suite.makeCollection(3, surface)

	<-restored.Rehydrate(context.Background(), nil)

	suite.Equal(ids, suite.markerIDs(restored.Markers()))
	suite.Equal(ids, suite.markerIDs(surface.Added()))
	suite.Equal("10.0.0.1", restored.Markers()[1].Record.Identity)

	id, ok := restored.Add(makeRecord("2.2.2.2", 1, 1))

	suite.True(ok)
	suite.Equal(id, restored.Markers()[2].ID)
}

func (suite *MarkerCollectionTestSuite) TestRehydrateCapacity() {
	ids := suite.addMarkers(3)
	surface := &SurfaceMock{}
	restored := suite.makeCollection(2, surface)

	<-restored.Rehydrate(context.Background(), nil)

	suite.Equal(ids[1:], suite.markerIDs(restored.Markers()))
	suite.Equal(ids[1:], suite.markerIDs(surface.Added()))
	suite.Empty(surface.Removed())
}

func (suite *MarkerCollectionTestSuite) TestRehydrateKeepsShownMarkers() {
	ids := suite.addMarkers(3)
	surface := &SurfaceMock{}
	restored := suite.makeCollection(3, surface)
	snapshot, err := suite.storage.Load(geolib.StorageKeyMarkers)

	suite.Require().NoError(err)

	id, ok := restored.Add(makeRecord("2.2.2.2", 1, 1))

	suite.True(ok)
	suite.NoError(suite.storage.Save(geolib.StorageKeyMarkers, snapshot))

	<-restored.Rehydrate(context.Background(), nil)

	suite.Equal(append(ids[1:], id), suite.markerIDs(restored.Markers()))
	suite.Equal(append([]string{id}, ids[1:]...), suite.markerIDs(surface.Added()))
	suite.Empty(surface.Removed())
}

func (suite *MarkerCollectionTestSuite) TestRehydrateDropsExpired() {
	ids := suite.addMarkers(3)

	suite.clock.Advance(24*time.Hour - 90*time.Second)

	restored := suite.makeCollection(3, &SurfaceMock{})

	<-restored.Rehydrate(context.Background(), nil)

	suite.Equal(ids[2:], suite.markerIDs(restored.Markers()))
}

func (suite *MarkerCollectionTestSuite) TestRehydrateFromVisited() {
	now := suite.clock.Now()
	visited := []geolib.VisitedEntry{
		{
			Identity:        "1.1.1.1",
			LastSeen:        now.Add(-time.Hour),
			LastKnownRecord: makeRecord("1.1.1.1", 10, 10),
		},
		{
			Identity: "2.2.2.2",
			LastSeen: now.Add(-time.Hour),
		},
		{
			Identity:        "3.3.3.3",
			LastSeen:        now.Add(-48 * time.Hour),
			LastKnownRecord: makeRecord("3.3.3.3", 10, 10),
		},
		{
			Identity:        "4.4.4.4",
			LastSeen:        now.Add(-2 * time.Hour),
			LastKnownRecord: makeRecord("4.4.4.4", 95, 10),
		},
		{
			Identity:        "5.5.5.5",
			LastSeen:        now.Add(-2 * time.Hour),
			LastKnownRecord: makeRecord("5.5.5.5", 20, 20),
		},
	}

	<-suite.m.Rehydrate(context.Background(), visited)

	markers := suite.m.Markers()

	suite.Len(markers, 2)
	suite.Equal("5.5.5.5", markers[0].Record.Identity)
	suite.Equal("1.1.1.1", markers[1].Record.Identity)
	suite.Len(suite.surface.Added(), 2)

	_, err := suite.storage.Load(geolib.StorageKeyMarkers)

	suite.NoError(err)
}

func (suite *MarkerCollectionTestSuite) TestRehydrateBatches() {
	suite.addMarkers(3)

	surface := &SurfaceMock{}
	restored := geolib.NewMarkerCollection(geolib.MarkerOptions{
		MaxMarkers:          3,
		Retention:           24 * time.Hour,
		RehydrateBatchSize:  2,
		RehydrateBatchDelay: 300 * time.Millisecond,
		Surface:             surface,
		Storage:             suite.storage,
		Now:                 suite.clock.Now,
	})

	done := restored.Rehydrate(context.Background(), nil)

	suite.Eventually(func() bool {
		return len(surface.Added()) == 2
	}, 200*time.Millisecond, 10*time.Millisecond)

	<-done

	suite.Len(surface.Added(), 3)
}

func (suite *MarkerCollectionTestSuite) TestRehydrateCancel() {
	suite.addMarkers(3)

	surface := &SurfaceMock{}
	restored := geolib.NewMarkerCollection(geolib.MarkerOptions{
		MaxMarkers:          3,
		Retention:           24 * time.Hour,
		RehydrateBatchSize:  1,
		RehydrateBatchDelay: time.Hour,
		Surface:             surface,
		Storage:             suite.storage,
		Now:                 suite.clock.Now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := restored.Rehydrate(ctx, nil)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		suite.FailNow("rehydration is not cancelled")
	}

	suite.Len(surface.Added(), 1)
	suite.Equal(3, restored.Len())
}

func (suite *MarkerCollectionTestSuite) TestClearedWhileRehydrating() {
	suite.addMarkers(3)

	surface := &SurfaceMock{}
	restored := geolib.NewMarkerCollection(geolib.MarkerOptions{
		MaxMarkers:          3,
		Retention:           24 * time.Hour,
		RehydrateBatchSize:  1,
		RehydrateBatchDelay: 50 * time.Millisecond,
		Surface:             surface,
		Storage:             suite.storage,
		Now:                 suite.clock.Now,
	})

	done := restored.Rehydrate(context.Background(), nil)

	suite.Eventually(func() bool {
		return len(surface.Added()) == 1
	}, time.Second, time.Millisecond)

	restored.Clear()

	<-done

	suite.Len(surface.Added(), 1)
	suite.Equal(1, surface.Cleared())
}

func TestMarkerCollection(t *testing.T) {
	suite.Run(t, &MarkerCollectionTestSuite{})
}
