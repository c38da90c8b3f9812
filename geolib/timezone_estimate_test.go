package geolib_test

import (
	"testing"

	"github.com/9seconds/visitormap/geolib"
	"github.com/stretchr/testify/suite"
)

type EstimateByTimezoneTestSuite struct {
	suite.Suite
}

func (suite *EstimateByTimezoneTestSuite) TestUnknown() {
	suite.Nil(geolib.EstimateByTimezone("", NewFakeClock().Now()))
	suite.Nil(geolib.EstimateByTimezone("Mars/Olympus_Mons", NewFakeClock().Now()))
}

func (suite *EstimateByTimezoneTestSuite) TestKnown() {
	now := NewFakeClock().Now()
	rv := geolib.EstimateByTimezone("Europe/Berlin", now)

	suite.NotNil(rv)
	suite.True(rv.HasLocation())
	suite.Equal("DE", rv.Country)
	suite.Equal(geolib.UnknownValue, rv.City)
	suite.Equal("Europe/Berlin", rv.Timezone)
	suite.Equal(geolib.SourceTimezoneEstimate, rv.Source)
	suite.Equal(now, rv.ResolvedAt)
	suite.InDelta(52.52, rv.Location.Latitude, 0.01)
	suite.Equal(geolib.QualityScore(rv), rv.QualityScore)
}

func (suite *EstimateByTimezoneTestSuite) TestEstimateIsCoarse() {
	rv := geolib.EstimateByTimezone("Asia/Tokyo", NewFakeClock().Now())

	suite.Less(rv.QualityScore, geolib.DefaultMinQualityScore)
}

func TestEstimateByTimezone(t *testing.T) {
	suite.Run(t, &EstimateByTimezoneTestSuite{})
}
