package services_test

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/9seconds/visitormap/geolib"
	"github.com/9seconds/visitormap/services"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"
)

type MockedIPWhoIsTestSuite struct {
	MockedServiceTestSuite

	service geolib.Service
}

func (suite *MockedIPWhoIsTestSuite) SetupTest() {
	suite.MockedServiceTestSuite.SetupTest()

	suite.service = services.NewIPWhoIs(suite.http, map[string]string{})
}

func (suite *MockedIPWhoIsTestSuite) TestName() {
	suite.Equal(services.NameIPWhoIs, suite.service.Name())
}

func (suite *MockedIPWhoIsTestSuite) TestLookupNotSuccessful() {
	httpmock.RegisterResponder("GET",
		"https://ipwho.is/10.0.0.1",
		httpmock.NewStringResponder(http.StatusOK, `{
  "ip": "10.0.0.1",
  "success": false,
  "message": "Reserved range"
}`))

	_, err := suite.service.Lookup(context.Background(), net.ParseIP("10.0.0.1"))

	suite.ErrorIs(err, services.ErrServiceFailure)
	suite.Contains(err.Error(), "Reserved range")
}

func (suite *MockedIPWhoIsTestSuite) TestLookupOk() {
	httpmock.RegisterResponder("GET",
		"https://ipwho.is/8.8.4.4",
		httpmock.NewStringResponder(http.StatusOK, `{
  "ip": "8.8.4.4",
  "success": true,
  "type": "IPv4",
  "continent": "North America",
  "country": "United States",
  "country_code": "US",
  "region": "California",
  "city": "Mountain View",
  "latitude": 37.3860517,
  "longitude": -122.0838511,
  "timezone": {
    "id": "America/Los_Angeles",
    "abbr": "PDT",
    "utc": "-07:00"
  }
}`))

	result, err := suite.service.Lookup(context.Background(), net.ParseIP("8.8.4.4"))

	suite.NoError(err)
	suite.Equal("8.8.4.4", result.Identity)
	suite.Equal("US", result.Country)
	suite.Equal("California", result.Region)
	suite.Equal("America/Los_Angeles", result.Timezone)
	suite.InDelta(37.3860517, result.Location.Latitude, 1e-6)
}

func TestIPWhoIs(t *testing.T) {
	suite.Run(t, &MockedIPWhoIsTestSuite{})
}
