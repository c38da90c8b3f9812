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

const ipinfoResponse = `{
  "ip": "23.22.13.113",
  "hostname": "ec2-23-22-13-113.compute-1.amazonaws.com",
  "city": "Virginia Beach",
  "region": "Virginia",
  "country": "US",
  "loc": "36.7957,-76.0126",
  "org": "AS14618 Amazon.com, Inc.",
  "postal": "23479",
  "timezone": "America/New_York"
}`

type MockedIPInfoTestSuite struct {
	MockedServiceTestSuite

	service geolib.Service
}

func (suite *MockedIPInfoTestSuite) SetupTest() {
	suite.MockedServiceTestSuite.SetupTest()

	suite.service = services.NewIPInfo(suite.http, map[string]string{
		"auth_token": "token",
	})
}

func (suite *MockedIPInfoTestSuite) TestName() {
	suite.Equal(services.NameIPInfo, suite.service.Name())
}

func (suite *MockedIPInfoTestSuite) TestHasCredentials() {
	suite.True(suite.service.(geolib.CredentialedService).HasCredentials())
	suite.False(services.NewIPInfo(suite.http, map[string]string{}).(geolib.CredentialedService).HasCredentials())
}

func (suite *MockedIPInfoTestSuite) TestLookupClosedContext() {
	ctx, cancel := context.WithCancel(context.Background())

	cancel()

	_, err := suite.service.Lookup(ctx, net.ParseIP("23.22.13.113"))

	suite.Error(err)
}

func (suite *MockedIPInfoTestSuite) TestLookupFailed() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/23.22.13.113/json",
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	_, err := suite.service.Lookup(context.Background(), net.ParseIP("23.22.13.113"))

	suite.Error(err)
}

func (suite *MockedIPInfoTestSuite) TestLookupBadJSON() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/23.22.13.113/json",
		httpmock.NewStringResponder(http.StatusOK, `{[`))

	_, err := suite.service.Lookup(context.Background(), net.ParseIP("23.22.13.113"))

	suite.Error(err)
}

func (suite *MockedIPInfoTestSuite) TestLookupBogon() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/10.0.0.1/json",
		httpmock.NewStringResponder(http.StatusOK, `{"ip": "10.0.0.1", "bogon": true}`))

	_, err := suite.service.Lookup(context.Background(), net.ParseIP("10.0.0.1"))

	suite.ErrorIs(err, services.ErrServiceFailure)
}

func (suite *MockedIPInfoTestSuite) TestLookupOk() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/23.22.13.113/json",
		func(req *http.Request) (*http.Response, error) {
			suite.Equal("Bearer token", req.Header.Get("Authorization"))
			suite.Equal("test-agent", req.Header.Get("User-Agent"))

			return httpmock.NewStringResponse(http.StatusOK, ipinfoResponse), nil
		})

	result, err := suite.service.Lookup(context.Background(), net.ParseIP("23.22.13.113"))

	suite.NoError(err)
	suite.Equal("23.22.13.113", result.Identity)
	suite.Equal("Virginia Beach", result.City)
	suite.Equal("Virginia", result.Region)
	suite.Equal("US", result.Country)
	suite.Equal("America/New_York", result.Timezone)
	suite.InDelta(36.7957, result.Location.Latitude, 1e-6)
	suite.InDelta(-76.0126, result.Location.Longitude, 1e-6)
}

func (suite *MockedIPInfoTestSuite) TestLookupOwnAddress() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/json",
		httpmock.NewStringResponder(http.StatusOK, ipinfoResponse))

	result, err := suite.service.Lookup(context.Background(), nil)

	suite.NoError(err)
	suite.Equal("23.22.13.113", result.Identity)
}

func (suite *MockedIPInfoTestSuite) TestLookupBrokenLocation() {
	httpmock.RegisterResponder("GET",
		"https://ipinfo.io/23.22.13.113/json",
		httpmock.NewStringResponder(http.StatusOK, `{"ip": "23.22.13.113", "loc": "lalala"}`))

	result, err := suite.service.Lookup(context.Background(), net.ParseIP("23.22.13.113"))

	suite.NoError(err)
	suite.Nil(result.Location)
}

type IntegrationIPInfoTestSuite struct {
	ServiceTestSuite

	service geolib.Service
}

func (suite *IntegrationIPInfoTestSuite) SetupTest() {
	suite.ServiceTestSuite.SetupTest()

	suite.service = services.NewIPInfo(suite.http, map[string]string{})
}

func (suite *IntegrationIPInfoTestSuite) TestLookup() {
	result, err := suite.service.Lookup(context.Background(), net.ParseIP("23.22.13.113"))

	suite.NoError(err)
	suite.Equal("US", result.Country)
	suite.NotNil(result.Location)
}

func TestIPInfo(t *testing.T) {
	suite.Run(t, &MockedIPInfoTestSuite{})
}

func TestIntegrationIPInfo(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipped because of the short mode")

		return
	}

	suite.Run(t, &IntegrationIPInfoTestSuite{})
}
