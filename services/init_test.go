package services_test

import (
	"net/http"
	"time"

	"github.com/9seconds/visitormap/geolib"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/suite"
)

type ServiceTestSuite struct {
	suite.Suite

	http geolib.HTTPClient
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.http = geolib.NewHTTPClient(&http.Client{},
		"test-agent",
		time.Millisecond,
		100,
		100,
		time.Minute,
		time.Minute)
}

type MockedServiceTestSuite struct {
	ServiceTestSuite
}

func (suite *MockedServiceTestSuite) SetupSuite() {
	httpmock.Activate()
}

func (suite *MockedServiceTestSuite) TearDownSuite() {
	httpmock.DeactivateAndReset()
}

func (suite *MockedServiceTestSuite) TearDownTest() {
	httpmock.Reset()
}
