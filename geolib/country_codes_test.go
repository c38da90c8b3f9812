package geolib_test

import (
	"testing"

	"github.com/9seconds/visitormap/geolib"
	"github.com/stretchr/testify/suite"
)

type CountryCodesTestSuite struct {
	suite.Suite
}

func (suite *CountryCodesTestSuite) TestNormalizeAlpha2Code() {
	testData := map[string]string{
		"":    "",
		"r":   "",
		"rus": "",
		"ZZ":  "",
		"xx":  "",
		"EU":  "",
		"fx":  "FR",
		" de": "DE",
		"us":  "US",
	}

	for k, v := range testData {
		value := k
		expected := v

		suite.Run(value, func() {
			suite.Equal(expected, geolib.NormalizeAlpha2Code(value))
		})
	}
}

func (suite *CountryCodesTestSuite) TestNormalizeCountry() {
	testData := map[string]string{
		"":        geolib.UnknownValue,
		"  ":      geolib.UnknownValue,
		"unknown": geolib.UnknownValue,
		"XX":      geolib.UnknownValue,
		"de":      "DE",
		"DEU":     "DE",
		"usa":     "US",
		"Germany": "DE",
		"Narnia":  "Narnia",
	}

	for k, v := range testData {
		value := k
		expected := v

		suite.Run(value, func() {
			suite.Equal(expected, geolib.NormalizeCountry(value))
		})
	}
}

func (suite *CountryCodesTestSuite) TestCountryName() {
	suite.Equal("Germany", geolib.CountryName("de"))
	suite.Empty(geolib.CountryName("ZZ"))
	suite.Empty(geolib.CountryName(""))
}

func TestCountryCodes(t *testing.T) {
	suite.Run(t, &CountryCodesTestSuite{})
}
