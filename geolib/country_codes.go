package geolib

import (
	"strings"

	"github.com/pariz/gountries"
)

var countryQuery = gountries.New()

// NormalizeAlpha2Code returns a normalized 2-letter ISO3166 code.
// Normalized code is uppercased with some additional mapping. For
// example, some services return ZZ or XX as 'unknown' country. This
// function returns "" instead. Some services still map Serbia to YU.
// This correctly maps YU to CS.
func NormalizeAlpha2Code(alpha2 string) string {
	alpha2 = strings.ToUpper(strings.TrimSpace(alpha2))

	if len(alpha2) != 2 {
		return ""
	}

	switch alpha2 {
	case "ZZ", "XX", "AP", "EU", "--":
		return ""
	case "YU":
		return "CS"
	case "FX":
		return "FR"
	case "UK":
		return "GB"
	default:
		return alpha2
	}
}

// NormalizeCountry converts whatever service returns as a country into
// 2-letter ISO3166 code: alpha-2, alpha-3 and english country names are
// supported. If value cannot be recognized, it is returned as is, so
// mode calculation still can work with it.
//
// Empty values and placeholders are converted into UnknownValue.
func NormalizeCountry(value string) string {
	value = strings.TrimSpace(value)

	switch len(value) {
	case 0:
		return UnknownValue
	case 2:
		if code := NormalizeAlpha2Code(value); code != "" {
			return code
		}

		return UnknownValue
	case 3:
		if code, ok := countryQuery.Alpha3ToAlpha2[strings.ToUpper(value)]; ok {
			return NormalizeAlpha2Code(code)
		}
	}

	if strings.EqualFold(value, UnknownValue) {
		return UnknownValue
	}

	if country, err := countryQuery.FindCountryByName(value); err == nil {
		return NormalizeAlpha2Code(country.Alpha2)
	}

	return value
}

// CountryName returns a common english name of the country or an empty
// string if code is unknown.
func CountryName(alpha2 string) string {
	country, err := countryQuery.FindCountryByAlpha(NormalizeAlpha2Code(alpha2))
	if err != nil {
		return ""
	}

	return country.Name.BaseLang.Common
}
