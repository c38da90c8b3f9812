package geolib

import (
	"strings"
	"time"
)

// Consensus synthesizes a record out of independent service responses:
// coordinates are an arithmetic mean, textual fields are a mode (most
// frequent value; ties are broken by the first encountered value).
//
// Cities and regions are compared case-insensitively, a spelling
// reported first wins. Countries are compared by normalized ISO3166
// code.
//
// Records without valid coordinates are ignored. If there are no valid
// records, nil is returned.
func Consensus(records []*LocationRecord, now time.Time) *LocationRecord {
	valid := make([]*LocationRecord, 0, len(records))

	for _, v := range records {
		if v.HasLocation() {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		return nil
	}

	var latitude, longitude float64

	cities := make([]string, 0, len(valid))
	regions := make([]string, 0, len(valid))
	countries := make([]string, 0, len(valid))
	identities := make([]string, 0, len(valid))
	timezones := make([]string, 0, len(valid))

	for _, v := range valid {
		latitude += v.Location.Latitude
		longitude += v.Location.Longitude

		cities = append(cities, v.City)
		regions = append(regions, v.Region)
		countries = append(countries, NormalizeCountry(v.Country))
		identities = append(identities, v.Identity)
		timezones = append(timezones, v.Timezone)
	}

	count := float64(len(valid))
	rv := &LocationRecord{
		Identity: mode(identities, strings.TrimSpace),
		City:     orUnknown(mode(cities, foldedKey)),
		Region:   orUnknown(mode(regions, foldedKey)),
		Country:  orUnknown(mode(countries, strings.ToUpper)),
		Location: &Coordinates{
			Latitude:  latitude / count,
			Longitude: longitude / count,
		},
		Timezone:   mode(timezones, strings.TrimSpace),
		Source:     SourceConsensus,
		ResolvedAt: now,
	}

	rv.QualityScore = QualityScore(rv)

	return rv
}

// mode returns the most frequent known value. Values are grouped by
// a key. Returns empty string if there are no known values.
func mode(values []string, key func(string) string) string {
	counters := map[string]int{}
	names := map[string]string{}
	order := []string{}

	for _, v := range values {
		if !known(v) {
			continue
		}

		k := key(v)

		if _, ok := names[k]; !ok {
			names[k] = v
			order = append(order, k)
		}

		counters[k]++
	}

	maxCount := 0
	rv := ""

	for _, k := range order {
		if counters[k] > maxCount {
			rv = names[k]
			maxCount = counters[k]
		}
	}

	return rv
}

func foldedKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
