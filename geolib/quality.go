package geolib

import (
	"strings"
	"time"
)

const (
	// DefaultMinQualityScore is a score which finalizes hedge race
	// immediately.
	DefaultMinQualityScore = 6

	// MaxQualityScore is the best score record can get.
	MaxQualityScore = 8

	accuracyPrecise = 50
	accuracyCoarse  = 100
)

// QualityScore rates completeness and precision of the record.
//
//	identity                +1
//	city                    +2
//	region                  +1
//	country                 +1
//	accuracy <= 50km        +2 (<= 100km +1)
//	timezone                +1
func QualityScore(record *LocationRecord) int {
	if record == nil {
		return 0
	}

	score := 0

	if record.Identity != "" {
		score++
	}

	if known(record.City) {
		score += 2
	}

	if known(record.Region) {
		score++
	}

	if known(record.Country) {
		score++
	}

	switch {
	case record.Accuracy <= 0:
	case record.Accuracy <= accuracyPrecise:
		score += 2
	case record.Accuracy <= accuracyCoarse:
		score++
	}

	if record.Timezone != "" {
		score++
	}

	return score
}

func known(value string) bool {
	return value != "" && value != UnknownValue
}

func orUnknown(value string) string {
	if value = strings.TrimSpace(value); value == "" {
		return UnknownValue
	}

	return value
}

// newLocationRecord converts a raw service result into a scored
// record. Results without valid coordinates are discarded before
// scoring: nil is returned.
func newLocationRecord(source string, result ServiceLookupResult, now time.Time) *LocationRecord {
	if !result.Location.Valid() {
		return nil
	}

	location := *result.Location
	rv := &LocationRecord{
		Identity:   strings.TrimSpace(result.Identity),
		City:       orUnknown(result.City),
		Region:     orUnknown(result.Region),
		Country:    NormalizeCountry(result.Country),
		Location:   &location,
		Accuracy:   result.Accuracy,
		Timezone:   strings.TrimSpace(result.Timezone),
		Source:     source,
		ResolvedAt: now,
	}

	rv.QualityScore = QualityScore(rv)

	return rv
}
