package geolib

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

const (
	// UnknownValue is used for city, region and country if service
	// has not returned anything meaningful.
	UnknownValue = "Unknown"

	SourceConsensus        = "consensus"
	SourceTimezoneEstimate = "timezone-estimate"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid checks that both coordinates are finite and within WGS84
// ranges.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}

	for _, v := range [2]float64{c.Latitude, c.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

func (c *Coordinates) String() string {
	if c == nil {
		return ""
	}

	return strconv.FormatFloat(c.Latitude, 'f', 4, 64) + "," +
		strconv.FormatFloat(c.Longitude, 'f', 4, 64)
}

// LocationRecord is a resolved geolocation of a visitor.
type LocationRecord struct {
	Identity     string       `json:"identity"`
	City         string       `json:"city"`
	Region       string       `json:"region"`
	Country      string       `json:"country"`
	Location     *Coordinates `json:"location,omitempty"`
	Accuracy     float64      `json:"accuracy,omitempty"`
	Timezone     string       `json:"timezone,omitempty"`
	Source       string       `json:"source"`
	ResolvedAt   time.Time    `json:"resolved_at"`
	QualityScore int          `json:"quality_score"`
}

// HasLocation returns true if record has coordinates which conform
// WGS84 ranges. Records with broken coordinates are treated as if they
// have no coordinates at all.
func (l *LocationRecord) HasLocation() bool {
	return l != nil && l.Location.Valid()
}

// DedupIdentity returns an identity of the record which is used for
// deduplication. If service has not returned any identity, coordinates
// are used instead.
func (l *LocationRecord) DedupIdentity() string {
	if l.Identity != "" {
		return l.Identity
	}

	if l.HasLocation() {
		return "loc:" + l.Location.String()
	}

	return "src:" + l.Source
}

func (l *LocationRecord) Copy() *LocationRecord {
	if l == nil {
		return nil
	}

	rv := *l

	if l.Location != nil {
		loc := *l.Location
		rv.Location = &loc
	}

	return &rv
}

// ServiceLookupResult is a set of fields, returned by a service. Empty
// string means that service knows nothing about this field.
type ServiceLookupResult struct {
	Identity string
	City     string
	Region   string
	Country  string
	Timezone string
	Location *Coordinates
	Accuracy float64
}

// VisitedEntry is a row of retention store.
type VisitedEntry struct {
	Identity        string          `json:"identity"`
	FirstSeen       time.Time       `json:"first_seen"`
	LastSeen        time.Time       `json:"last_seen"`
	VisitCount      uint64          `json:"visit_count"`
	LastKnownRecord *LocationRecord `json:"last_known_record,omitempty"`
}

// Marker is a renderable point. IDs are generation ordered.
type Marker struct {
	ID        string          `json:"id"`
	Record    *LocationRecord `json:"record"`
	CreatedAt time.Time       `json:"created_at"`
	Seq       uint64          `json:"seq"`
}

func (m Marker) olderThan(other Marker) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.Seq < other.Seq
	}

	return m.CreatedAt.Before(other.CreatedAt)
}

type snapshotEntry struct {
	Identity  string          `json:"identity"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata"`
}
