package geolib

import (
	"encoding/hex"
	"math"

	"golang.org/x/crypto/blake2b"
)

const (
	anonymizedIdentitySize = 16
	anonymizedPrecision    = 100
)

// Anonymizer removes personal data from records before they are
// counted or stored: identity is replaced with a keyed digest and
// coordinates are truncated to 2 decimal places (around 1km).
type Anonymizer struct {
	key []byte
}

func (a *Anonymizer) Anonymize(record *LocationRecord) *LocationRecord {
	if record == nil {
		return nil
	}

	rv := record.Copy()

	if rv.Identity != "" {
		rv.Identity = a.hash(rv.Identity)
	}

	if rv.Location != nil {
		rv.Location.Latitude = truncateCoordinate(rv.Location.Latitude)
		rv.Location.Longitude = truncateCoordinate(rv.Location.Longitude)
	}

	return rv
}

func (a *Anonymizer) hash(value string) string {
	hasher, err := blake2b.New(anonymizedIdentitySize, a.key)
	if err != nil {
		// key size is always valid
		panic(err)
	}

	hasher.Write([]byte(value)) // nolint: errcheck

	return hex.EncodeToString(hasher.Sum(nil))
}

func truncateCoordinate(value float64) float64 {
	return math.Trunc(value*anonymizedPrecision) / anonymizedPrecision
}

// NewAnonymizer creates anonymizer with a given salt. Salt of any
// length is accepted: it is hashed into a 32 byte key.
func NewAnonymizer(salt string) *Anonymizer {
	key := blake2b.Sum256([]byte(salt))

	return &Anonymizer{
		key: key[:],
	}
}
