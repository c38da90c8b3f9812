package geolib

import (
	"os"
	"strings"
	"time"
)

type timezoneReference struct {
	latitude  float64
	longitude float64
	country   string
}

// reference points are taken from the largest city of the zone.
var timezoneReferences = map[string]timezoneReference{
	"America/New_York":               {40.7128, -74.0060, "US"},
	"America/Detroit":                {42.3314, -83.0458, "US"},
	"America/Chicago":                {41.8781, -87.6298, "US"},
	"America/Denver":                 {39.7392, -104.9903, "US"},
	"America/Phoenix":                {33.4484, -112.0740, "US"},
	"America/Los_Angeles":            {34.0522, -118.2437, "US"},
	"America/Anchorage":              {61.2181, -149.9003, "US"},
	"Pacific/Honolulu":               {21.3069, -157.8583, "US"},
	"America/Toronto":                {43.6532, -79.3832, "CA"},
	"America/Vancouver":              {49.2827, -123.1207, "CA"},
	"America/Mexico_City":            {19.4326, -99.1332, "MX"},
	"America/Bogota":                 {4.7110, -74.0721, "CO"},
	"America/Lima":                   {-12.0464, -77.0428, "PE"},
	"America/Santiago":               {-33.4489, -70.6693, "CL"},
	"America/Sao_Paulo":              {-23.5505, -46.6333, "BR"},
	"America/Argentina/Buenos_Aires": {-34.6037, -58.3816, "AR"},
	"Europe/London":                  {51.5074, -0.1278, "GB"},
	"Europe/Dublin":                  {53.3498, -6.2603, "IE"},
	"Europe/Lisbon":                  {38.7223, -9.1393, "PT"},
	"Europe/Madrid":                  {40.4168, -3.7038, "ES"},
	"Europe/Paris":                   {48.8566, 2.3522, "FR"},
	"Europe/Brussels":                {50.8503, 4.3517, "BE"},
	"Europe/Amsterdam":               {52.3676, 4.9041, "NL"},
	"Europe/Berlin":                  {52.5200, 13.4050, "DE"},
	"Europe/Zurich":                  {47.3769, 8.5417, "CH"},
	"Europe/Rome":                    {41.9028, 12.4964, "IT"},
	"Europe/Vienna":                  {48.2082, 16.3738, "AT"},
	"Europe/Prague":                  {50.0755, 14.4378, "CZ"},
	"Europe/Warsaw":                  {52.2297, 21.0122, "PL"},
	"Europe/Stockholm":               {59.3293, 18.0686, "SE"},
	"Europe/Oslo":                    {59.9139, 10.7522, "NO"},
	"Europe/Copenhagen":              {55.6761, 12.5683, "DK"},
	"Europe/Helsinki":                {60.1699, 24.9384, "FI"},
	"Europe/Athens":                  {37.9838, 23.7275, "GR"},
	"Europe/Istanbul":                {41.0082, 28.9784, "TR"},
	"Europe/Kiev":                    {50.4501, 30.5234, "UA"},
	"Europe/Kyiv":                    {50.4501, 30.5234, "UA"},
	"Europe/Moscow":                  {55.7558, 37.6173, "RU"},
	"Africa/Cairo":                   {30.0444, 31.2357, "EG"},
	"Africa/Lagos":                   {6.5244, 3.3792, "NG"},
	"Africa/Nairobi":                 {-1.2921, 36.8219, "KE"},
	"Africa/Johannesburg":            {-26.2041, 28.0473, "ZA"},
	"Asia/Dubai":                     {25.2048, 55.2708, "AE"},
	"Asia/Tehran":                    {35.6892, 51.3890, "IR"},
	"Asia/Karachi":                   {24.8607, 67.0011, "PK"},
	"Asia/Kolkata":                   {22.5726, 88.3639, "IN"},
	"Asia/Calcutta":                  {22.5726, 88.3639, "IN"},
	"Asia/Dhaka":                     {23.8103, 90.4125, "BD"},
	"Asia/Bangkok":                   {13.7563, 100.5018, "TH"},
	"Asia/Jakarta":                   {-6.2088, 106.8456, "ID"},
	"Asia/Singapore":                 {1.3521, 103.8198, "SG"},
	"Asia/Manila":                    {14.5995, 120.9842, "PH"},
	"Asia/Shanghai":                  {31.2304, 121.4737, "CN"},
	"Asia/Hong_Kong":                 {22.3193, 114.1694, "HK"},
	"Asia/Taipei":                    {25.0330, 121.5654, "TW"},
	"Asia/Seoul":                     {37.5665, 126.9780, "KR"},
	"Asia/Tokyo":                     {35.6762, 139.6503, "JP"},
	"Australia/Perth":                {-31.9505, 115.8605, "AU"},
	"Australia/Melbourne":            {-37.8136, 144.9631, "AU"},
	"Australia/Sydney":               {-33.8688, 151.2093, "AU"},
	"Pacific/Auckland":               {-36.8485, 174.7633, "NZ"},
}

// EstimateByTimezone returns a very coarse estimate of location based
// on IANA timezone name. Returns nil if zone is unknown.
func EstimateByTimezone(zone string, now time.Time) *LocationRecord {
	ref, ok := timezoneReferences[zone]
	if !ok {
		return nil
	}

	rv := &LocationRecord{
		City:    UnknownValue,
		Region:  UnknownValue,
		Country: ref.country,
		Location: &Coordinates{
			Latitude:  ref.latitude,
			Longitude: ref.longitude,
		},
		Timezone:   zone,
		Source:     SourceTimezoneEstimate,
		ResolvedAt: now,
	}

	rv.QualityScore = QualityScore(rv)

	return rv
}

// LocalTimezone returns IANA name of the local timezone or empty string
// if it cannot be detected.
func LocalTimezone() string {
	if name := time.Local.String(); name != "" && name != "Local" && name != "UTC" {
		return name
	}

	return strings.TrimPrefix(os.Getenv("TZ"), ":")
}
