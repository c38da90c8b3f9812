package services

const (
	// Identifier for ipinfo.io.
	NameIPInfo = "ipinfo"

	// Identifier for ipapi.co.
	NameIPAPICo = "ipapi_co"

	// Identifier for ipwho.is.
	NameIPWhoIs = "ipwhois"

	// Identifier for ip-api.com.
	NameIPAPICom = "ip_api_com"

	// Identifier for freeipapi.com.
	NameFreeIPAPI = "freeipapi"

	// Identifier for tools.keycdn.com.
	NameKeyCDN = "keycdn"

	// Identifier for ipstack.com
	NameIPStack = "ipstack"

	// Identifier for offline MaxMind GeoLite2/GeoIP2 City databases.
	NameMaxMind = "maxmind"

	// Identifier for offline IP2Location BIN databases.
	NameIP2Location = "ip2location"

	// Identifier for offline Sypex Geo City databases.
	NameSypex = "sypex"
)
