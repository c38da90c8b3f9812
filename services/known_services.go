package services

import (
	"github.com/9seconds/visitormap/geolib"
)

const keycdnUserAgent = "keycdn-tools:https://github.com/9seconds/visitormap"

// NewIPInfo returns a service for ipinfo.io. It works without a token
// but with severe rate limits. Token is taken from auth_token
// parameter.
func NewIPInfo(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	return jsonService{
		name:        NameIPInfo,
		client:      client,
		selfURL:     "https://ipinfo.io/json",
		ipURL:       "https://ipinfo.io/{ip}/json",
		token:       parameters["auth_token"],
		tokenHeader: "Authorization",
		tokenPrefix: "Bearer ",
		fields: jsonFields{
			Identity: mustFieldPath("$.ip"),
			City:     mustFieldPath("$.city"),
			Region:   mustFieldPath("$.region"),
			Country:  mustFieldPath("$.country"),
			Timezone: mustFieldPath("$.timezone"),
			Location: mustFieldPath("$.loc"),
		},
		failure: mustFieldPath("$.error", "$.bogon"),
		message: mustFieldPath("$.error.message", "$.error.title"),
	}
}

// NewIPAPICo returns a service for ipapi.co. A paid key is taken from
// auth_token parameter and sent as a key query parameter.
func NewIPAPICo(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	query := ""
	if parameters["auth_token"] != "" {
		query = "?key={token}"
	}

	return jsonService{
		name:    NameIPAPICo,
		client:  client,
		selfURL: "https://ipapi.co/json/" + query,
		ipURL:   "https://ipapi.co/{ip}/json/" + query,
		token:   parameters["auth_token"],
		fields: jsonFields{
			Identity:  mustFieldPath("$.ip"),
			City:      mustFieldPath("$.city"),
			Region:    mustFieldPath("$.region"),
			Country:   mustFieldPath("$.country_code", "$.country"),
			Timezone:  mustFieldPath("$.timezone"),
			Latitude:  mustFieldPath("$.latitude"),
			Longitude: mustFieldPath("$.longitude"),
		},
		failure: mustFieldPath("$.error"),
		message: mustFieldPath("$.reason", "$.message"),
	}
}

func NewIPWhoIs(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	return jsonService{
		name:    NameIPWhoIs,
		client:  client,
		selfURL: "https://ipwho.is/",
		ipURL:   "https://ipwho.is/{ip}",
		fields: jsonFields{
			Identity:  mustFieldPath("$.ip"),
			City:      mustFieldPath("$.city"),
			Region:    mustFieldPath("$.region"),
			Country:   mustFieldPath("$.country_code", "$.country"),
			Timezone:  mustFieldPath("$.timezone.id", "$.timezone"),
			Latitude:  mustFieldPath("$.latitude"),
			Longitude: mustFieldPath("$.longitude"),
		},
		success: []successCheck{
			{
				path:     mustFieldPath("$.success"),
				accepted: []interface{}{true},
			},
		},
		message: mustFieldPath("$.message"),
	}
}

// NewIPAPICom returns a service for ip-api.com. Free tier works only
// with plain HTTP.
func NewIPAPICom(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	return jsonService{
		name:    NameIPAPICom,
		client:  client,
		selfURL: "http://ip-api.com/json/",
		ipURL:   "http://ip-api.com/json/{ip}",
		fields: jsonFields{
			Identity:  mustFieldPath("$.query"),
			City:      mustFieldPath("$.city"),
			Region:    mustFieldPath("$.regionName", "$.region"),
			Country:   mustFieldPath("$.countryCode", "$.country"),
			Timezone:  mustFieldPath("$.timezone"),
			Latitude:  mustFieldPath("$.lat"),
			Longitude: mustFieldPath("$.lon"),
		},
		success: []successCheck{
			{
				path:     mustFieldPath("$.status"),
				accepted: []interface{}{"success"},
			},
		},
		message: mustFieldPath("$.message"),
	}
}

func NewFreeIPAPI(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	return jsonService{
		name:    NameFreeIPAPI,
		client:  client,
		selfURL: "https://freeipapi.com/api/json",
		ipURL:   "https://freeipapi.com/api/json/{ip}",
		fields: jsonFields{
			Identity:  mustFieldPath("$.ipAddress"),
			City:      mustFieldPath("$.cityName"),
			Region:    mustFieldPath("$.regionName"),
			Country:   mustFieldPath("$.countryCode", "$.countryName"),
			Timezone:  mustFieldPath("$.timeZone", "$.timeZones[0]"),
			Latitude:  mustFieldPath("$.latitude"),
			Longitude: mustFieldPath("$.longitude"),
		},
	}
}

// NewKeyCDN returns a service for tools.keycdn.com. KeyCDN requires
// a special user agent.
func NewKeyCDN(client geolib.HTTPClient, parameters map[string]string) geolib.Service {
	return jsonService{
		name:    NameKeyCDN,
		client:  client,
		selfURL: "https://tools.keycdn.com/geo.json",
		ipURL:   "https://tools.keycdn.com/geo.json?host={ip}",
		headers: map[string]string{
			"User-Agent": keycdnUserAgent,
		},
		fields: jsonFields{
			Identity:  mustFieldPath("$.data.geo.ip"),
			City:      mustFieldPath("$.data.geo.city"),
			Region:    mustFieldPath("$.data.geo.region_name", "$.data.geo.region_code"),
			Country:   mustFieldPath("$.data.geo.country_code", "$.data.geo.country_name"),
			Timezone:  mustFieldPath("$.data.geo.timezone"),
			Latitude:  mustFieldPath("$.data.geo.latitude"),
			Longitude: mustFieldPath("$.data.geo.longitude"),
		},
		success: []successCheck{
			{
				path:     mustFieldPath("$.status"),
				accepted: []interface{}{"success"},
			},
		},
		message: mustFieldPath("$.description"),
	}
}

// NewIPStack returns a service for ipstack.com. It requires a token,
// taken from auth_token parameter.
func NewIPStack(client geolib.HTTPClient, parameters map[string]string) (geolib.Service, error) {
	scheme := "https"

	if parameters["insecure"] == "true" {
		scheme = "http"
	}

	if parameters["auth_token"] == "" {
		return nil, ErrAuthTokenIsRequired
	}

	return jsonService{
		name:    NameIPStack,
		client:  client,
		selfURL: scheme + "://api.ipstack.com/check?access_key={token}&output=json&language=en",
		ipURL:   scheme + "://api.ipstack.com/{ip}?access_key={token}&output=json&language=en",
		token:   parameters["auth_token"],
		fields: jsonFields{
			Identity:  mustFieldPath("$.ip"),
			City:      mustFieldPath("$.city"),
			Region:    mustFieldPath("$.region_name", "$.region_code"),
			Country:   mustFieldPath("$.country_code", "$.country_name"),
			Timezone:  mustFieldPath("$.time_zone.id"),
			Latitude:  mustFieldPath("$.latitude"),
			Longitude: mustFieldPath("$.longitude"),
		},
		failure: mustFieldPath("$.error"),
		message: mustFieldPath("$.error.info", "$.error.type"),
	}, nil
}
