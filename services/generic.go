package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/9seconds/visitormap/geolib"
)

// NewGeneric returns a service which is completely defined by
// parameters. It is intended for services which are not supported out
// of the box.
//
// Recognized parameters:
//
//	url          - URL template for a given ip, may have {ip} and {token}
//	self_url     - URL template for own address
//	auth_token   - a value of {token}
//	token_header - if set, token is sent in this header
//	token_prefix - a prefix of the token header value, like "Bearer "
//	user_agent   - overrides User-Agent
//	identity, city, region, country, timezone, latitude, longitude,
//	location, accuracy - JSON paths of fields
//	success       - JSON path of a success flag
//	success_values - comma-separated accepted values of success flag
//	failure      - JSON path of an error field
//	message      - JSON path of an error message
//
// Each JSON path may have alternatives, separated by ||.
func NewGeneric(name string, client geolib.HTTPClient, parameters map[string]string) (geolib.Service, error) {
	rv := jsonService{
		name:        name,
		client:      client,
		selfURL:     parameters["self_url"],
		ipURL:       parameters["url"],
		token:       parameters["auth_token"],
		tokenHeader: parameters["token_header"],
		tokenPrefix: parameters["token_prefix"],
		headers:     map[string]string{},
	}

	if name == "" {
		return nil, fmt.Errorf("name: %w", ErrParameterIsRequired)
	}

	if rv.selfURL == "" && rv.ipURL == "" {
		return nil, fmt.Errorf("url or self_url: %w", ErrParameterIsRequired)
	}

	if value := parameters["user_agent"]; value != "" {
		rv.headers["User-Agent"] = value
	}

	paths := map[string]*fieldPath{
		"identity":  &rv.fields.Identity,
		"city":      &rv.fields.City,
		"region":    &rv.fields.Region,
		"country":   &rv.fields.Country,
		"timezone":  &rv.fields.Timezone,
		"latitude":  &rv.fields.Latitude,
		"longitude": &rv.fields.Longitude,
		"location":  &rv.fields.Location,
		"accuracy":  &rv.fields.Accuracy,
		"failure":   &rv.failure,
		"message":   &rv.message,
	}

	for key, target := range paths {
		path, err := parseFieldPath(parameters[key])
		if err != nil {
			return nil, fmt.Errorf("incorrect %s: %w", key, err)
		}

		*target = path
	}

	hasCoordinates := len(rv.fields.Latitude) > 0 && len(rv.fields.Longitude) > 0
	if !hasCoordinates && len(rv.fields.Location) == 0 {
		return nil, fmt.Errorf("latitude and longitude or location: %w", ErrParameterIsRequired)
	}

	if parameters["success"] != "" {
		path, err := parseFieldPath(parameters["success"])
		if err != nil {
			return nil, fmt.Errorf("incorrect success: %w", err)
		}

		rv.success = append(rv.success, successCheck{
			path:     path,
			accepted: parseSuccessValues(parameters["success_values"]),
		})
	}

	return rv, nil
}

func parseSuccessValues(text string) []interface{} {
	if text == "" {
		return []interface{}{true}
	}

	chunks := strings.Split(text, ",")
	rv := make([]interface{}, 0, len(chunks))

	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)

		if value, err := strconv.ParseBool(chunk); err == nil {
			rv = append(rv, value)

			continue
		}

		if value, err := strconv.ParseFloat(chunk, 64); err == nil {
			rv = append(rv, value)

			continue
		}

		rv = append(rv, chunk)
	}

	return rv
}
