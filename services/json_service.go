package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/9seconds/visitormap/geolib"
)

// jsonFields defines where fields of geolib.ServiceLookupResult are
// located in a response.
type jsonFields struct {
	Identity  fieldPath
	City      fieldPath
	Region    fieldPath
	Country   fieldPath
	Timezone  fieldPath
	Latitude  fieldPath
	Longitude fieldPath
	Accuracy  fieldPath

	// Location is a field with "lat,lon" string.
	Location fieldPath
}

// successCheck fails a response if a value, selected by path, is not
// one of accepted values. Missing value is fine.
type successCheck struct {
	path     fieldPath
	accepted []interface{}
}

func (s successCheck) check(doc interface{}) bool {
	value, ok := s.path.value(doc)
	if !ok {
		return true
	}

	for _, v := range s.accepted {
		if v == value {
			return true
		}
	}

	return false
}

// jsonService is a declarative adapter for JSON APIs. Each request is
// a GET to one of URL templates. Templates may have {ip} and {token}
// placeholders.
type jsonService struct {
	name        string
	client      geolib.HTTPClient
	selfURL     string
	ipURL       string
	token       string
	tokenHeader string
	tokenPrefix string
	headers     map[string]string
	fields      jsonFields
	success     []successCheck
	failure     fieldPath
	message     fieldPath
}

func (j jsonService) Name() string {
	return j.name
}

func (j jsonService) HasCredentials() bool {
	return j.token != ""
}

func (j jsonService) Lookup(ctx context.Context, ip net.IP) (geolib.ServiceLookupResult, error) {
	result := geolib.ServiceLookupResult{}

	reqURL, err := j.buildURL(ip)
	if err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return result, fmt.Errorf("cannot build a request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	for k, v := range j.headers {
		req.Header.Set(k, v)
	}

	if j.token != "" && j.tokenHeader != "" {
		req.Header.Set(j.tokenHeader, j.tokenPrefix+j.token)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("cannot send a request: %w", err)
	}

	defer flushResponse(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var doc interface{}

	jsonDecoder := json.NewDecoder(bufio.NewReader(resp.Body))

	if err := jsonDecoder.Decode(&doc); err != nil {
		return result, fmt.Errorf("cannot parse a response: %w", err)
	}

	if err := j.checkResponse(doc); err != nil {
		return result, err
	}

	result.Identity = j.fields.Identity.String(doc)
	result.City = j.fields.City.String(doc)
	result.Region = j.fields.Region.String(doc)
	result.Country = j.fields.Country.String(doc)
	result.Timezone = j.fields.Timezone.String(doc)
	result.Location = j.extractLocation(doc)

	if accuracy, ok := j.fields.Accuracy.Float(doc); ok {
		result.Accuracy = accuracy
	}

	return result, nil
}

func (j jsonService) checkResponse(doc interface{}) error {
	if _, ok := doc.(map[string]interface{}); !ok {
		return fmt.Errorf("unexpected response type %T: %w", doc, ErrServiceFailure)
	}

	failed := false

	if value, ok := j.failure.value(doc); ok && isTruthy(value) {
		failed = true
	}

	for _, v := range j.success {
		if !v.check(doc) {
			failed = true
		}
	}

	if !failed {
		return nil
	}

	if message := j.message.String(doc); message != "" {
		return fmt.Errorf("%s: %w", message, ErrServiceFailure)
	}

	return ErrServiceFailure
}

func (j jsonService) extractLocation(doc interface{}) *geolib.Coordinates {
	latitude, latOk := j.fields.Latitude.Float(doc)
	longitude, lonOk := j.fields.Longitude.Float(doc)

	if latOk && lonOk {
		return &geolib.Coordinates{
			Latitude:  latitude,
			Longitude: longitude,
		}
	}

	chunks := strings.Split(j.fields.Location.String(doc), ",")
	if len(chunks) != 2 {
		return nil
	}

	latitude, latOk = scalarToFloat(chunks[0])
	longitude, lonOk = scalarToFloat(chunks[1])

	if !latOk || !lonOk {
		return nil
	}

	return &geolib.Coordinates{
		Latitude:  latitude,
		Longitude: longitude,
	}
}

func (j jsonService) buildURL(ip net.IP) (string, error) {
	template := j.ipURL

	switch {
	case ip == nil && j.selfURL == "":
		return "", ErrOwnAddressIsNotSupported
	case ip == nil:
		template = j.selfURL
	case j.ipURL == "":
		return "", ErrIPIsNotSupported
	}

	ipValue := ""
	if ip != nil {
		ipValue = url.PathEscape(ip.String())
	}

	replacer := strings.NewReplacer(
		"{ip}", ipValue,
		"{token}", url.QueryEscape(j.token))

	return replacer.Replace(template), nil
}
