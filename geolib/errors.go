package geolib

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrEngineShutdown       = errors.New("engine instance was shutdown")
	ErrInvalidOptions       = errors.New("invalid options")
	ErrStorageNoData        = errors.New("no data is stored by this key")
	ErrCircuitBreakerOpened = errors.New("circuit breaker is opened")
	ErrCircuitBreakerIgnore = errors.New("this error should be ignored by circuit breaker")
	ErrNoLocation           = errors.New("service has returned no valid coordinates")
)

// httpErrorCode is a stable machine-readable identifier of API error.
// Each code has a fixed HTTP status.
type httpErrorCode string

const (
	httpErrorUnknownPath        httpErrorCode = "unknown_path"
	httpErrorMethodNotAllowed   httpErrorCode = "method_not_allowed"
	httpErrorUnsupportedContent httpErrorCode = "unsupported_content_type"
	httpErrorInvalidBody        httpErrorCode = "invalid_body"
	httpErrorUnknownAddress     httpErrorCode = "unknown_address"
	httpErrorNotResolved        httpErrorCode = "not_resolved"
	httpErrorEngineShutdown     httpErrorCode = "engine_shutdown"
)

var httpErrorStatuses = map[httpErrorCode]int{
	httpErrorUnknownPath:        http.StatusNotFound,
	httpErrorMethodNotAllowed:   http.StatusMethodNotAllowed,
	httpErrorUnsupportedContent: http.StatusUnsupportedMediaType,
	httpErrorInvalidBody:        http.StatusBadRequest,
	httpErrorUnknownAddress:     http.StatusInternalServerError,
	httpErrorNotResolved:        http.StatusServiceUnavailable,
	httpErrorEngineShutdown:     http.StatusServiceUnavailable,
}

type httpError struct {
	code    httpErrorCode
	message string
	err     error
}

func (h *httpError) StatusCode() int {
	if status, ok := httpErrorStatuses[h.code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

func (h *httpError) Unwrap() error {
	return h.err
}

func (h *httpError) Error() string {
	if h.err != nil {
		return string(h.code) + ": " + h.message + ": " + h.err.Error()
	}

	return string(h.code) + ": " + h.message
}

func (h *httpError) MarshalJSON() ([]byte, error) {
	value := struct {
		Error struct {
			Code    httpErrorCode `json:"code"`
			Message string        `json:"message"`
			Context string        `json:"context"`
		} `json:"error"`
	}{}

	value.Error.Code = h.code
	value.Error.Message = h.message

	if h.err != nil {
		value.Error.Context = h.err.Error()
	}

	return json.Marshal(&value)
}
