package geolib

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"
)

type HTTPErrorTestSuite struct {
	suite.Suite
}

func (suite *HTTPErrorTestSuite) TestStatusCode() {
	testData := map[httpErrorCode]int{
		httpErrorUnknownPath:        http.StatusNotFound,
		httpErrorMethodNotAllowed:   http.StatusMethodNotAllowed,
		httpErrorUnsupportedContent: http.StatusUnsupportedMediaType,
		httpErrorInvalidBody:        http.StatusBadRequest,
		httpErrorUnknownAddress:     http.StatusInternalServerError,
		httpErrorNotResolved:        http.StatusServiceUnavailable,
		httpErrorEngineShutdown:     http.StatusServiceUnavailable,
		httpErrorCode("lalala"):     http.StatusInternalServerError,
	}

	for k, v := range testData {
		suite.Equal(v, (&httpError{code: k}).StatusCode(), string(k))
	}
}

func (suite *HTTPErrorTestSuite) TestWrapped() {
	err := &httpError{
		code:    httpErrorEngineShutdown,
		message: "Engine is stopped",
		err:     ErrEngineShutdown,
	}

	suite.ErrorIs(err, ErrEngineShutdown)
	suite.EqualError(err, "engine_shutdown: Engine is stopped: "+ErrEngineShutdown.Error())
	suite.EqualError(&httpError{code: httpErrorUnknownPath, message: "Unknown path"},
		"unknown_path: Unknown path")
}

func (suite *HTTPErrorTestSuite) TestJSON() {
	testData := []struct {
		err      *httpError
		expected string
	}{
		{
			&httpError{code: httpErrorUnknownPath, message: "Unknown path"},
			`{"error": {"code": "unknown_path", "message": "Unknown path", "context": ""}}`,
		},
		{
			&httpError{code: httpErrorInvalidBody, message: "Cannot read", err: io.EOF},
			`{"error": {"code": "invalid_body", "message": "Cannot read", "context": "EOF"}}`,
		},
	}

	for _, v := range testData {
		data, err := json.Marshal(v.err)

		suite.NoError(err)
		suite.JSONEq(v.expected, string(data))
	}
}

func TestHTTPError(t *testing.T) {
	suite.Run(t, &HTTPErrorTestSuite{})
}
