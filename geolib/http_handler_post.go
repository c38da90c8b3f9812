package geolib

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/qri-io/jsonschema"
)

const maxPostBodySize = 4096

var handlePostRequestJSONSchema = func() *jsonschema.Schema {
	data := `{
        "type": "object",
        "additionalProperties": false,
        "properties": {
            "reason": {
                "type": "string",
                "maxLength": 256
            }
        }
    }`

	rv := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(data), rv); err != nil {
		panic(err)
	}

	return rv
}()

// Body of POST requests is optional. If it is given, it has to be a
// JSON object.
type handlePostRequest struct {
	Reason string `json:"reason"`
}

type handlePostResponse struct {
	Accepted bool `json:"accepted"`
}

func (h httpHandler) handlePost(w http.ResponseWriter, req *http.Request, action func() bool) {
	bodyBytes, err := io.ReadAll(io.LimitReader(req.Body, maxPostBodySize))

	req.Body.Close()

	if err != nil {
		h.sendError(w, httpErrorInvalidBody, err, "Cannot read request body")

		return
	}

	parsedRequest := &handlePostRequest{}

	if len(strings.TrimSpace(string(bodyBytes))) > 0 {
		if !strings.Contains(req.Header.Get("Content-Type"), "application/json") {
			h.sendError(w, httpErrorUnsupportedContent, nil, "Incorrect content type")

			return
		}

		errs, err := handlePostRequestJSONSchema.ValidateBytes(req.Context(), bodyBytes)
		if err != nil {
			h.sendError(w, httpErrorInvalidBody, err, "Cannot validate body")

			return
		}

		if len(errs) > 0 {
			h.sendError(w, httpErrorInvalidBody, errs[0], "Invalid request body")

			return
		}

		if err := json.Unmarshal(bodyBytes, parsedRequest); err != nil {
			h.sendError(w, httpErrorInvalidBody, err, "Cannot parse request JSON")

			return
		}
	}

	if h.engine.closed.Load() {
		h.sendError(w, httpErrorEngineShutdown, ErrEngineShutdown, "Engine is stopped")

		return
	}

	if parsedRequest.Reason != "" {
		h.engine.logger.TriggerInfo(TriggerManual, req.URL.Path+" is requested: "+parsedRequest.Reason)
	}

	h.encodeJSON(w, handlePostResponse{
		Accepted: action(),
	})
}
