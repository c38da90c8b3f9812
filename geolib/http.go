package geolib

import (
	"encoding/json"
	"net/http"
	"strings"
)

type httpHandler struct {
	engine *Engine
}

func (h httpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := "/" + strings.Trim(req.URL.Path, "/")

	switch req.Method {
	case http.MethodGet, http.MethodHead:
		switch path {
		case "/markers":
			h.handleGetMarkers(w, req)
		case "/visited":
			h.handleGetVisited(w, req)
		case "/stats":
			h.handleGetStats(w, req)
		case "/visit":
			h.handleGetVisit(w, req)
		default:
			h.sendError(w, httpErrorUnknownPath, nil, "Unknown path")
		}
	case http.MethodPost:
		switch path {
		case "/refresh":
			h.handlePost(w, req, h.engine.Refresh)
		case "/visibility":
			h.handlePost(w, req, h.engine.VisibilityRegained)
		case "/clear":
			h.handlePost(w, req, func() bool {
				h.engine.Clear()

				return true
			})
		default:
			h.sendError(w, httpErrorUnknownPath, nil, "Unknown path")
		}
	default:
		h.sendError(w, httpErrorMethodNotAllowed, nil, "This HTTP method is not allowed")
	}
}

func (h httpHandler) encodeJSON(w http.ResponseWriter, data interface{}) {
	encoder := json.NewEncoder(w)

	w.Header().Add("Content-Type", "application/json")
	encoder.SetEscapeHTML(false)
	encoder.Encode(data) // nolint: errcheck
}

func (h httpHandler) sendError(w http.ResponseWriter, code httpErrorCode, err error, message string) {
	e := &httpError{
		code:    code,
		message: message,
		err:     err,
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode())

	encoder := json.NewEncoder(w)

	encoder.SetEscapeHTML(false)
	encoder.Encode(e) // nolint: errcheck
}

// ServeHTTP serves a JSON API of the engine.
func (e *Engine) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpHandler{e}.ServeHTTP(w, req)
}

// NewHTTPHandler returns a handler with JSON API of the engine:
//
//	GET /markers     - current markers, the oldest first
//	GET /visited     - visited entries
//	GET /stats       - usage stats of services
//	GET /visit       - resolve and count a requester
//	POST /refresh    - manual refresh (debounced)
//	POST /visibility - visibility is regained (rate limited)
//	POST /clear      - drop all markers and visited entries
func NewHTTPHandler(engine *Engine) http.Handler {
	return httpHandler{
		engine: engine,
	}
}
