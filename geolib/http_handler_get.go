package geolib

import (
	"net"
	"net/http"
)

func (h httpHandler) handleGetMarkers(w http.ResponseWriter, req *http.Request) {
	response := struct {
		Results []Marker `json:"results"`
	}{
		Results: h.engine.Markers(),
	}

	h.encodeJSON(w, response)
}

func (h httpHandler) handleGetVisited(w http.ResponseWriter, req *http.Request) {
	response := struct {
		Results []VisitedEntry `json:"results"`
	}{
		Results: h.engine.Visited(),
	}

	h.encodeJSON(w, response)
}

func (h httpHandler) handleGetStats(w http.ResponseWriter, req *http.Request) {
	response := struct {
		Results []*UsageStats `json:"results"`
	}{
		Results: h.engine.UsageStats(),
	}

	h.encodeJSON(w, response)
}

func (h httpHandler) handleGetVisit(w http.ResponseWriter, req *http.Request) {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		h.sendError(w, httpErrorUnknownAddress, err, "Cannot detect your IP address")

		return
	}

	ipAddr := net.ParseIP(host)
	if ipAddr == nil {
		h.sendError(w, httpErrorUnknownAddress, nil, "Address was detected incorrectly")

		return
	}

	if h.engine.closed.Load() {
		h.sendError(w, httpErrorEngineShutdown, ErrEngineShutdown, "Engine is stopped")

		return
	}

	record, added := h.engine.Visit(req.Context(), ipAddr)
	if record == nil {
		h.sendError(w, httpErrorNotResolved, nil, "Cannot resolve IP address yet")

		return
	}

	response := struct {
		Result      *LocationRecord `json:"result"`
		MarkerAdded bool            `json:"marker_added"`
	}{
		Result:      record,
		MarkerAdded: added,
	}

	h.encodeJSON(w, response)
}
