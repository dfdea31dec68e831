package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// maxWindowHours caps the hours parameter of windowed views
const maxWindowHours = 24 * 7

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Snapshot())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Overview())
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", 24, maxWindowHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.facade.Timeline(hours))
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 200, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.facade.Anomalies(limit))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", 24, maxWindowHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.facade.Volume(hours))
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Heatmap())
}

// intParam parses a positive integer query parameter. An upper bound of zero
// means unbounded.
func intParam(r *http.Request, name string, def, upper int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	if upper > 0 && v > upper {
		return 0, fmt.Errorf("%s must be at most %d", name, upper)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
