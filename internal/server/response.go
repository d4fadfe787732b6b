package server

import (
	"encoding/json"
	"net/http"
)

// Status is the status field of JSON responses.
type Status string

const (
	StatusOK           Status = "ok"
	StatusShuttingDown Status = "shutting_down"
	StatusError        Status = "error"
)

// Response is the JSON body for health checks and errors.
type Response struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warnf("failed to encode response", map[string]any{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, reason string, err error) {
	s.writeJSON(w, status, Response{Status: StatusError, Reason: reason, Error: err.Error()})
}
