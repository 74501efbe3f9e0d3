package web

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vbonduro/boardgamer/internal/validation"
)

const (
	msgInvalidInput    = "Invalid input data provided."
	msgUpstreamPrefix  = "An unexpected error occurred during AI recommendation: "
	msgUnknownError    = "An unknown server error occurred while processing your request."
	msgIdentifyInvalid = "Invalid image upload."
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write json response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string, details []string) {
	s.writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func (s *Server) writeValidationError(w http.ResponseWriter, msg string, verr *validation.RequestValidationError) {
	s.writeError(w, http.StatusBadRequest, msg, verr.Details())
}
