package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/teranos/matinee/errors"
	"github.com/teranos/matinee/logger"
	"github.com/teranos/matinee/pipeline"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes a JSON request body, answering 400 on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// requireMethod rejects mismatched methods with 405.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// writeRunError maps a run failure onto an HTTP status for the synchronous
// endpoints. Streaming endpoints never use this; their failures are terminal
// events on an already-open stream.
func writeRunError(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	var abort *pipeline.AbortError
	switch {
	case errors.IsMalformedInput(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsAccessDenied(err):
		status = http.StatusForbidden
	case errors.IsAuthentication(err), errors.IsRecommendationParse(err):
		// Our upstream credentials or the model's contract failed, not the
		// caller's request.
		status = http.StatusBadGateway
	case errors.As(err, &abort):
		status = http.StatusUnprocessableEntity
		message = abort.Reason
	}

	log.Warnw("Request failed",
		"status", status,
		logger.FieldError, err)
	writeError(w, status, message)
}
